// Package h2 implements the owned HTTP/2 client session: HPACK framing via
// golang.org/x/net/http2 (Framer) and golang.org/x/net/http2/hpack, stream
// multiplexing, flow control, SETTINGS exchange and RFC 8441 Extended
// CONNECT for Websocket-over-H2 (§4.3). Grounded on the teacher's
// internal/rfc8441_raw_h2.go, generalized from one fixed WS-tunnel stream
// to a full multiplexed session.
package h2

import "golang.org/x/net/http2"

// Settings mirrors the H2 settings table (§3 "Settings Table (H2)").
type Settings struct {
	HeaderTableSize       uint32
	EnablePush            bool
	MaxConcurrentStreams  uint32
	InitialWindowSize     uint32
	MaxFrameSize          uint32
	MaxHeaderListSize     uint32
	EnableConnectProtocol bool
}

// MaxFrameSizeMin/Max are RFC 7540 §6.5.2 bounds: 2^14..2^24-1.
const (
	MaxFrameSizeMin = 1 << 14
	MaxFrameSizeMax = 1<<24 - 1

	settingEnableConnectProtocol http2.SettingID = 0x8
)

// DefaultLocalSettings are the SETTINGS the client submits on session start,
// per §4.3: "Client submits its own SETTINGS on session start including
// ENABLE_CONNECT_PROTOCOL=1 to allow WS-over-H2."
func DefaultLocalSettings() Settings {
	return Settings{
		HeaderTableSize:       4096,
		EnablePush:            false,
		MaxConcurrentStreams:  100,
		InitialWindowSize:     65535,
		MaxFrameSize:          MaxFrameSizeMin,
		MaxHeaderListSize:     1 << 20,
		EnableConnectProtocol: true,
	}
}

func (s Settings) toWireSettings() []http2.Setting {
	out := []http2.Setting{
		{ID: http2.SettingHeaderTableSize, Val: s.HeaderTableSize},
		{ID: http2.SettingMaxConcurrentStreams, Val: s.MaxConcurrentStreams},
		{ID: http2.SettingInitialWindowSize, Val: s.InitialWindowSize},
		{ID: http2.SettingMaxFrameSize, Val: s.MaxFrameSize},
		{ID: http2.SettingMaxHeaderListSize, Val: s.MaxHeaderListSize},
	}
	if s.EnablePush {
		out = append(out, http2.Setting{ID: http2.SettingEnablePush, Val: 1})
	} else {
		out = append(out, http2.Setting{ID: http2.SettingEnablePush, Val: 0})
	}
	if s.EnableConnectProtocol {
		out = append(out, http2.Setting{ID: settingEnableConnectProtocol, Val: 1})
	}
	return out
}

// applySetting updates Settings in place from one incoming http2.Setting,
// per §4.3 "SETTINGS -> applies peer's settings, ACKs."
func (s *Settings) applySetting(set http2.Setting) {
	switch set.ID {
	case http2.SettingHeaderTableSize:
		s.HeaderTableSize = set.Val
	case http2.SettingEnablePush:
		s.EnablePush = set.Val != 0
	case http2.SettingMaxConcurrentStreams:
		s.MaxConcurrentStreams = set.Val
	case http2.SettingInitialWindowSize:
		s.InitialWindowSize = set.Val
	case http2.SettingMaxFrameSize:
		s.MaxFrameSize = set.Val
	case http2.SettingMaxHeaderListSize:
		s.MaxHeaderListSize = set.Val
	case settingEnableConnectProtocol:
		s.EnableConnectProtocol = set.Val != 0
	}
}
