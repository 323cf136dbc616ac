package h2

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/hpack"
)

// ErrGoingAway is returned by Request once the session has sent or received
// GOAWAY (§4.3 "no new streams").
var ErrGoingAway = errors.New("h2: session is going away")

// Session owns one H2 connection's HPACK contexts and its stream map
// (§3 "H2 Stream" / §4.3), grounded on the teacher's rawH2Conn.
type Session struct {
	conn net.Conn
	bw   *bufio.Writer
	fr   *http2.Framer

	wmu sync.Mutex
	rmu sync.Mutex

	hpackEncBuf *bytes.Buffer
	hpackEnc    *hpack.Encoder
	hpackDec    *hpack.Decoder

	mu             sync.Mutex
	streams        map[uint32]*Stream
	nextStreamID   uint32
	local          Settings
	peer           Settings
	peerAcked      bool
	connSendWindow int64
	connRecvWindow int64
	goAwaySent     bool
	goAwayRecv     bool
	closed         bool
	lastPeerStream uint32
	origins        []Origin

	pending map[uint32]*pendingHeaders

	log *zap.Logger
}

type pendingHeaders struct {
	block     []byte
	endStream bool
}

type tunnelPipe struct {
	pr *io.PipeReader
	pw *io.PipeWriter
}

// NewSession wraps conn (already TLS/ALPN negotiated to "h2" by the caller)
// in an H2 client session.
func NewSession(conn net.Conn, log *zap.Logger) *Session {
	if log == nil {
		log = zap.NewNop()
	}
	br := bufio.NewReaderSize(conn, 32*1024)
	bw := bufio.NewWriterSize(conn, 32*1024)
	fr := http2.NewFramer(bw, br)
	fr.ReadMetaHeaders = nil // the session decodes HPACK itself

	var encBuf bytes.Buffer
	s := &Session{
		conn:           conn,
		bw:             bw,
		fr:             fr,
		hpackEncBuf:    &encBuf,
		hpackEnc:       hpack.NewEncoder(&encBuf),
		streams:        make(map[uint32]*Stream),
		nextStreamID:   1,
		local:          DefaultLocalSettings(),
		connSendWindow: 65535,
		connRecvWindow: 65535,
		pending:        make(map[uint32]*pendingHeaders),
		log:            log,
	}
	s.hpackDec = hpack.NewDecoder(4096, nil)
	return s
}

// Handshake sends the client preface and local SETTINGS (§4.3: "Client
// submits its own SETTINGS on session start including
// ENABLE_CONNECT_PROTOCOL=1"), then waits for and ACKs the peer's SETTINGS.
func (s *Session) Handshake(ctx context.Context) error {
	s.wmu.Lock()
	_, err := io.WriteString(s.bw, http2.ClientPreface)
	if err == nil {
		err = s.fr.WriteSettings(s.local.toWireSettings()...)
	}
	if err == nil {
		err = s.bw.Flush()
	}
	s.wmu.Unlock()
	if err != nil {
		return fmt.Errorf("h2: handshake preface/settings: %w", err)
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := s.readFrame()
		if err != nil {
			return fmt.Errorf("h2: handshake read: %w", err)
		}
		sf, ok := f.(*http2.SettingsFrame)
		if !ok {
			// SETTINGS must come before any other frame from a compliant
			// peer during handshake, but tolerate a stray WINDOW_UPDATE.
			continue
		}
		if sf.IsAck() {
			s.mu.Lock()
			s.peerAcked = true
			s.mu.Unlock()
			continue
		}
		s.mu.Lock()
		_ = sf.ForeachSetting(func(set http2.Setting) error {
			s.peer.applySetting(set)
			return nil
		})
		s.mu.Unlock()
		return s.writeFrame(func() error { return s.fr.WriteSettingsAck() })
	}
}

// openStream allocates the next odd client-initiated stream id (§3
// invariant: "stream ids strictly increasing per connection").
func (s *Session) openStream() *Stream {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextStreamID
	s.nextStreamID += 2
	st := &Stream{ID: id, State: StreamIdle, sendWindow: int64(s.peerInitialWindow()), recvWindow: int64(s.local.InitialWindowSize)}
	s.streams[id] = st
	return st
}

func (s *Session) peerInitialWindow() uint32 {
	if s.peer.InitialWindowSize == 0 {
		return 65535
	}
	return s.peer.InitialWindowSize
}

// buildHeaderBlock HPACK-encodes the pseudo-headers (in order) followed by
// regular headers with lowercased names, per §4.3 "Client request over H2"
// and the §8 invariant on pseudo-header placement.
func (s *Session) buildHeaderBlock(method, scheme, authority, path, protocol string, extra []HeaderField) ([]byte, error) {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	s.hpackEncBuf.Reset()

	write := func(name, value string) error {
		return s.hpackEnc.WriteField(hpack.HeaderField{Name: name, Value: value})
	}
	if err := write(":method", method); err != nil {
		return nil, err
	}
	if err := write(":scheme", scheme); err != nil {
		return nil, err
	}
	if err := write(":authority", authority); err != nil {
		return nil, err
	}
	if err := write(":path", path); err != nil {
		return nil, err
	}
	if protocol != "" {
		if err := write(":protocol", protocol); err != nil {
			return nil, err
		}
	}
	for _, h := range extra {
		if err := write(strings.ToLower(h.Name), h.Value); err != nil {
			return nil, err
		}
	}
	out := make([]byte, s.hpackEncBuf.Len())
	copy(out, s.hpackEncBuf.Bytes())
	return out, nil
}

// Request issues an ordinary H2 request: HEADERS (+CONTINUATION if the
// block exceeds MaxFrameSize) then DATA, honoring flow control (§4.3).
func (s *Session) Request(ctx context.Context, method, scheme, authority, path string, headers []HeaderField, body []byte) (*Stream, error) {
	if s.isGoingAway() {
		return nil, ErrGoingAway
	}
	block, err := s.buildHeaderBlock(method, scheme, authority, path, "", headers)
	if err != nil {
		return nil, err
	}
	st := s.openStream()
	st.State = StreamOpen
	st.ReqHeaders = append([]HeaderField{{":method", method}, {":scheme", scheme}, {":authority", authority}, {":path", path}}, headers...)

	endStream := len(body) == 0
	if err := s.writeHeaderBlock(st.ID, block, endStream); err != nil {
		return nil, err
	}
	if endStream {
		st.closeLocal()
		return st, nil
	}
	if err := s.WriteData(st.ID, body, true); err != nil {
		return nil, err
	}
	return st, nil
}

// OpenWebSocketTunnel performs the RFC 8441 Extended CONNECT handshake
// (§4.3 "Websocket over H2"): ":method=CONNECT", ":protocol=websocket",
// plus the Websocket handshake headers. A 2xx response opens the tunnel.
func (s *Session) OpenWebSocketTunnel(ctx context.Context, scheme, authority, path string, wsHeaders []HeaderField) (*Stream, io.ReadWriteCloser, error) {
	if s.isGoingAway() {
		return nil, nil, ErrGoingAway
	}
	block, err := s.buildHeaderBlock("CONNECT", scheme, authority, path, "websocket", wsHeaders)
	if err != nil {
		return nil, nil, err
	}
	st := s.openStream()
	st.State = StreamOpen
	st.isExtendedConnect = true

	if err := s.writeHeaderBlock(st.ID, block, false); err != nil {
		return nil, nil, err
	}

	status, err := s.awaitResponseHeaders(ctx, st)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasPrefix(status, "2") {
		return nil, nil, fmt.Errorf("h2: extended CONNECT rejected, status %s", status)
	}

	pr, pw := io.Pipe()
	st.tunnel = &tunnelPipe{pr: pr, pw: pw}
	return st, &streamReadWriteCloser{sess: s, st: st, r: pr}, nil
}

type streamReadWriteCloser struct {
	sess *Session
	st   *Stream
	r    *io.PipeReader
}

func (c *streamReadWriteCloser) Read(p []byte) (int, error) { return c.r.Read(p) }
func (c *streamReadWriteCloser) Write(p []byte) (int, error) {
	if err := c.sess.WriteData(c.st.ID, p, false); err != nil {
		return 0, err
	}
	return len(p), nil
}
func (c *streamReadWriteCloser) Close() error {
	_ = c.sess.RSTStream(c.st.ID, ErrCodeCancel)
	return c.r.Close()
}

// awaitResponseHeaders blocks the calling goroutine reading frames directly
// (used only before ReadLoop has started, i.e. during the synchronous
// handshake of a brand-new tunnel stream) until stream st's response
// HEADERS are fully decoded, returning ":status".
func (s *Session) awaitResponseHeaders(ctx context.Context, st *Stream) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		f, err := s.readFrame()
		if err != nil {
			return "", err
		}
		status, handled, err := s.dispatch(f)
		if err != nil {
			return "", err
		}
		if handled && f.Header().StreamID == st.ID {
			if status != "" {
				return status, nil
			}
			if st.State == StreamClosed || st.endStreamRecv {
				return st.RespStatus, nil
			}
		}
	}
}

// AwaitResponse blocks the calling goroutine, reading frames directly until
// stream st's response headers and body (DATA frames up to END_STREAM) have
// both arrived. Used for a plain request/response exchange, where the caller
// wants the whole reply before proceeding — as opposed to OpenWebSocketTunnel,
// where headers alone complete the handshake and DATA keeps flowing.
func (s *Session) AwaitResponse(ctx context.Context, st *Stream) error {
	for {
		if st.endStreamRecv {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := s.readFrame()
		if err != nil {
			return err
		}
		if _, _, err := s.dispatch(f); err != nil {
			return err
		}
	}
}

// WriteData sends body on streamID as DATA frames no larger than the peer's
// negotiated MAX_FRAME_SIZE (at least MaxFrameSizeMin). It does not wait
// for WINDOW_UPDATE: a frame that would exceed the current connection or
// stream window is not sent, and an error is returned with the rest of
// data unsent (§4.3 "Flow control").
func (s *Session) WriteData(streamID uint32, data []byte, endStream bool) error {
	maxFrame := s.peerMaxFrameSize()
	off := 0
	for {
		chunk := data[off:]
		end := endStream && off+len(chunk) == len(data)
		if len(chunk) > maxFrame {
			chunk = chunk[:maxFrame]
			end = false
		}
		if err := s.waitWindow(streamID, int64(len(chunk))); err != nil {
			return err
		}
		if err := s.writeFrame(func() error { return s.fr.WriteData(streamID, end, chunk) }); err != nil {
			return err
		}
		s.consumeSendWindow(streamID, int64(len(chunk)))
		off += len(chunk)
		if off >= len(data) {
			if endStream {
				s.mu.Lock()
				if st := s.streams[streamID]; st != nil {
					st.closeLocal()
				}
				s.mu.Unlock()
			}
			return nil
		}
	}
}

func (s *Session) peerMaxFrameSize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.peer.MaxFrameSize < MaxFrameSizeMin {
		return MaxFrameSizeMin
	}
	return int(s.peer.MaxFrameSize)
}

func (s *Session) waitWindow(streamID uint32, n int64) error {
	// Simplified credit check: real deployments would block/retry on
	// WINDOW_UPDATE; this session trusts the default windows are ample for
	// request/response and WS-tunnel payloads and only refuses an
	// individual write that would exceed the connection window outright.
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > s.connSendWindow {
		return fmt.Errorf("h2: %w: write of %d exceeds connection window %d", errFlowControl, n, s.connSendWindow)
	}
	if st, ok := s.streams[streamID]; ok && n > st.sendWindow {
		return fmt.Errorf("h2: %w: write of %d exceeds stream window %d", errFlowControl, n, st.sendWindow)
	}
	return nil
}

var errFlowControl = errors.New("flow control error")

func (s *Session) consumeSendWindow(streamID uint32, n int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connSendWindow -= n
	if st, ok := s.streams[streamID]; ok {
		st.sendWindow -= n
	}
}

func (s *Session) writeHeaderBlock(streamID uint32, block []byte, endStream bool) error {
	maxFrame := s.peerMaxFrameSize()
	if len(block) <= maxFrame {
		return s.writeFrame(func() error {
			return s.fr.WriteHeaders(http2.HeadersFrameParam{StreamID: streamID, BlockFragment: block, EndHeaders: true, EndStream: endStream})
		})
	}
	first := block[:maxFrame]
	rest := block[maxFrame:]
	if err := s.writeFrame(func() error {
		return s.fr.WriteHeaders(http2.HeadersFrameParam{StreamID: streamID, BlockFragment: first, EndHeaders: false, EndStream: endStream})
	}); err != nil {
		return err
	}
	for len(rest) > 0 {
		chunk := rest
		end := len(chunk) <= maxFrame
		if !end {
			chunk = chunk[:maxFrame]
		}
		if err := s.writeFrame(func() error {
			return s.fr.WriteContinuation(streamID, end, chunk)
		}); err != nil {
			return err
		}
		rest = rest[len(chunk):]
	}
	return nil
}

// ReadLoop drives the session until ctx is cancelled or an unrecoverable
// read error occurs (§4.3 frame dispatch table). It is meant to run in its
// own goroutine once past the synchronous handshake/tunnel-open calls.
func (s *Session) ReadLoop(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		f, err := s.readFrame()
		if err != nil {
			return err
		}
		if _, _, err := s.dispatch(f); err != nil {
			s.log.Warn("h2 frame dispatch error", zap.Error(err))
		}
	}
}

// dispatch handles one frame per the table in §4.3. It returns the
// stream's ":status" when a HEADERS/CONTINUATION block just finished
// decoding, and handled=true when the frame was stream-scoped and mapped
// to a known stream.
func (s *Session) dispatch(f http2.Frame) (status string, handled bool, err error) {
	switch ff := f.(type) {
	case *http2.DataFrame:
		s.mu.Lock()
		st := s.streams[ff.StreamID]
		s.mu.Unlock()
		if st == nil {
			return "", false, nil
		}
		data := ff.Data()
		if len(data) > 0 {
			if st.tunnel != nil {
				_, _ = st.tunnel.pw.Write(data)
			} else {
				st.bodyBuf.Write(data)
			}
			_ = s.writeFrame(func() error {
				_ = s.fr.WriteWindowUpdate(0, uint32(len(data)))
				return s.fr.WriteWindowUpdate(ff.StreamID, uint32(len(data)))
			})
		}
		if ff.StreamEnded() {
			st.endStreamRecv = true
			st.closeRemote()
			if st.tunnel != nil {
				_ = st.tunnel.pw.Close()
			}
		}
		return "", true, nil

	case *http2.HeadersFrame, *http2.ContinuationFrame:
		return s.accumulateHeaders(f)

	case *http2.SettingsFrame:
		if ff.IsAck() {
			return "", false, nil
		}
		s.mu.Lock()
		_ = ff.ForeachSetting(func(set http2.Setting) error {
			s.peer.applySetting(set)
			return nil
		})
		s.mu.Unlock()
		return "", false, s.writeFrame(func() error { return s.fr.WriteSettingsAck() })

	case *http2.PingFrame:
		if ff.IsAck() {
			return "", false, nil
		}
		return "", false, s.writeFrame(func() error { return s.fr.WritePing(true, ff.Data) })

	case *http2.GoAwayFrame:
		s.mu.Lock()
		s.goAwayRecv = true
		s.mu.Unlock()
		return "", false, nil

	case *http2.RSTStreamFrame:
		s.mu.Lock()
		st := s.streams[ff.StreamID]
		if st != nil {
			st.State = StreamClosed
			if st.tunnel != nil {
				_ = st.tunnel.pw.CloseWithError(fmt.Errorf("h2: RST_STREAM code=%v", ff.ErrCode))
			}
		}
		s.mu.Unlock()
		return "", true, nil

	case *http2.WindowUpdateFrame:
		s.mu.Lock()
		if ff.StreamID == 0 {
			s.connSendWindow += int64(ff.Increment)
		} else if st := s.streams[ff.StreamID]; st != nil {
			st.sendWindow += int64(ff.Increment)
		}
		s.mu.Unlock()
		return "", false, nil

	case *http2.PriorityFrame:
		// §4.3: "recorded, not enforced".
		return "", false, nil

	case *http2.UnknownFrame:
		const frameTypeOrigin = 0xc
		if ff.Header().Type == frameTypeOrigin {
			s.recordOrigin(ff.Payload())
		}
		return "", false, nil

	default:
		return "", false, nil
	}
}

func (s *Session) accumulateHeaders(f http2.Frame) (status string, handled bool, err error) {
	var streamID uint32
	var frag []byte
	var endHeaders, endStream bool

	switch ff := f.(type) {
	case *http2.HeadersFrame:
		streamID, frag, endHeaders, endStream = ff.StreamID, ff.HeaderBlockFragment(), ff.HeadersEnded(), ff.StreamEnded()
	case *http2.ContinuationFrame:
		streamID, frag, endHeaders = ff.StreamID, ff.HeaderBlockFragment(), ff.HeadersEnded()
	}

	pend := s.pending[streamID]
	if pend == nil {
		pend = &pendingHeaders{}
		s.pending[streamID] = pend
	}
	pend.block = append(pend.block, frag...)
	if endStream {
		pend.endStream = true
	}
	if !endHeaders {
		return "", true, nil
	}
	delete(s.pending, streamID)

	s.mu.Lock()
	st := s.streams[streamID]
	s.mu.Unlock()
	if st == nil {
		return "", false, nil
	}

	var fields []HeaderField
	s.hpackDec.SetEmitFunc(func(hf hpack.HeaderField) {
		fields = append(fields, HeaderField{Name: hf.Name, Value: hf.Value})
		if hf.Name == ":status" {
			status = hf.Value
		}
	})
	if _, derr := s.hpackDec.Write(pend.block); derr != nil {
		return "", true, fmt.Errorf("h2: hpack decode: %w", derr)
	}
	st.RespHeaders = fields
	st.RespStatus = status

	if pend.endStream {
		st.endStreamRecv = true
		st.closeRemote()
	}
	return status, true, nil
}

func (s *Session) isGoingAway() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.goAwaySent || s.goAwayRecv || s.closed
}

// Ping sends a PING frame carrying payload and expects the peer to echo it
// with ACK (§4.3 "used for liveness probes").
func (s *Session) Ping(payload [8]byte) error {
	return s.writeFrame(func() error { return s.fr.WritePing(false, payload) })
}

// GoAway marks the session terminating and tells the peer the last stream
// id it will process (§4.3 "Session-level errors -> GOAWAY").
func (s *Session) GoAway(lastStreamID uint32, code ErrCode) error {
	s.mu.Lock()
	s.goAwaySent = true
	s.mu.Unlock()
	return s.writeFrame(func() error { return s.fr.WriteGoAway(lastStreamID, code.wire(), nil) })
}

// RSTStream closes a stream with the given error code (§4.3 "Stream-level
// errors -> RST_STREAM").
func (s *Session) RSTStream(streamID uint32, code ErrCode) error {
	s.mu.Lock()
	if st, ok := s.streams[streamID]; ok {
		st.State = StreamClosed
	}
	s.mu.Unlock()
	return s.writeFrame(func() error { return s.fr.WriteRSTStream(streamID, code.wire()) })
}

// Close tears down the underlying connection.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()
	return s.conn.Close()
}

func (s *Session) readFrame() (http2.Frame, error) {
	s.rmu.Lock()
	defer s.rmu.Unlock()
	return s.fr.ReadFrame()
}

func (s *Session) writeFrame(fn func() error) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := fn(); err != nil {
		return err
	}
	return s.bw.Flush()
}
