package wsframe_test

import (
	"crypto/sha1"
	"encoding/base64"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"clientcore/internal/http1"
	"clientcore/internal/wsframe"
)

// These tests dial a reference github.com/gorilla/websocket server and
// speak to it using only this package's owned frame codec, confirming
// wsframe's encode/decode is wire-compatible with a third-party
// implementation rather than only internally self-consistent.

const wsGUID = "258EAFA5-E914-47DA-95CA-C5AB0DC85B11"

func acceptKey(clientKey string) string {
	h := sha1.New()
	h.Write([]byte(clientKey + wsGUID))
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

func TestInteropEchoAgainstGorillaServer(t *testing.T) {
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("server upgrade: %v", err)
			return
		}
		defer conn.Close()
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.WriteMessage(mt, data)
	}))
	defer srv.Close()

	u, _ := url.Parse(srv.URL)
	conn, err := net.Dial("tcp", u.Host)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()

	clientKey := "dGhlIHNhbXBsZSBub25jZQ=="
	h := http1.NewHeaders()
	h.Set("Host", u.Host)
	h.Set("Upgrade", "websocket")
	h.Set("Connection", "Upgrade")
	h.Set("Sec-WebSocket-Key", clientKey)
	h.Set("Sec-WebSocket-Version", "13")
	wire := http1.BuildRequest("GET", "/", h, nil, false)
	if _, err := conn.Write(wire); err != nil {
		t.Fatal(err)
	}

	p := http1.NewParser(http1.KindResponse)
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatal(err)
		}
		done, perr := p.Feed(buf[:n])
		if perr != nil {
			t.Fatal(perr)
		}
		if done {
			break
		}
	}
	m := p.Message()
	if m.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("expected 101, got %d", m.StatusCode)
	}
	if got := m.Headers.Get("Sec-WebSocket-Accept"); got != acceptKey(clientKey) {
		t.Fatalf("accept key mismatch: got %q", got)
	}

	payload := []byte("hello from clientcore")
	frame := wsframe.Encode(wsframe.EncodeOptions{Fin: true, Opcode: wsframe.OpText, Payload: payload, Mask: true})
	if _, err := conn.Write(frame); err != nil {
		t.Fatal(err)
	}

	leading := p.Remaining()
	dec := wsframe.NewDecoder(true)
	var got *wsframe.Frame
	readBuf := append([]byte{}, leading...)
	tmp := make([]byte, 4096)
	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for got == nil {
		res, fr, consumed, _ := dec.Decode(readBuf)
		if res == wsframe.Got {
			got = fr
			_ = consumed
			break
		}
		n, err := conn.Read(tmp)
		if err != nil {
			t.Fatal(err)
		}
		readBuf = append(readBuf, tmp[:n]...)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("echo mismatch: got %q", got.Payload)
	}
}

