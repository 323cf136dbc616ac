package proxytunnel

import (
	"fmt"
	"net"
	"strings"

	"clientcore/internal/authheader"
	"clientcore/internal/http1"
)

// HTTPConnectAuth carries optional Basic/Digest credentials for the
// proxy's 407 challenge (§4.5 "HTTP CONNECT + digest auth retry").
type HTTPConnectAuth struct {
	User string
	Pass string
}

// HTTPStatusError reports a non-2xx CONNECT response.
type HTTPStatusError struct {
	StatusCode int
	Reason     string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("proxytunnel: CONNECT failed: %d %s", e.StatusCode, e.Reason)
}

// DialHTTPConnect issues "CONNECT target HTTP/1.1" over conn (already
// dialed to the proxy). On a 407 Proxy Authentication Required it parses
// the Proxy-Authenticate challenge, retries once with the computed
// Proxy-Authorization header (Basic or Digest, by challenge scheme), and
// gives up after one retry to bound the combined attempt count (§4.5).
// Any bytes already read past the CONNECT response belong to the tunnel
// and are returned in leading so the caller can prepend them to what it
// reads from conn next.
func DialHTTPConnect(conn net.Conn, target string, auth *HTTPConnectAuth) (leading []byte, err error) {
	status, headers, leading, err := doConnect(conn, target, "")
	if err != nil {
		return nil, err
	}
	if status/100 == 2 {
		return leading, nil
	}
	if status != 407 || auth == nil {
		return nil, &HTTPStatusError{StatusCode: status}
	}

	challengeHdr := headers.Get("Proxy-Authenticate")
	if challengeHdr == "" {
		return nil, &HTTPStatusError{StatusCode: status, Reason: "no Proxy-Authenticate challenge"}
	}
	authz, err := buildAuthorization(challengeHdr, target, auth)
	if err != nil {
		return nil, err
	}

	status, _, leading, err = doConnect(conn, target, authz)
	if err != nil {
		return nil, err
	}
	if status/100 != 2 {
		return nil, &HTTPStatusError{StatusCode: status}
	}
	return leading, nil
}

func buildAuthorization(challengeHdr, target string, auth *HTTPConnectAuth) (string, error) {
	ch, err := authheader.ParseChallenge(challengeHdr)
	if err != nil {
		return "", err
	}
	switch strings.ToLower(ch.Scheme) {
	case "basic":
		return authheader.BuildBasic(auth.User, auth.Pass), nil
	case "digest":
		return authheader.BuildDigest(ch, "CONNECT", target, auth.User, auth.Pass)
	default:
		return "", fmt.Errorf("proxytunnel: unsupported proxy auth scheme %q", ch.Scheme)
	}
}

func doConnect(conn net.Conn, target, proxyAuthorization string) (status int, headers *http1.Headers, leading []byte, err error) {
	h := http1.NewHeaders()
	h.Set("Host", target)
	h.Set("Proxy-Connection", "Keep-Alive")
	if proxyAuthorization != "" {
		h.Set("Proxy-Authorization", proxyAuthorization)
	}

	req := http1.BuildRequest("CONNECT", target, h, nil, false)
	if _, err := conn.Write(req); err != nil {
		return 0, nil, nil, err
	}

	p := http1.NewParser(http1.KindResponse)
	p.ConnectRequest = true
	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return 0, nil, nil, err
		}
		done, perr := p.Feed(buf[:n])
		if perr != nil {
			return 0, nil, nil, perr
		}
		if done {
			break
		}
	}
	m := p.Message()
	return m.StatusCode, m.Headers, p.Remaining(), nil
}
