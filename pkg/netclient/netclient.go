// Package netclient is the public facade over clientcore's internal
// transport stack (§2): construct a Client from a Config, then Do a
// Request and get back a Response, or Dial a Websocket. Adapted from the
// teacher's pkg/outlinews/outlinews.go thin-facade pattern, which wired
// its LoadBalancer/Socks5Server/TUN pieces behind a small surface the
// cmd/ binary called into — here the facade wires dnsresolver,
// proxytunnel, h2, http1, aead and tlsadapt behind orchestrator.Broker
// instead, and exposes wsframe and compress through DialWebsocket and
// CompressionFor.
package netclient

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"go.uber.org/zap"

	"clientcore/internal/aead"
	"clientcore/internal/compress"
	"clientcore/internal/dnsresolver"
	"clientcore/internal/h2"
	"clientcore/internal/http1"
	"clientcore/internal/iodriver"
	"clientcore/internal/orchestrator"
	"clientcore/internal/proxytunnel"
	"clientcore/internal/tlsadapt"
	"clientcore/internal/wsframe"
)

// Client is the package's single entry point: a configured HTTP/1.1 +
// HTTP/2 + Websocket client with DNS resolution, optional proxy
// tunneling and application-level encryption (§1). Do does not compress
// or decompress bodies; codecs are available through CompressionFor.
type Client struct {
	cfg     *orchestrator.Config
	log     *zap.Logger
	dial    *iodriver.NetDriver
	dns     *dnsresolver.Resolver
	sealer  *aead.Sealer
	brokers map[string]*orchestrator.Broker
}

// New builds a Client from cfg. A nil logger defaults to zap.NewNop();
// callers in cmd/clientcore-probe instead build a production zap.Logger
// per §1's ambient-stack logging rules.
func New(cfg *orchestrator.Config, log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Client{
		cfg:     cfg,
		log:     log,
		dial:    iodriver.NewNetDriver(cfg.Dial.Fwmark, cfg.Dial.Timeout),
		dns:     dnsresolver.New(dnsresolver.WithServers(cfg.DNS.Servers...), dnsresolver.WithTimeout(cfg.DNS.Timeout), dnsresolver.WithLogger(log)),
		brokers: make(map[string]*orchestrator.Broker),
	}
	if cfg.DNS.HostsFile != "" {
		if err := c.dns.Hosts().Load(cfg.DNS.HostsFile); err != nil {
			return nil, fmt.Errorf("netclient: loading hosts file: %w", err)
		}
	}
	if cfg.Encryption.Enable {
		sealer, err := aead.New(cfg.Encryption.Passphrase)
		if err != nil {
			return nil, fmt.Errorf("netclient: %w", err)
		}
		c.sealer = sealer
	}
	return c, nil
}

// Do submits a request end to end: resolve host, dial (optionally
// through a SOCKS5/HTTP-CONNECT proxy), TLS handshake with ALPN, then
// speak HTTP/1.1 or HTTP/2 depending on the negotiated protocol, with
// redirect/auth retry handled by an orchestrator.Broker (§4.6).
func (c *Client) Do(ctx context.Context, method string, target *url.URL, headers *http1.Headers, body []byte) (*orchestrator.Response, error) {
	broker := c.brokerFor(target)
	req := orchestrator.NewRequest(method, target)
	if headers != nil {
		req.Headers.Merge(headers)
	}
	req.Body = body
	return broker.Submit(ctx, req)
}

func (c *Client) brokerFor(u *url.URL) *orchestrator.Broker {
	key := u.Scheme + "://" + u.Host
	if b, ok := c.brokers[key]; ok {
		return b
	}
	b := orchestrator.NewBroker(c.cfg, c.log, c.transportFor(u))
	c.brokers[key] = b
	return b
}

// transportFor builds the orchestrator.Transport closure that performs
// one real network attempt for requests to u's origin: connect, maybe
// tunnel through a proxy, TLS+ALPN, then dispatch over H1 or H2.
func (c *Client) transportFor(origin *url.URL) orchestrator.Transport {
	return func(ctx context.Context, req *orchestrator.Request) orchestrator.Event {
		conn, negotiated, err := c.connect(ctx, req.URL)
		if err != nil {
			return orchestrator.Event{Kind: orchestrator.EventConnError, Err: err}
		}
		defer conn.Close()

		if negotiated == "h2" {
			return c.doH2(ctx, conn, req)
		}
		return c.doH1(ctx, conn, req)
	}
}

// connect resolves the host, dials (through a configured proxy if any),
// and completes the TLS handshake for https targets, returning the
// negotiated ALPN protocol ("h2", "http/1.1", or "" for plaintext).
func (c *Client) connect(ctx context.Context, u *url.URL) (net.Conn, string, error) {
	host := u.Hostname()
	port := u.Port()
	if port == "" {
		if u.Scheme == "https" || u.Scheme == "wss" {
			port = "443"
		} else {
			port = "80"
		}
	}

	ip, err := c.dns.Resolve(ctx, host, 4)
	if err != nil {
		return nil, "", err
	}
	target := net.JoinHostPort(ip.String(), port)

	var conn net.Conn
	switch c.cfg.Proxy.Kind {
	case "socks5":
		conn, err = c.dial.Dial(ctx, "tcp", c.cfg.Proxy.Addr)
		if err != nil {
			return nil, "", err
		}
		var auth *proxytunnel.Socks5Auth
		if c.cfg.Proxy.User != "" {
			auth = &proxytunnel.Socks5Auth{User: c.cfg.Proxy.User, Pass: c.cfg.Proxy.Pass}
		}
		if err := proxytunnel.DialSocks5(conn, target, auth); err != nil {
			conn.Close()
			return nil, "", err
		}
	case "http-connect":
		conn, err = c.dial.Dial(ctx, "tcp", c.cfg.Proxy.Addr)
		if err != nil {
			return nil, "", err
		}
		var auth *proxytunnel.HTTPConnectAuth
		if c.cfg.Proxy.User != "" {
			auth = &proxytunnel.HTTPConnectAuth{User: c.cfg.Proxy.User, Pass: c.cfg.Proxy.Pass}
		}
		if _, err := proxytunnel.DialHTTPConnect(conn, target, auth); err != nil {
			conn.Close()
			return nil, "", err
		}
	default:
		conn, err = c.dial.Dial(ctx, "tcp", target)
		if err != nil {
			return nil, "", err
		}
	}

	if u.Scheme != "https" && u.Scheme != "wss" {
		return conn, "", nil
	}

	tlsConn, negotiated, err := tlsadapt.Handshake(ctx, conn, tlsadapt.Config{
		ServerName:         host,
		InsecureSkipVerify: c.cfg.TLS.InsecureSkipVerify,
		NextProtos:         c.cfg.TLS.NextProtos,
	})
	if err != nil {
		conn.Close()
		return nil, "", err
	}
	return tlsConn, negotiated, nil
}

func (c *Client) doH1(ctx context.Context, conn net.Conn, req *orchestrator.Request) orchestrator.Event {
	h := req.Headers
	if h == nil {
		h = http1.NewHeaders()
	}
	h.Set("Host", req.URL.Host)

	body := req.Body
	if c.sealer != nil && len(body) > 0 {
		sealed, err := c.sealer.Seal(body)
		if err != nil {
			return orchestrator.Event{Kind: orchestrator.EventConnError, Err: err}
		}
		body = sealed
	}

	wire := http1.BuildRequest(req.Method, req.URL.RequestURI(), h, body, false)
	if _, err := conn.Write(wire); err != nil {
		return orchestrator.Event{Kind: orchestrator.EventConnError, Err: err}
	}

	p := http1.NewParser(http1.KindResponse)
	buf := make([]byte, 8192)
	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		_ = conn.SetReadDeadline(deadline)
	}
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return orchestrator.Event{Kind: orchestrator.EventTimeout, Err: err}
		}
		done, perr := p.Feed(buf[:n])
		if perr != nil {
			return orchestrator.Event{Kind: orchestrator.EventConnError, Err: perr}
		}
		if done {
			break
		}
	}

	m := p.Message()
	respBody := m.Body
	if c.sealer != nil && len(respBody) > 0 {
		opened, err := c.sealer.Open(respBody)
		if err == nil {
			respBody = opened
		}
	}
	return orchestrator.Event{Kind: orchestrator.EventResponse, Response: &orchestrator.Response{
		StatusCode: m.StatusCode, Reason: m.Reason, Headers: m.Headers, Body: respBody,
	}}
}

func (c *Client) doH2(ctx context.Context, conn net.Conn, req *orchestrator.Request) orchestrator.Event {
	sess := h2.NewSession(conn, c.log)
	if err := sess.Handshake(ctx); err != nil {
		return orchestrator.Event{Kind: orchestrator.EventConnError, Err: err}
	}

	var extra []h2.HeaderField
	req.Headers.EachOriginalCase(func(k, v string) {
		extra = append(extra, h2.HeaderField{Name: k, Value: v})
	})

	body := req.Body
	if c.sealer != nil && len(body) > 0 {
		sealed, err := c.sealer.Seal(body)
		if err != nil {
			return orchestrator.Event{Kind: orchestrator.EventConnError, Err: err}
		}
		body = sealed
	}

	st, err := sess.Request(ctx, req.Method, req.URL.Scheme, req.URL.Host, req.URL.RequestURI(), extra, body)
	if err != nil {
		return orchestrator.Event{Kind: orchestrator.EventConnError, Err: err}
	}
	if err := sess.AwaitResponse(ctx, st); err != nil {
		return orchestrator.Event{Kind: orchestrator.EventConnError, Err: err}
	}

	status := 0
	fmt.Sscanf(st.RespStatus, "%d", &status)
	h := http1.NewHeaders()
	for _, f := range st.RespHeaders {
		if len(f.Name) > 0 && f.Name[0] != ':' {
			h.Add(f.Name, f.Value)
		}
	}
	return orchestrator.Event{Kind: orchestrator.EventResponse, Response: &orchestrator.Response{
		StatusCode: status, Headers: h, Body: st.Body(),
	}}
}

// DialWebsocket connects to target (with TLS for wss) and returns the
// connection together with a wsframe.Assembler limited to 1 MiB messages.
// It does not send the HTTP/1.1 Upgrade request or check for a 101 reply.
// When ALPN selects h2 it closes the connection and returns an error;
// Websocket over H2 is available through h2.Session.OpenWebSocketTunnel.
// The frame codec is wsframe's own, never delegated to a third-party
// Websocket client library (§4.1 "owned core").
func (c *Client) DialWebsocket(ctx context.Context, target *url.URL) (*wsframe.Assembler, net.Conn, error) {
	conn, negotiated, err := c.connect(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	if negotiated == "h2" {
		conn.Close()
		return nil, nil, fmt.Errorf("netclient: H2 websocket tunnel dialing is performed via h2.Session.OpenWebSocketTunnel directly")
	}
	return wsframe.NewAssembler(1 << 20), conn, nil
}

// CompressionFor returns the negotiated codec for a Content-Encoding or
// permessage-deflate name (§6).
func CompressionFor(name string) (compress.Codec, error) {
	return compress.ForMethod(compress.Method(name))
}
