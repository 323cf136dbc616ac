package dnsresolver

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// EnvOverridePrefix names the environment variable consulted before any
// cache/network lookup, e.g. CLIENTCORE_RESOLVE_example_com=203.0.113.9:
// the dots of the lower-cased domain become underscores, and the same
// variable is used for both families (§4.4 "env-var override"), grounded on the teacher's config.go pattern
// of reading process environment for deployment-time overrides.
const EnvOverridePrefix = "CLIENTCORE_RESOLVE_"

// Resolver is a minimal recursive DNS client: it speaks directly to a
// configured list of upstream servers over UDP, it does not walk the
// root/TLD/authority chain itself (§4.4 Non-goals).
type Resolver struct {
	mu      sync.Mutex
	servers []string // host:port
	timeout time.Duration
	source  net.IP // optional bind address for outbound queries

	cache     *Cache
	blacklist *Blacklist
	hosts     *HostsFile

	log *zap.Logger
}

// Option configures a Resolver at construction time.
type Option func(*Resolver)

func WithServers(servers ...string) Option {
	return func(r *Resolver) { r.servers = append([]string(nil), servers...) }
}

func WithTimeout(d time.Duration) Option {
	return func(r *Resolver) { r.timeout = d }
}

func WithSourceAddress(ip net.IP) Option {
	return func(r *Resolver) { r.source = ip }
}

func WithLogger(log *zap.Logger) Option {
	return func(r *Resolver) { r.log = log }
}

func New(opts ...Option) *Resolver {
	r := &Resolver{
		servers:   []string{"8.8.8.8:53", "1.1.1.1:53"},
		timeout:   5 * time.Second,
		cache:     NewCache(),
		blacklist: NewBlacklist(),
		hosts:     NewHostsFile(),
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Resolver) Cache() *Cache         { return r.cache }
func (r *Resolver) Blacklist() *Blacklist { return r.blacklist }
func (r *Resolver) Hosts() *HostsFile     { return r.hosts }

// shuffledServers returns the configured server list in random order so
// repeated lookups spread load across upstreams, per §4.4 "server
// shuffle".
func (r *Resolver) shuffledServers() []string {
	r.mu.Lock()
	servers := append([]string(nil), r.servers...)
	r.mu.Unlock()
	rand.Shuffle(len(servers), func(i, j int) { servers[i], servers[j] = servers[j], servers[i] })
	return servers
}

// Resolve returns an IP address for domain, trying in order: environment
// override, hosts file, blacklist rejection, cache, then the network
// (§4.4). family is 4 or 6.
func (r *Resolver) Resolve(ctx context.Context, domain string, family int) (net.IP, error) {
	domain = strings.ToLower(ToASCII(domain))

	if ip := r.envOverride(domain); ip != nil {
		return ip, nil
	}
	if ip, ok := r.hosts.Lookup(family, domain); ok {
		return ip, nil
	}
	if r.blacklist.Contains(domain) {
		return nil, &ForbiddenError{Domain: domain}
	}
	if ip, forbidden, ok := r.cache.Get(family, domain); ok {
		if forbidden {
			return nil, &ForbiddenError{Domain: domain}
		}
		return ip, nil
	}

	ip, ttl, err := r.query(ctx, domain, family)
	if err != nil {
		return nil, err
	}
	r.cache.Set(family, domain, ip, ttl)
	return ip, nil
}

// ForbiddenError is returned when domain is blacklisted (§4.4).
type ForbiddenError struct{ Domain string }

func (e *ForbiddenError) Error() string { return fmt.Sprintf("dns: domain %q is blacklisted", e.Domain) }

func (r *Resolver) envOverride(domain string) net.IP {
	key := EnvOverridePrefix + strings.ReplaceAll(domain, ".", "_")
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	return net.ParseIP(v)
}

// query sends the A/AAAA request to each configured server in shuffled
// order, trying the next server on timeout, returning the first
// successful parse. §8 invariant: 0 answers with RCODE=0 is "no record",
// not an error, and is NOT retried against other servers.
func (r *Resolver) query(ctx context.Context, domain string, family int) (net.IP, time.Duration, error) {
	qtype := TypeA
	if family == 6 {
		qtype = TypeAAAA
	}

	id := uint16(rand.Intn(1 << 16))
	payload, err := BuildQuery(id, domain, qtype)
	if err != nil {
		return nil, 0, err
	}

	var lastErr error
	for _, server := range r.shuffledServers() {
		ip, ttl, err := r.queryServer(ctx, server, payload, id, domain, qtype)
		if err == nil {
			return ip, ttl, nil
		}
		if _, isNoRecord := asNoRecord(err); isNoRecord {
			return nil, 0, err
		}
		lastErr = err
		r.log.Warn("dns query failed, trying next server", zap.String("server", server), zap.Error(err))
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("dns: no servers configured")
	}
	return nil, 0, lastErr
}

func asNoRecord(err error) (error, bool) {
	if err == ErrNoRecord {
		return err, true
	}
	return nil, false
}

func (r *Resolver) queryServer(ctx context.Context, server string, payload []byte, id uint16, domain string, qtype uint16) (net.IP, time.Duration, error) {
	deadline := time.Now().Add(r.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	var laddr *net.UDPAddr
	if r.source != nil {
		laddr = &net.UDPAddr{IP: r.source}
	}
	raddr, err := net.ResolveUDPAddr("udp", server)
	if err != nil {
		return nil, 0, err
	}
	conn, err := net.DialUDP("udp", laddr, raddr)
	if err != nil {
		return nil, 0, err
	}
	defer conn.Close()

	if err := conn.SetDeadline(deadline); err != nil {
		return nil, 0, err
	}
	if _, err := conn.Write(payload); err != nil {
		return nil, 0, err
	}

	buf := make([]byte, 4096)
	n, err := conn.Read(buf)
	if err != nil {
		return nil, 0, err
	}

	msg, err := ParseResponse(buf[:n])
	if err != nil {
		return nil, 0, err
	}
	if msg.ID != id {
		return nil, 0, fmt.Errorf("%w: response id mismatch", ErrMalformed)
	}
	if msg.RCode != RCodeNoError {
		return nil, 0, &RCodeError{Code: msg.RCode}
	}

	for _, a := range msg.Answers {
		if a.Type == qtype && a.IP != nil {
			return a.IP, time.Duration(a.TTL) * time.Second, nil
		}
	}
	return nil, 0, ErrNoRecord
}

// RCodeError reports a non-zero RCODE from an upstream server.
type RCodeError struct{ Code int }

func (e *RCodeError) Error() string { return fmt.Sprintf("dns: server returned rcode=%d", e.Code) }
