// Package orchestrator implements the client's connection-context state
// machine (§4.6 "Client orchestrator"): the broker Event/Disposition
// state machine that replaces the original's goto-based control flow,
// the request queue, redirect/auth-retry bookkeeping and the ping loop.
// The compression/AEAD/DNS/proxy collaborators are not wired here: the
// caller supplies them inside the Transport a Broker calls. Grounded on the teacher's internal/config.go (defaulting
// style) and the upstream-selection/health-tracking ownership pattern of
// its (now-removed) LoadBalancer.
package orchestrator

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the client's top-level configuration (§4.6 "Config"),
// loaded from YAML with defaulting exactly like the teacher's
// LoadConfig/normalize pair.
type Config struct {
	Dial struct {
		Timeout   time.Duration `yaml:"timeout"`
		Fwmark    uint32        `yaml:"fwmark"`
		KeepAlive time.Duration `yaml:"keep_alive"`
	} `yaml:"dial"`

	Proxy ProxyConfig `yaml:"proxy"`
	DNS   DNSConfig   `yaml:"dns"`

	MaxAttempts      int           `yaml:"max_attempts"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
	ResponseTimeout  time.Duration `yaml:"response_timeout"`
	CompressionOrder []string      `yaml:"compression_order"`

	Encryption struct {
		Enable     bool   `yaml:"enable"`
		Passphrase string `yaml:"passphrase"`
	} `yaml:"encryption"`

	TLS struct {
		InsecureSkipVerify bool     `yaml:"insecure_skip_verify"`
		NextProtos         []string `yaml:"next_protos"`
	} `yaml:"tls"`

	Metrics struct {
		Enable bool   `yaml:"enable"`
		Listen string `yaml:"listen"`
	} `yaml:"metrics"`

	LogLevel string `yaml:"log_level"`
}

// ProxyConfig selects an optional upstream SOCKS5/HTTP-CONNECT tunnel
// (§4.5).
type ProxyConfig struct {
	Kind string `yaml:"kind"` // "", "socks5", "http-connect"
	Addr string `yaml:"addr"`
	User string `yaml:"user"`
	Pass string `yaml:"pass"`
}

// DNSConfig configures the recursive resolver (§4.4).
type DNSConfig struct {
	Servers   []string      `yaml:"servers"`
	Timeout   time.Duration `yaml:"timeout"`
	HostsFile string        `yaml:"hosts_file"`
}

// LoadConfig reads and defaults a Config from a YAML file.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, err
	}
	normalize(&c)
	return &c, nil
}

// normalize fills in defaults, mirroring the teacher's LoadConfig body.
func normalize(c *Config) {
	if c.Dial.Timeout == 0 {
		c.Dial.Timeout = 10 * time.Second
	}
	if c.Dial.KeepAlive == 0 {
		c.Dial.KeepAlive = 30 * time.Second
	}
	if c.DNS.Timeout == 0 {
		c.DNS.Timeout = 5 * time.Second
	}
	if len(c.DNS.Servers) == 0 {
		c.DNS.Servers = []string{"8.8.8.8:53", "1.1.1.1:53"}
	}
	if c.MaxAttempts == 0 {
		c.MaxAttempts = 5
	}
	if c.PingInterval == 0 {
		c.PingInterval = 30 * time.Second
	}
	if c.PingTimeout == 0 {
		c.PingTimeout = 5 * time.Second
	}
	if c.ResponseTimeout == 0 {
		c.ResponseTimeout = 30 * time.Second
	}
	if len(c.CompressionOrder) == 0 {
		c.CompressionOrder = []string{"br", "zstd", "gzip", "deflate"}
	}
	if len(c.TLS.NextProtos) == 0 {
		c.TLS.NextProtos = []string{"h2", "http/1.1"}
	}
	if c.Metrics.Listen == "" {
		c.Metrics.Listen = "127.0.0.1:9090"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}
