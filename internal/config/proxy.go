package config

import (
	"fmt"
	"net/url"
)

// ProxyConfig extends Config with the reverse proxy settings of sniffproxy.
type ProxyConfig struct {
	*Config
	Target string
	Listen string
}

// LoadProxy reads the shared configuration and the proxy settings. The
// console bind address and log file get their own defaults so both
// binaries can run side by side.
func LoadProxy() (*ProxyConfig, error) {
	cfg, err := Load()
	if err != nil {
		return nil, err
	}
	if cfg.BindAddr == "127.0.0.1:8190" {
		cfg.BindAddr = "127.0.0.1:8193"
		cfg.PortCandidates = []string{"127.0.0.1:8194", "127.0.0.1:8195"}
	}
	if cfg.LogFile == "logs/sniffer.log" {
		cfg.LogFile = "logs/sniffproxy.log"
	}

	pc := &ProxyConfig{
		Config: cfg,
		Target: getEnvOrDefault("PROXY_TARGET", ""),
		Listen: getEnvOrDefault("PROXY_LISTEN", "127.0.0.1:8080"),
	}
	if _, err := pc.TargetURL(); err != nil {
		return nil, err
	}
	return pc, nil
}

// TargetURL parses the upstream the proxy forwards to.
func (p *ProxyConfig) TargetURL() (*url.URL, error) {
	if p.Target == "" {
		return nil, fmt.Errorf("%sPROXY_TARGET is required", envPrefix)
	}
	u, err := url.Parse(p.Target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%sPROXY_TARGET must be an absolute URL, got %q", envPrefix, p.Target)
	}
	return u, nil
}
