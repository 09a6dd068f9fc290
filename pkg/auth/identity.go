package auth

import (
	"net"
	"strings"

	"autobulk/pkg/config"
)

// caller role
type Role int

const (
	RoleUnauth Role = iota
	RoleProducer
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleProducer:
		return "producer"
	case RoleAdmin:
		return "admin"
	default:
		return "unauth"
	}
}

// security config
type SecConfig struct {
	RPS          float64
	Burst        int
	IPWhitelist  []string
	ProducerKeys map[string]struct{}
	AdminKeys    map[string]struct{}
}

// Open reports whether no API keys are configured, in which case every
// caller is treated as admin.
func (c SecConfig) Open() bool {
	return len(c.ProducerKeys) == 0 && len(c.AdminKeys) == 0
}

// FromConfig builds the gateway settings from the admin listener config.
func FromConfig(a config.AdminConfig) SecConfig {
	return SecConfig{
		RPS:          a.RateLimit.RPS,
		Burst:        a.RateLimit.Burst,
		IPWhitelist:  a.IPWhitelist,
		ProducerKeys: keySet(a.APIKeys.Producer),
		AdminKeys:    keySet(a.APIKeys.Admin),
	}
}

func keySet(keys []string) map[string]struct{} {
	if len(keys) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		m[k] = struct{}{}
	}
	return m
}

// ipWhitelisted matches exact addresses and CIDR ranges.
func ipWhitelisted(ip string, list []string) bool {
	parsed := net.ParseIP(ip)
	for _, w := range list {
		if ip == w {
			return true
		}
		if strings.Contains(w, "/") && parsed != nil {
			if _, n, err := net.ParseCIDR(w); err == nil && n.Contains(parsed) {
				return true
			}
		}
	}
	return false
}
