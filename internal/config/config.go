// Package config reads the environment-variable configuration surface
// spec.md §6 defines. Per SPEC_FULL.md §E.1, environment-variable loading
// is explicitly out of scope as a domain concern, so this stays exactly as
// thin as the teacher's own flag-based startup: os.Getenv with documented
// defaults, no config file, no remote source.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	// DefaultOffshorePort is the offshore's default TCP listen port.
	DefaultOffshorePort = 9999
	// DefaultShipProxyPort is the ship's default local HTTP proxy port.
	DefaultShipProxyPort = 8080

	// DefaultReconnectDelay is the ship's fixed minimum delay before
	// retrying a dropped link, per spec.md §4.B ("≥ 1 second").
	DefaultReconnectDelay = time.Second
	// DefaultUpstreamWaitTimeout bounds how long a ship transaction will
	// wait, queued, for the link to become available before failing with
	// UpstreamUnavailable. See SPEC_FULL.md Open Question (b).
	DefaultUpstreamWaitTimeout = 15 * time.Second
)

// ShipConfig is the ship node's runtime configuration.
type ShipConfig struct {
	ProxyPort           int
	OffshoreHost        string
	OffshorePort        int
	ReconnectDelay      time.Duration
	UpstreamWaitTimeout time.Duration
	StatusPort          int
}

// OffshoreConfig is the offshore node's runtime configuration.
type OffshoreConfig struct {
	ListenPort int
}

// ShipFromEnv builds a ShipConfig from the process environment, applying
// spec.md's documented defaults. OFFSHORE_HOST is required; all other
// variables are optional.
func ShipFromEnv() (ShipConfig, error) {
	host := os.Getenv("OFFSHORE_HOST")
	if host == "" {
		return ShipConfig{}, fmt.Errorf("config: OFFSHORE_HOST is required on the ship")
	}

	cfg := ShipConfig{
		ProxyPort:           envInt("SHIP_PROXY_PORT", DefaultShipProxyPort),
		OffshoreHost:        host,
		OffshorePort:        envInt("OFFSHORE_PORT", DefaultOffshorePort),
		ReconnectDelay:      DefaultReconnectDelay,
		UpstreamWaitTimeout: DefaultUpstreamWaitTimeout,
		StatusPort:          envInt("SHIP_STATUS_PORT", 0),
	}
	return cfg, nil
}

// OffshoreFromEnv builds an OffshoreConfig from the process environment.
func OffshoreFromEnv() OffshoreConfig {
	return OffshoreConfig{
		ListenPort: envInt("OFFSHORE_PORT", DefaultOffshorePort),
	}
}

func envInt(name string, def int) int {
	v := os.Getenv(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}
