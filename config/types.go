package config

import "time"

// RPC configures the JSON-RPC listener. Timeouts are in seconds.
type RPC struct {
	ListenAddress      string  `toml:"ListenAddress"`
	MaxConnections     int     `toml:"MaxConnections"`
	ReadHeaderTimeout  int     `toml:"ReadHeaderTimeout"`
	ReadTimeout        int     `toml:"ReadTimeout"`
	WriteTimeout       int     `toml:"WriteTimeout"`
	IdleTimeout        int     `toml:"IdleTimeout"`
	RateLimitPerSecond float64 `toml:"RateLimitPerSecond"`
	RateLimitBurst     int     `toml:"RateLimitBurst"`
	// IdempotencyDB is the sqlite file remembering Idempotency-Key responses.
	// Empty disables the cache.
	IdempotencyDB string `toml:"IdempotencyDB"`
	Auth          Auth   `toml:"auth"`
}

// Auth configures bearer tokens for admin_* methods.
type Auth struct {
	JWTSecretEnv string `toml:"JWTSecretEnv"`
	Issuer       string `toml:"Issuer"`
	Audience     string `toml:"Audience"`
}

func seconds(v int) time.Duration { return time.Duration(v) * time.Second }

func (r RPC) ReadHeaderTimeoutDuration() time.Duration { return seconds(r.ReadHeaderTimeout) }
func (r RPC) ReadTimeoutDuration() time.Duration       { return seconds(r.ReadTimeout) }
func (r RPC) WriteTimeoutDuration() time.Duration      { return seconds(r.WriteTimeout) }
func (r RPC) IdleTimeoutDuration() time.Duration       { return seconds(r.IdleTimeout) }

// Policy holds the rental engine knobs.
type Policy struct {
	AvailabilityLock          string `toml:"AvailabilityLock"`
	RequestTTLSeconds         uint64 `toml:"RequestTTLSeconds"`
	PaymentTTLSeconds         uint64 `toml:"PaymentTTLSeconds"`
	RequestQuotaMax           uint32 `toml:"RequestQuotaMax"`
	RequestQuotaWindowSeconds uint32 `toml:"RequestQuotaWindowSeconds"`
	MinStayFloorDays          uint32 `toml:"MinStayFloorDays"`
}

// Rewards toggles the BRIQ-R hooks.
type Rewards struct {
	Enabled bool `toml:"Enabled"`
}

// Indexer selects the read-model database. Driver is "sqlite", "postgres" or
// empty to disable indexing.
type Indexer struct {
	Driver string `toml:"Driver"`
	DSN    string `toml:"DSN"`
}

// Exports configures payment ledger exports.
type Exports struct {
	Dir string `toml:"Dir"`
}

// Telemetry configures Prometheus and OTLP export. An empty OTLPEndpoint
// keeps tracing off.
type Telemetry struct {
	ServiceName    string `toml:"ServiceName"`
	MetricsEnabled bool   `toml:"MetricsEnabled"`
	OTLPEndpoint   string `toml:"OTLPEndpoint"`
	Insecure       bool   `toml:"Insecure"`
}

// Logging configures the structured logger. File enables rotation.
type Logging struct {
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}
