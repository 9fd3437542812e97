package config

import (
	"fmt"
	"strings"

	nativecommon "rentchain/native/common"
	"rentchain/native/property"
	"rentchain/native/rental"
)

// Validate checks the values the node cannot run without.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("DataDir must be set")
	}
	if strings.TrimSpace(c.RPC.ListenAddress) == "" {
		return fmt.Errorf("rpc: ListenAddress must be set")
	}
	if c.RPC.MaxConnections < 0 {
		return fmt.Errorf("rpc: MaxConnections must not be negative")
	}
	if c.RPC.RateLimitPerSecond < 0 || c.RPC.RateLimitBurst < 0 {
		return fmt.Errorf("rpc: rate limits must not be negative")
	}
	if c.RPC.RateLimitPerSecond > 0 && c.RPC.RateLimitBurst == 0 {
		return fmt.Errorf("rpc: RateLimitBurst must be positive when RateLimitPerSecond is set")
	}
	if _, err := c.RentalPolicy(); err != nil {
		return fmt.Errorf("policy: %w", err)
	}
	if c.Policy.MinStayFloorDays == 0 {
		return fmt.Errorf("policy: MinStayFloorDays must be positive")
	}
	switch strings.ToLower(strings.TrimSpace(c.Indexer.Driver)) {
	case "":
	case "sqlite", "postgres":
		if strings.TrimSpace(c.Indexer.DSN) == "" {
			return fmt.Errorf("indexer: DSN must be set for driver %q", c.Indexer.Driver)
		}
	default:
		return fmt.Errorf("indexer: unknown driver %q", c.Indexer.Driver)
	}
	switch strings.ToLower(c.Logging.Level) {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging: unknown level %q", c.Logging.Level)
	}
	return nil
}

// RentalPolicy converts the policy section for the rental engine.
func (c *Config) RentalPolicy() (rental.Policy, error) {
	lock, err := rental.ParseLockPolicy(c.Policy.AvailabilityLock)
	if err != nil {
		return rental.Policy{}, err
	}
	return rental.Policy{
		AvailabilityLock: lock,
		RequestTTL:       c.Policy.RequestTTLSeconds,
		PaymentTTL:       c.Policy.PaymentTTLSeconds,
		RequestQuota: nativecommon.Quota{
			MaxRequests:   c.Policy.RequestQuotaMax,
			WindowSeconds: c.Policy.RequestQuotaWindowSeconds,
		},
	}, nil
}

// MinStayFloor returns the configured floor, falling back to the registry
// default.
func (c *Config) MinStayFloor() uint32 {
	if c.Policy.MinStayFloorDays == 0 {
		return property.DefaultMinStayFloor
	}
	return c.Policy.MinStayFloorDays
}
