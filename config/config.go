package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config is the node configuration file.
type Config struct {
	DataDir     string `toml:"DataDir"`
	GenesisFile string `toml:"GenesisFile"`
	NetworkName string `toml:"NetworkName"`

	RPC       RPC       `toml:"rpc"`
	Policy    Policy    `toml:"policy"`
	Rewards   Rewards   `toml:"rewards"`
	Indexer   Indexer   `toml:"indexer"`
	Exports   Exports   `toml:"exports"`
	Telemetry Telemetry `toml:"telemetry"`
	Logging   Logging   `toml:"logging"`
}

// Load loads the configuration from the given path. A missing file is created
// with defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, key := range undecoded {
			keys = append(keys, key.String())
		}
		return nil, fmt.Errorf("config file %s has unknown keys: %s", path, strings.Join(keys, ", "))
	}
	if strings.TrimSpace(cfg.NetworkName) == "" {
		cfg.NetworkName = "rent-local"
	}
	cfg.resolvePaths()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		DataDir:     "./rent-data",
		GenesisFile: "",
		NetworkName: "rent-local",
		RPC: RPC{
			ListenAddress:      ":8545",
			MaxConnections:     256,
			ReadHeaderTimeout:  5,
			ReadTimeout:        15,
			WriteTimeout:       15,
			IdleTimeout:        60,
			RateLimitPerSecond: 20,
			RateLimitBurst:     40,
			IdempotencyDB:      "idempotency.db",
			Auth: Auth{
				JWTSecretEnv: "RENT_RPC_JWT_SECRET",
				Issuer:       "rentchain",
			},
		},
		Policy: Policy{
			AvailabilityLock:          "never",
			RequestQuotaMax:           10,
			RequestQuotaWindowSeconds: 86_400,
			MinStayFloorDays:          30,
		},
		Rewards: Rewards{Enabled: true},
		Indexer: Indexer{Driver: "sqlite", DSN: "indexer.db"},
		Exports: Exports{Dir: "exports"},
		Telemetry: Telemetry{
			ServiceName:    "rentd",
			MetricsEnabled: true,
			Insecure:       true,
		},
		Logging: Logging{
			Env:        "dev",
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 5,
			MaxAgeDays: 28,
		},
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.resolvePaths()
	return cfg, nil
}

// resolvePaths anchors relative store locations inside DataDir.
func (c *Config) resolvePaths() {
	c.RPC.IdempotencyDB = underDataDir(c.DataDir, c.RPC.IdempotencyDB)
	c.Exports.Dir = underDataDir(c.DataDir, c.Exports.Dir)
	if strings.EqualFold(c.Indexer.Driver, "sqlite") {
		c.Indexer.DSN = underDataDir(c.DataDir, c.Indexer.DSN)
	}
}

func underDataDir(dataDir, path string) string {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" || filepath.IsAbs(trimmed) || trimmed == ":memory:" {
		return trimmed
	}
	return filepath.Join(dataDir, trimmed)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
