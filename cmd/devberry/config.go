package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/blockberries/devberry/engine"
)

const envPrefix = "DEVBERRY"

// Flag names double as configuration file keys
const (
	flagConfig        = "config"
	flagLogLevel      = "log-level"
	flagMetricsAddr   = "metrics-addr"
	flagDataDir       = "data-dir"
	flagNodes         = "nodes"
	flagBlocks        = "blocks"
	flagMinWait       = "min-wait"
	flagMaxWait       = "max-wait"
	flagPollInterval  = "poll-interval"
	flagRetryInterval = "retry-interval"
	flagMaxForkDepth  = "max-fork-depth"
	flagBlockCache    = "block-cache-size"
)

// nodeConfig is the command configuration, resolved from flags, DEVBERRY_*
// environment variables, and an optional config file, in that order of precedence
type nodeConfig struct {
	LogLevel    string `mapstructure:"log-level"`
	MetricsAddr string `mapstructure:"metrics-addr"`
	// DataDir holds one block log per node. Empty keeps chains in memory.
	DataDir string `mapstructure:"data-dir"`

	// Nodes is the number of validators on the network
	Nodes int `mapstructure:"nodes"`
	// Blocks stops the network once the first node commits this height. 0 runs until interrupted.
	Blocks uint64 `mapstructure:"blocks"`

	// On-chain wait settings, in seconds
	MinWait uint64 `mapstructure:"min-wait"`
	MaxWait uint64 `mapstructure:"max-wait"`

	PollInterval  time.Duration `mapstructure:"poll-interval"`
	RetryInterval time.Duration `mapstructure:"retry-interval"`
	MaxForkDepth  uint64        `mapstructure:"max-fork-depth"`
	BlockCache    int           `mapstructure:"block-cache-size"`
}

func addFlags(cmd *cobra.Command) {
	def := engine.DefaultConfig()

	flags := cmd.Flags()
	flags.String(flagConfig, "", "config file (yaml, toml or json)")
	flags.String(flagLogLevel, "info", "log level (debug, info, warn, error)")
	flags.String(flagMetricsAddr, "", "address to serve Prometheus metrics on; empty disables")
	flags.String(flagDataDir, "", "directory for per-node block logs; empty keeps chains in memory")
	flags.Int(flagNodes, 1, "number of validators on the network")
	flags.Uint64(flagBlocks, 0, "stop after this many blocks; 0 runs until interrupted")
	flags.Uint64(flagMinWait, 0, "minimum publish wait in seconds")
	flags.Uint64(flagMaxWait, 0, "maximum publish wait in seconds")
	flags.Duration(flagPollInterval, def.PollInterval, "engine update poll interval")
	flags.Duration(flagRetryInterval, def.RetryInterval, "retry interval for blocks that are not ready")
	flags.Uint64(flagMaxForkDepth, def.MaxForkDepth, "ignore forks deeper than this; 0 is unlimited")
	flags.Int(flagBlockCache, def.BlockCacheSize, "blocks cached for fork choice; 0 disables")
}

func loadConfig(cmd *cobra.Command) (*nodeConfig, error) {
	v := viper.New()
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, err
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if file := v.GetString(flagConfig); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", file, err)
		}
	}

	cfg := &nodeConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *nodeConfig) validate() error {
	if c.Nodes < 1 {
		return fmt.Errorf("%s must be at least 1, got %d", flagNodes, c.Nodes)
	}
	return c.engineConfig().ValidateBasic()
}

func (c *nodeConfig) engineConfig() *engine.Config {
	return &engine.Config{
		PollInterval:   c.PollInterval,
		RetryInterval:  c.RetryInterval,
		MaxForkDepth:   c.MaxForkDepth,
		BlockCacheSize: c.BlockCache,
	}
}

// settings returns the on-chain settings served by every validator. Zero
// values are left unset so the engine falls back to publishing immediately.
func (c *nodeConfig) settings() map[string]string {
	s := make(map[string]string)
	if c.MinWait > 0 || c.MaxWait > 0 {
		s[engine.SettingMinWaitTime] = fmt.Sprint(c.MinWait)
		s[engine.SettingMaxWaitTime] = fmt.Sprint(c.MaxWait)
	}
	return s
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid %s: %w", flagLogLevel, err)
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	cfg.EncoderConfig = zap.NewDevelopmentEncoderConfig()
	return cfg.Build()
}
