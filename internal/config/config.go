// Package config loads the server configuration and shared file paths.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Data      DataConfig      `mapstructure:"data"`
	Artifacts ArtifactsConfig `mapstructure:"artifacts"`
	Commands  CommandsConfig  `mapstructure:"commands"`
	Fees      FeesConfig      `mapstructure:"fees"`
	Log       LogConfig       `mapstructure:"log"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// RunRatePerMin bounds how many train/backtest subprocesses per
	// minute the API will spawn.
	RunRatePerMin int `mapstructure:"run_rate_per_min"`
}

// DataConfig holds default data locations.
type DataConfig struct {
	DefaultPath string `mapstructure:"default_path"`
	FactorsFile string `mapstructure:"factors_file"`
	TradesFile  string `mapstructure:"trades_file"`
}

// ArtifactsConfig holds the artifact tree and run index locations.
type ArtifactsConfig struct {
	Dir       string `mapstructure:"dir"`
	IndexPath string `mapstructure:"index_path"`
}

// CommandsConfig names the pipeline binaries the API shells out to.
type CommandsConfig struct {
	TrainBin    string `mapstructure:"train_bin"`
	BacktestBin string `mapstructure:"backtest_bin"`
}

// FeesConfig holds the maker/taker fees used by the dashboard PnL review.
type FeesConfig struct {
	MakerBps float64 `mapstructure:"maker_bps"`
	TakerBps float64 `mapstructure:"taker_bps"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads the YAML config at path (if it exists) with environment
// overrides prefixed HFT_ and sensible defaults for everything else.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.run_rate_per_min", 30)
	v.SetDefault("data.default_path", "data/orderbook_top_ticks.csv")
	v.SetDefault("data.factors_file", "configs/factors.yaml")
	v.SetDefault("data.trades_file", "data/trades_executed.csv")
	v.SetDefault("artifacts.dir", "artifacts")
	v.SetDefault("artifacts.index_path", "artifacts/runs.db")
	v.SetDefault("commands.train_bin", "hft-train")
	v.SetDefault("commands.backtest_bin", "hft-backtest")
	v.SetDefault("fees.maker_bps", 1.0)
	v.SetDefault("fees.taker_bps", 5.0)
	v.SetDefault("log.level", "info")

	v.SetEnvPrefix("HFT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
					return nil, fmt.Errorf("config: read %s: %w", path, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

type factorsFile struct {
	Factors []struct {
		Name string `yaml:"name"`
	} `yaml:"factors"`
}

// LoadFactorNames reads the factor-list YAML file and returns the named
// factors in file order.
func LoadFactorNames(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	var ff factorsFile
	if err := yaml.Unmarshal(data, &ff); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	names := make([]string, 0, len(ff.Factors))
	for _, f := range ff.Factors {
		if f.Name != "" {
			names = append(names, f.Name)
		}
	}
	return names, nil
}
