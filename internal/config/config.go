// Package config loads CLI-boundary configuration: the region name,
// its size, and logging options. Nothing inside the bus, ring, or
// allocator layers depends on this package. It loads these settings
// from defaults, environment variables, or a .env file; the cmd/
// binaries in this repository take their settings from flags and do
// not call it.
package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds everything a cmd/ binary needs to open or create a
// bus and set up its logger.
type Config struct {
	RegionName string `mapstructure:"region_name"`
	RegionSize int64  `mapstructure:"region_size"`
	LogLevel   string `mapstructure:"log_level"`
	LogFormat  string `mapstructure:"log_format"`
}

// Default returns the baseline configuration before flags or
// environment overrides are applied.
func Default() Config {
	return Config{
		RegionName: "dmxp_alloc",
		RegionSize: 64 << 20,
		LogLevel:   "info",
		LogFormat:  "text",
	}
}

// Load reads configuration from, in increasing priority: built-in
// defaults, a .env file in the working directory (if present), and
// DMXP_-prefixed environment variables. It does not read command-line
// flags; callers bind those with v.BindPFlag and call Unmarshal
// themselves, matching viper's usual cobra integration.
func Load() (*viper.Viper, error) {
	// godotenv populates the process environment; viper's env reader
	// then picks it up like any other environment variable. A missing
	// .env file is not an error — most deployments set real env vars.
	_ = godotenv.Load()

	v := viper.New()
	d := Default()
	v.SetDefault("region_name", d.RegionName)
	v.SetDefault("region_size", d.RegionSize)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)

	v.SetEnvPrefix("DMXP")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	return v, nil
}

// Unmarshal decodes v into a Config.
func Unmarshal(v *viper.Viper) (Config, error) {
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, err
	}
	return c, nil
}
