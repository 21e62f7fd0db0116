package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	ListenAddr string `mapstructure:"listen_addr"`
	HTTPAddr   string `mapstructure:"http_addr"`
	// Initiate, when set, dials a waiting client at host:port instead of listening.
	Initiate string `mapstructure:"initiate"`
	Framing  string `mapstructure:"framing"`
	DBPath   string `mapstructure:"db_path"`
	// BaseDir anchors relative paths sent in load commands.
	BaseDir string `mapstructure:"base_dir"`

	Log       LogConfig       `mapstructure:"log"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Converter ConverterConfig `mapstructure:"converter"`
	OTel      OTelConfig      `mapstructure:"otel"`

	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

type ConverterConfig struct {
	// Kind selects the converter: none, stub, external or plugin.
	Kind       string `mapstructure:"kind"`
	PluginPath string `mapstructure:"plugin_path"`
	FSDB2VCD   string `mapstructure:"fsdb2vcd"`
	VCD2FST    string `mapstructure:"vcd2fst"`
	TempDir    string `mapstructure:"temp_dir"`
}

type OTelConfig struct {
	Endpoint    string  `mapstructure:"endpoint"`
	SampleRatio float64 `mapstructure:"sample_ratio"`
}

const (
	FramingNUL     = "nul"
	FramingNewline = "newline"
)

const envPrefix = "WCP"

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen_addr", ":8765")
	v.SetDefault("http_addr", ":8766")
	v.SetDefault("initiate", "")
	v.SetDefault("framing", FramingNUL)
	v.SetDefault("db_path", "wcp.db")
	v.SetDefault("base_dir", "")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 0)
	v.SetDefault("converter.kind", "none")
	v.SetDefault("converter.plugin_path", "")
	v.SetDefault("converter.fsdb2vcd", "")
	v.SetDefault("converter.vcd2fst", "")
	v.SetDefault("converter.temp_dir", "")
	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("shutdown_timeout", 5*time.Second)
}

// Load builds the configuration from defaults, an optional YAML file, WCP_* environment
// variables and command-line flags, in increasing order of precedence.
func Load(args []string) (*Config, error) {
	fs := pflag.NewFlagSet("wcp-server", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a YAML config file")
	fs.String("listen", ":8765", "TCP address for WCP clients")
	fs.String("http", ":8766", "HTTP address for websocket, health and metrics (empty disables)")
	fs.String("initiate", "", "connect to a waiting WCP client at host:port instead of listening")
	fs.String("framing", FramingNUL, "TCP message delimiter: nul or newline")
	fs.String("db", "wcp.db", "sqlite db path for the conversion cache")
	fs.String("base-dir", "", "directory that relative load paths are resolved against")
	fs.String("log-level", "info", "log level")
	fs.String("converter", "none", "file converter: none, stub, external or plugin")
	fs.String("plugin", "", "converter plugin path (.so)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"listen_addr":           "listen",
		"http_addr":             "http",
		"initiate":              "initiate",
		"framing":               "framing",
		"db_path":               "db",
		"base_dir":              "base-dir",
		"log.level":             "log-level",
		"converter.kind":        "converter",
		"converter.plugin_path": "plugin",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", *configFile, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Framing {
	case FramingNUL, FramingNewline:
	default:
		return fmt.Errorf("invalid framing %q", c.Framing)
	}
	switch c.Converter.Kind {
	case "none", "stub", "external", "plugin":
	default:
		return fmt.Errorf("invalid converter kind %q", c.Converter.Kind)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit must not be negative")
	}
	return nil
}
