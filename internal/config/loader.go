package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"modelkit/pkg/types"
)

// Environment variables read by ApplyEnv.
const (
	EnvAPIURL   = "AICLIENT_API_URL"
	EnvAPIKey   = "AICLIENT_API_KEY"
	EnvLogLevel = "MODELKIT_LOG_LEVEL"
	EnvConfig   = "MODELKIT_CONFIG"
	EnvAddr     = "MODELKIT_ADDR"
)

// Built-in defaults.
const (
	DefaultAPIURL = "http://localhost:8046/v1/chat/completions"
	// DefaultAPIKey matches the local AIClient-2-API install the scripts were written against.
	// It is not a secret; override it with AICLIENT_API_KEY.
	DefaultAPIKey         = "sk-0437c02b1560470981866f50b05759e3"
	DefaultTimeoutSeconds = 30
	DefaultOutputDir      = "~/models/quantized"
	DefaultQuantType      = "8bit"
	DefaultToolScript     = "tools/quantization/quantize_simple.py"
	DefaultAddr           = ":8090"
)

// Config holds runtime parameters for both binaries.
// It is built once at process start and passed explicitly to constructors.
type Config struct {
	LogLevel string         `json:"log_level" yaml:"log_level" toml:"log_level"`
	Router   RouterConfig   `json:"router" yaml:"router" toml:"router"`
	Quantize QuantizeConfig `json:"quantize" yaml:"quantize" toml:"quantize"`
	Server   ServerConfig   `json:"server" yaml:"server" toml:"server"`
}

// RouterConfig configures the inference router.
type RouterConfig struct {
	APIURL         string `json:"api_url" yaml:"api_url" toml:"api_url"`
	APIKey         string `json:"api_key" yaml:"api_key" toml:"api_key"`
	TimeoutSeconds int    `json:"timeout_seconds" yaml:"timeout_seconds" toml:"timeout_seconds"`
	// LocalModels override built-in entries with the same name.
	LocalModels []types.LocalModel `json:"local_models" yaml:"local_models" toml:"local_models"`
	// ScanDir, when set, adds one local model per subdirectory.
	ScanDir string `json:"scan_dir" yaml:"scan_dir" toml:"scan_dir"`
	// DisableDefaults drops the built-in local model table.
	DisableDefaults bool `json:"disable_defaults" yaml:"disable_defaults" toml:"disable_defaults"`
}

// Timeout returns the remote call timeout.
func (c RouterConfig) Timeout() time.Duration {
	if c.TimeoutSeconds <= 0 {
		return DefaultTimeoutSeconds * time.Second
	}
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QuantizeConfig configures the quantization runner.
type QuantizeConfig struct {
	// Tool is the command prefix for the external quantization tool.
	Tool []string `json:"tool" yaml:"tool" toml:"tool"`
	// Probe is the command used to detect a CUDA-capable runtime. Empty uses the built-in torch probe.
	Probe     []string `json:"probe" yaml:"probe" toml:"probe"`
	OutputDir string   `json:"output_dir" yaml:"output_dir" toml:"output_dir"`
	QuantType string   `json:"quant_type" yaml:"quant_type" toml:"quant_type"`
}

// ServerConfig configures `router serve`.
type ServerConfig struct {
	Addr         string   `json:"addr" yaml:"addr" toml:"addr"`
	MaxBodyBytes int64    `json:"max_body_bytes" yaml:"max_body_bytes" toml:"max_body_bytes"`
	CORSEnabled  bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins  []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		LogLevel: "info",
		Router: RouterConfig{
			APIURL:         DefaultAPIURL,
			APIKey:         DefaultAPIKey,
			TimeoutSeconds: DefaultTimeoutSeconds,
		},
		Quantize: QuantizeConfig{
			Tool:      []string{"python3", DefaultToolScript},
			OutputDir: DefaultOutputDir,
			QuantType: DefaultQuantType,
		},
		Server: ServerConfig{
			Addr:         DefaultAddr,
			MaxBodyBytes: 1 << 20,
		},
	}
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if err := decodeInto(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Resolve builds the effective configuration: defaults, then the optional
// file at path (or $MODELKIT_CONFIG), then environment overrides.
func Resolve(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path != "" {
		if err := decodeInto(path, &cfg); err != nil {
			return cfg, fmt.Errorf("load config %s: %w", path, err)
		}
	}
	cfg.ApplyEnv()
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables when they are set.
func (c *Config) ApplyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.Router.APIURL = v
	}
	if v := os.Getenv(EnvAPIKey); v != "" {
		c.Router.APIKey = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.LogLevel = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Server.Addr = v
	}
}

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// without overriding variables already present. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("dotenv %s: %w", f, err)
		}
	}
	return nil
}

func decodeInto(path string, cfg *Config) error {
	if path == "" {
		return fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		return yaml.Unmarshal(b, cfg)
	case ".json":
		return json.Unmarshal(b, cfg)
	case ".toml":
		return toml.Unmarshal(b, cfg)
	default:
		return fmt.Errorf("unsupported config extension: %s", ext)
	}
}
