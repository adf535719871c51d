// Package cli builds the cobra command trees for the quantize and router binaries.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"modelkit/internal/common/execx"
	"modelkit/internal/config"
	"modelkit/internal/logging"
	"modelkit/internal/quantize"
)

// Env carries process-level dependencies so commands can be driven from tests.
type Env struct {
	Stdout io.Writer
	Stderr io.Writer
	Exec   execx.Executor
	// Prober overrides GPU detection for the quantize command.
	Prober quantize.GPUProber
	// DotEnv lists .env files to load before resolving config. Nil means ".env".
	DotEnv []string
}

func (e Env) withDefaults() Env {
	if e.Stdout == nil {
		e.Stdout = os.Stdout
	}
	if e.Stderr == nil {
		e.Stderr = os.Stderr
	}
	if e.Exec == nil {
		e.Exec = execx.OS{}
	}
	return e
}

// commonFlags are shared by every command tree.
type commonFlags struct {
	configPath string
	logLevel   string
}

func (c *commonFlags) register(fs *pflag.FlagSet) {
	fs.StringVar(&c.configPath, "config", "", "Config file (.yaml, .json, .toml); defaults to $MODELKIT_CONFIG")
	fs.StringVar(&c.logLevel, "log-level", "", "Log level: debug|info|warn|error|off (defaults to config or MODELKIT_LOG_LEVEL)")
}

// resolve loads .env, the config file and env overrides, then builds the logger.
func (c *commonFlags) resolve(env Env, jsonLogs bool) (config.Config, zerolog.Logger, error) {
	if err := config.LoadDotEnv(env.DotEnv...); err != nil {
		return config.Config{}, zerolog.Nop(), err
	}
	cfg, err := config.Resolve(c.configPath)
	if err != nil {
		return cfg, zerolog.Nop(), err
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if jsonLogs {
		return cfg, logging.NewJSON(cfg.LogLevel, env.Stderr), nil
	}
	return cfg, logging.New(cfg.LogLevel, env.Stderr), nil
}

// underscoreFlags lets --model_name and --model-name both work.
func underscoreFlags(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// execute runs root with args and maps errors to an exit code.
func execute(root *cobra.Command, args []string, env Env) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	root.SetArgs(args)
	root.SetOut(env.Stdout)
	root.SetErr(env.Stderr)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(env.Stderr, "error:", err)
		return 1
	}
	return 0
}
