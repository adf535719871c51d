package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"modelkit/internal/common/fsutil"
	"modelkit/internal/config"
	"modelkit/internal/httpapi"
	"modelkit/internal/registry"
	"modelkit/internal/router"
	"modelkit/pkg/types"
)

// ResultBanner precedes the JSON result on stdout.
const ResultBanner = "--- INFERENCE RESULT ---"

// dummyModel is the table entry --seed-dummy prepares on disk.
const dummyModel = "qwen3-1.7b-quantized"

// RouterMain runs the router binary and returns its exit code.
func RouterMain(args []string, env Env) int {
	env = env.withDefaults()
	return execute(NewRouterCmd(env), args, env)
}

// NewRouterCmd builds the router command tree: the root routes one prompt,
// `serve` exposes the same routing over HTTP and `models` lists the local table.
func NewRouterCmd(env Env) *cobra.Command {
	env = env.withDefaults()
	var (
		common      commonFlags
		model       string
		prompt      string
		maxTokens   int
		temperature float64
		seedDummy   bool
	)
	root := &cobra.Command{
		Use:   "router --model_name <name> --prompt <text>",
		Short: "Route an inference request to a local model or the remote API, with fallback",
		Example: "  router --model_name qwen3-1.7b-quantized --prompt \"Hello\" --seed-dummy\n" +
			"  router --model_name gpt-4o-mini --prompt \"Hello\" --max_tokens 50",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := common.resolve(env, false)
			if err != nil {
				return err
			}
			models, err := registry.Build(cfg.Router)
			if err != nil {
				return err
			}
			if seedDummy {
				cleanup, err := seedDummyModel(models, log)
				if err != nil {
					return err
				}
				defer cleanup()
			}
			r := router.NewFromConfig(cfg.Router, models, log)
			res := r.Route(cmd.Context(), types.ChatRequest{
				Model:       model,
				Prompt:      prompt,
				MaxTokens:   maxTokens,
				Temperature: temperature,
			})
			fmt.Fprintln(env.Stdout)
			fmt.Fprintln(env.Stdout, ResultBanner)
			return writeIndented(env.Stdout, res)
		},
	}
	common.register(root.PersistentFlags())

	fs := root.Flags()
	fs.StringVar(&model, "model-name", "", "The name of the model to use for inference")
	fs.StringVar(&prompt, "prompt", "", "The input prompt for the model")
	fs.IntVar(&maxTokens, "max-tokens", 100, "The maximum number of tokens to generate")
	fs.Float64Var(&temperature, "temperature", 0.7, "The sampling temperature for generation")
	fs.BoolVar(&seedDummy, "seed-dummy", false, "Create a dummy "+dummyModel+" directory for this run and remove it afterwards")
	_ = root.MarkFlagRequired("model-name")
	_ = root.MarkFlagRequired("prompt")
	root.SetGlobalNormalizationFunc(underscoreFlags)

	root.AddCommand(newServeCmd(env, &common), newModelsCmd(env, &common))
	return root
}

func newModelsCmd(env Env, common *commonFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the local model table and whether each path exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := common.resolve(env, false)
			if err != nil {
				return err
			}
			models, err := registry.Build(cfg.Router)
			if err != nil {
				return err
			}
			return writeIndented(env.Stdout, types.ModelsResponse{Models: registry.Status(models)})
		},
	}
}

func newServeCmd(env Env, common *commonFlags) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve OpenAI-compatible chat completions backed by the router",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := common.resolve(env, true)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			models, err := registry.Build(cfg.Router)
			if err != nil {
				return err
			}
			r := router.NewFromConfig(cfg.Router, models, log)
			mux := httpapi.NewMux(r, httpapi.OptionsFromConfig(cfg.Server), log)
			return serve(cmd.Context(), cfg.Server.Addr, mux, log)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", config.DefaultAddr, "HTTP listen address (defaults to config or MODELKIT_ADDR)")
	return cmd
}

// serve runs srv until ctx is canceled, then shuts down gracefully.
func serve(ctx context.Context, addr string, h http.Handler, log zerolog.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("router listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown error")
		return err
	}
	log.Info().Msg("router stopped")
	return nil
}

// seedDummyModel creates the dummy model directory with a model.bin when it
// does not exist yet. The returned cleanup removes only what it created.
func seedDummyModel(models []types.LocalModel, log zerolog.Logger) (func(), error) {
	noop := func() {}
	var path string
	for _, m := range models {
		if m.Name == dummyModel {
			path = m.Path
		}
	}
	if path == "" {
		log.Warn().Str("model", dummyModel).Msg("no local entry to seed")
		return noop, nil
	}
	if fsutil.PathExists(path) {
		log.Debug().Str("path", path).Msg("local model path already present, not seeding")
		return noop, nil
	}
	if _, err := fsutil.EnsureDir(path); err != nil {
		return noop, err
	}
	cleanup := func() {
		if err := os.RemoveAll(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("remove dummy model")
		}
	}
	if err := os.WriteFile(filepath.Join(path, "model.bin"), []byte("dummy model data"), 0o644); err != nil {
		cleanup()
		return noop, fmt.Errorf("seed dummy model: %w", err)
	}
	log.Debug().Str("path", path).Msg("seeded dummy local model")
	return cleanup, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
