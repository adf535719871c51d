package cli

import (
	"strings"

	"github.com/spf13/cobra"

	"modelkit/internal/config"
	"modelkit/internal/quantize"
	"modelkit/pkg/types"
)

// QuantizeMain runs the quantize binary and returns its exit code.
func QuantizeMain(args []string, env Env) int {
	env = env.withDefaults()
	return execute(NewQuantizeCmd(env), args, env)
}

// NewQuantizeCmd builds the quantize command.
func NewQuantizeCmd(env Env) *cobra.Command {
	env = env.withDefaults()
	var (
		common    commonFlags
		model     string
		outputDir string
		quantType string
		tool      string
	)
	cmd := &cobra.Command{
		Use:   "quantize --model_name <hf-id>",
		Short: "Quantize a model with the external tool, or print a simulated report when no GPU is usable",
		Example: "  quantize --model_name Qwen/Qwen3-1.7B\n" +
			"  quantize --model_name Qwen/Qwen3-1.7B --output_dir /data/quantized --quant_type 4bit",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := common.resolve(env, false)
			if err != nil {
				return err
			}
			qc := cfg.Quantize
			if cmd.Flags().Changed("output-dir") || qc.OutputDir == "" {
				qc.OutputDir = outputDir
			}
			if cmd.Flags().Changed("quant-type") || qc.QuantType == "" {
				qc.QuantType = quantType
			}
			if tool != "" {
				qc.Tool = strings.Fields(tool)
			}

			runner := quantize.NewRunner(qc, env.Exec, env.Stdout, log)
			if env.Prober != nil {
				runner.WithProber(env.Prober)
			}
			_, err = runner.Run(cmd.Context(), types.QuantizeRequest{
				ModelName: model,
				OutputDir: qc.OutputDir,
				QuantType: qc.QuantType,
			})
			return err
		},
	}
	fs := cmd.Flags()
	fs.StringVar(&model, "model-name", "", "The Hugging Face model ID to quantize")
	fs.StringVar(&outputDir, "output-dir", config.DefaultOutputDir, "The directory to save the quantized model")
	fs.StringVar(&quantType, "quant-type", config.DefaultQuantType, "The quantization type (e.g. 8bit, 4bit)")
	fs.StringVar(&tool, "tool", "", "Quantization tool command, e.g. \"python3 tools/quantization/quantize_simple.py\". "+
		"A relative script path is looked up in the working directory, then next to the binary and its parent directory")
	common.register(fs)
	_ = cmd.MarkFlagRequired("model-name")
	cmd.SetGlobalNormalizationFunc(underscoreFlags)
	return cmd
}
