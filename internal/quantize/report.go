package quantize

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// SimulatedBanner opens every simulated report.
const SimulatedBanner = "--- SIMULATED QUANTIZATION REPORT ---"

func writeSuccess(w io.Writer, rep Report) {
	fmt.Fprintf(w, "Model '%s' successfully quantized to %s.\n", rep.Request.ModelName, rep.OutputDir)
	fmt.Fprintf(w, "Quantized model test passed for '%s'.\n", rep.Request.ModelName)
}

func writeSimulated(w io.Writer, rep Report, tool string) {
	p := func(format string, a ...any) { fmt.Fprintf(w, format+"\n", a...) }

	p("")
	p(SimulatedBanner)
	p("Model: %s", rep.Request.ModelName)
	p("Requested Quantization: %s", rep.Request.QuantType)
	p("Simulated Output Directory: %s", rep.SimulatedDir())
	p("")
	p("**Reason for Simulation:**")
	if rep.Failure != nil {
		p("  - Actual quantization failed: %v", rep.Failure)
		if IsToolNotFound(rep.Failure) {
			p("  - Quantization tool not found. Check the configured tool path.")
		}
	} else {
		p("  - %s", rep.GPU.Message())
	}
	p("  - No CUDA GPU detected or PyTorch not installed/configured for CUDA.")
	p("  - Required AngelSlim dependencies (e.g., specific CUDA-enabled Triton, vLLM) may be missing or incompatible.")
	p("")
	p("**To perform actual quantization:**")
	p("1. Ensure you have a CUDA-enabled GPU and appropriate drivers.")
	p("2. Install PyTorch with CUDA support: `pip install torch torchvision torchaudio --index-url https://download.pytorch.org/whl/cu121` (adjust cuXXX for your CUDA version).")
	p("3. Install all AngelSlim dependencies from source: `cd /tmp/AngelSlim && pip install --user -e .` (ensure network stability).")
	p("4. Run the quantization script manually in a suitable environment:")
	p("   `%s`", rep.ToolCommand)
	p("")
	p("**Simulated Result:**")
	p("Successfully simulated the quantization of '%s'. A quantized model would typically be saved to a similar path.", rep.Request.ModelName)
	p("You can verify basic functionality of the tool by running:")
	p("`%s`", tool)
}

// displayTool renders the tool command with script paths made absolute.
func displayTool(tool []string) string {
	parts := make([]string, len(tool))
	for i, t := range tool {
		parts[i] = t
		if i > 0 && strings.HasSuffix(t, ".py") && !filepath.IsAbs(t) {
			if abs, err := filepath.Abs(t); err == nil {
				parts[i] = abs
			}
		}
	}
	return strings.Join(parts, " ")
}
