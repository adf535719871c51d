// Package quantize wraps an external quantization tool. When no CUDA runtime
// is usable, or the tool fails, it prints a simulated report with guidance
// instead of failing.
package quantize

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"modelkit/internal/common/execx"
	"modelkit/internal/common/fsutil"
	"modelkit/internal/config"
	"modelkit/pkg/types"
)

// Mode says whether a run produced a real artifact.
type Mode string

const (
	ModeQuantized Mode = "quantized"
	ModeSimulated Mode = "simulated"
)

// Tool steps.
const (
	StepQuantize = "quantize"
	StepTest     = "test"
)

// ToolError wraps a failed tool invocation.
type ToolError struct {
	Step string
	Cmd  string
	Err  error
}

func (e *ToolError) Error() string { return fmt.Sprintf("%s step failed (%s): %v", e.Step, e.Cmd, e.Err) }
func (e *ToolError) Unwrap() error { return e.Err }

// IsToolNotFound reports whether err means the tool executable was missing.
func IsToolNotFound(err error) bool {
	var te *ToolError
	return errors.As(err, &te) && execx.IsNotFound(te.Err)
}

// Report summarizes one run.
type Report struct {
	Request   types.QuantizeRequest
	OutputDir string // expanded
	GPU       GPUStatus
	Mode      Mode
	// Failure is set when the tool was attempted and failed.
	Failure error
	// ToolCommand is the manual invocation shown in guidance.
	ToolCommand string
}

// SimulatedDir is where a real run would have written the model.
func (r Report) SimulatedDir() string {
	return filepath.Join(r.OutputDir, "simulated_"+fsutil.SafeName(r.Request.ModelName))
}

// Runner drives one quantization request.
type Runner struct {
	exec   execx.Executor
	prober GPUProber
	tool   []string
	out    io.Writer
	log    zerolog.Logger
}

// NewRunner wires a runner from configuration. out receives the report (stdout when nil).
func NewRunner(cfg config.QuantizeConfig, ex execx.Executor, out io.Writer, log zerolog.Logger) *Runner {
	if ex == nil {
		ex = execx.OS{}
	}
	if out == nil {
		out = os.Stdout
	}
	tool := cfg.Tool
	if len(tool) == 0 {
		tool = config.Default().Quantize.Tool
	}
	return &Runner{
		exec:   ex,
		prober: NewCommandProber(ex, cfg.Probe),
		tool:   locateScripts(tool, executableDirs()...),
		out:    out,
		log:    log,
	}
}

// locateScripts resolves relative .py arguments that do not exist under the
// working directory against dirs, in order. Unresolved arguments are kept.
func locateScripts(tool []string, dirs ...string) []string {
	out := append([]string(nil), tool...)
	for i, arg := range out {
		if i == 0 || !strings.HasSuffix(arg, ".py") || filepath.IsAbs(arg) || fsutil.PathExists(arg) {
			continue
		}
		for _, d := range dirs {
			if p := filepath.Join(d, arg); fsutil.PathExists(p) {
				out[i] = p
				break
			}
		}
	}
	return out
}

// executableDirs returns the binary's directory and its parent, so a tool
// shipped next to bin/ is found when running from elsewhere.
func executableDirs() []string {
	exe, err := os.Executable()
	if err != nil {
		return nil
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	return []string{dir, filepath.Dir(dir)}
}

// WithProber replaces the GPU prober.
func (r *Runner) WithProber(p GPUProber) *Runner {
	r.prober = p
	return r
}

// Run probes the GPU, creates the output directory and either runs the tool
// or prints a simulated report. The only error returned is a failure to
// create the output directory; tool failures degrade to simulation.
func (r *Runner) Run(ctx context.Context, req types.QuantizeRequest) (Report, error) {
	r.log.Info().Str("model", req.ModelName).Str("output_dir", req.OutputDir).Str("quant_type", req.QuantType).Msg("starting quantization")

	gpu := r.prober.Probe(ctx)
	r.log.Info().Str("gpu", gpu.State.String()).Str("detail", gpu.Detail).Msg(gpu.Message())

	outDir, err := fsutil.EnsureDir(req.OutputDir)
	if err != nil {
		return Report{Request: req, GPU: gpu}, err
	}

	rep := Report{
		Request:     req,
		OutputDir:   outDir,
		GPU:         gpu,
		Mode:        ModeSimulated,
		ToolCommand: r.displayCommand(req.ModelName, outDir),
	}

	if gpu.Available() {
		if err := r.runTool(ctx, req.ModelName, outDir); err != nil {
			rep.Failure = err
			ev := r.log.Error().Err(err)
			if IsToolNotFound(err) {
				ev = ev.Bool("tool_missing", true)
			}
			ev.Msg("actual quantization failed, falling back to simulation")
		} else {
			rep.Mode = ModeQuantized
		}
	}

	if rep.Mode == ModeQuantized {
		writeSuccess(r.out, rep)
	} else {
		writeSimulated(r.out, rep, r.probeHint())
	}
	return rep, nil
}

func (r *Runner) runTool(ctx context.Context, model, outDir string) error {
	steps := []struct {
		name string
		args []string
	}{
		{StepQuantize, []string{model, outDir}},
		{StepTest, []string{"test", outDir}},
	}
	for _, s := range steps {
		c := execx.Cmd{Path: r.tool[0], Args: append(append([]string(nil), r.tool[1:]...), s.args...)}
		r.log.Info().Str("step", s.name).Str("cmd", c.String()).Msg("running quantization tool")
		res, err := r.exec.Run(ctx, c)
		if err != nil {
			return &ToolError{Step: s.name, Cmd: c.String(), Err: err}
		}
		r.log.Debug().Str("step", s.name).Str("stdout", res.Stdout).Msg("tool finished")
	}
	return nil
}

func (r *Runner) displayCommand(model, outDir string) string {
	return fmt.Sprintf("%s %q %q", displayTool(r.tool), model, outDir)
}

func (r *Runner) probeHint() string {
	return displayTool(r.tool)
}
