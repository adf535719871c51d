package quantize

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"modelkit/internal/common/execx"
	"modelkit/internal/config"
	"modelkit/pkg/types"
)

// fakeExec records calls and answers from a per-call script.
type fakeExec struct {
	calls   []execx.Cmd
	respond func(c execx.Cmd) (execx.Result, error)
}

func (f *fakeExec) Run(ctx context.Context, c execx.Cmd) (execx.Result, error) {
	f.calls = append(f.calls, c)
	if f.respond == nil {
		return execx.Result{}, nil
	}
	return f.respond(c)
}

type staticProber GPUStatus

func (s staticProber) Probe(context.Context) GPUStatus { return GPUStatus(s) }

func newTestRunner(t *testing.T, ex execx.Executor, gpu GPUStatus) (*Runner, *bytes.Buffer) {
	t.Helper()
	var out bytes.Buffer
	cfg := config.QuantizeConfig{Tool: []string{"python3", "/opt/tools/quantize_simple.py"}}
	r := NewRunner(cfg, ex, &out, zerolog.Nop()).WithProber(staticProber(gpu))
	return r, &out
}

func request(t *testing.T) types.QuantizeRequest {
	return types.QuantizeRequest{
		ModelName: "Qwen/Qwen3-1.7B",
		OutputDir: filepath.Join(t.TempDir(), "models", "quantized"),
		QuantType: "8bit",
	}
}

func TestRun_NoGPU_SimulatesAndCreatesDir(t *testing.T) {
	ex := &fakeExec{}
	r, out := newTestRunner(t, ex, GPUStatus{State: GPURuntimeMissing})
	req := request(t)

	rep, err := r.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, ModeSimulated, rep.Mode)
	assert.Empty(t, ex.calls, "tool must not run without a GPU")
	fi, err := os.Stat(req.OutputDir)
	require.NoError(t, err)
	assert.True(t, fi.IsDir())

	text := out.String()
	assert.Contains(t, text, "SIMULATED QUANTIZATION REPORT")
	assert.Contains(t, text, "Model: Qwen/Qwen3-1.7B")
	assert.Contains(t, text, "Requested Quantization: 8bit")
	assert.Contains(t, text, "Simulated Output Directory: "+filepath.Join(req.OutputDir, "simulated_Qwen-Qwen3-1.7B"))
	assert.Contains(t, text, "PyTorch not installed")
	assert.Contains(t, text, `python3 /opt/tools/quantize_simple.py "Qwen/Qwen3-1.7B" "`+req.OutputDir+`"`)

	entries, err := os.ReadDir(req.OutputDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "simulation must not write artifacts")
}

func TestRun_OutputDirIdempotent(t *testing.T) {
	r, _ := newTestRunner(t, &fakeExec{}, GPUStatus{State: GPUNoDevice})
	req := request(t)
	require.NoError(t, os.MkdirAll(req.OutputDir, 0o755))
	_, err := r.Run(context.Background(), req)
	require.NoError(t, err)
	_, err = r.Run(context.Background(), req)
	require.NoError(t, err)
}

func TestRun_GPU_RunsToolThenTest(t *testing.T) {
	ex := &fakeExec{}
	r, out := newTestRunner(t, ex, GPUStatus{State: GPUAvailable})
	req := request(t)

	rep, err := r.Run(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, ModeQuantized, rep.Mode)
	require.Len(t, ex.calls, 2)
	assert.Equal(t, "python3", ex.calls[0].Path)
	assert.Equal(t, []string{"/opt/tools/quantize_simple.py", "Qwen/Qwen3-1.7B", req.OutputDir}, ex.calls[0].Args)
	assert.Equal(t, []string{"/opt/tools/quantize_simple.py", "test", req.OutputDir}, ex.calls[1].Args)
	assert.NotContains(t, out.String(), SimulatedBanner)
	assert.Contains(t, out.String(), "successfully quantized")
}

func TestRun_ToolFailureDegradesToSimulation(t *testing.T) {
	ex := &fakeExec{respond: func(c execx.Cmd) (execx.Result, error) {
		return execx.Result{ExitCode: 1, Stderr: "CUDA out of memory"}, &execx.ExitError{Cmd: c.String(), ExitCode: 1, Stderr: "CUDA out of memory"}
	}}
	r, out := newTestRunner(t, ex, GPUStatus{State: GPUAvailable})

	rep, err := r.Run(context.Background(), request(t))
	require.NoError(t, err)

	assert.Equal(t, ModeSimulated, rep.Mode)
	require.Error(t, rep.Failure)
	var te *ToolError
	require.True(t, errors.As(rep.Failure, &te))
	assert.Equal(t, StepQuantize, te.Step)
	assert.Len(t, ex.calls, 1, "test step must not run after a failed quantize step")
	assert.Contains(t, out.String(), SimulatedBanner)
	assert.Contains(t, out.String(), "CUDA out of memory")
}

func TestRun_TestStepFailure(t *testing.T) {
	ex := &fakeExec{respond: func(c execx.Cmd) (execx.Result, error) {
		if len(c.Args) > 1 && c.Args[1] == "test" {
			return execx.Result{}, &execx.ExitError{Cmd: c.String(), ExitCode: 2}
		}
		return execx.Result{}, nil
	}}
	r, out := newTestRunner(t, ex, GPUStatus{State: GPUAvailable})
	rep, err := r.Run(context.Background(), request(t))
	require.NoError(t, err)
	assert.Equal(t, ModeSimulated, rep.Mode)
	var te *ToolError
	require.True(t, errors.As(rep.Failure, &te))
	assert.Equal(t, StepTest, te.Step)
	assert.Contains(t, out.String(), SimulatedBanner)
}

func TestRun_ToolNotFound(t *testing.T) {
	ex := &fakeExec{respond: func(c execx.Cmd) (execx.Result, error) {
		return execx.Result{ExitCode: -1}, &exec.Error{Name: c.Path, Err: exec.ErrNotFound}
	}}
	r, out := newTestRunner(t, ex, GPUStatus{State: GPUAvailable})
	rep, err := r.Run(context.Background(), request(t))
	require.NoError(t, err)
	assert.True(t, IsToolNotFound(rep.Failure))
	assert.Contains(t, out.String(), "Quantization tool not found")
}

func TestRun_OutputDirFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	r, out := newTestRunner(t, &fakeExec{}, GPUStatus{State: GPUNoDevice})
	_, err := r.Run(context.Background(), types.QuantizeRequest{ModelName: "m", OutputDir: filepath.Join(blocker, "sub"), QuantType: "8bit"})
	require.Error(t, err)
	assert.Empty(t, out.String())
}

func TestRun_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	r, _ := newTestRunner(t, &fakeExec{}, GPUStatus{State: GPUNoDevice})
	rep, err := r.Run(context.Background(), types.QuantizeRequest{ModelName: "m", OutputDir: "~/models/quantized", QuantType: "4bit"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, "models", "quantized"), rep.OutputDir)
	assert.DirExists(t, rep.OutputDir)
}

func TestCommandProber_Builtin(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want GPUState
	}{
		{"ok", nil, GPUAvailable},
		{"no torch", &execx.ExitError{ExitCode: probeExitRuntimeMissing}, GPURuntimeMissing},
		{"no cuda", &execx.ExitError{ExitCode: probeExitNoDevice}, GPUNoDevice},
		{"no python", &exec.Error{Name: "python3", Err: exec.ErrNotFound}, GPURuntimeMissing},
		{"crash", &execx.ExitError{ExitCode: 139, Stderr: "segfault"}, GPUProbeError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ex := &fakeExec{respond: func(execx.Cmd) (execx.Result, error) { return execx.Result{}, tc.err }}
			st := NewCommandProber(ex, nil).Probe(context.Background())
			assert.Equal(t, tc.want, st.State)
			require.Len(t, ex.calls, 1)
			assert.Equal(t, "python3", ex.calls[0].Path)
			assert.Equal(t, "-c", ex.calls[0].Args[0])
			assert.True(t, strings.Contains(ex.calls[0].Args[1], "torch.cuda.is_available()"))
		})
	}
}

func TestCommandProber_Custom(t *testing.T) {
	ex := &fakeExec{respond: func(execx.Cmd) (execx.Result, error) {
		return execx.Result{}, &execx.ExitError{ExitCode: 9}
	}}
	st := NewCommandProber(ex, []string{"nvidia-smi", "-L"}).Probe(context.Background())
	assert.Equal(t, GPUNoDevice, st.State)
	assert.Equal(t, []string{"-L"}, ex.calls[0].Args)
	assert.False(t, st.Available())
}

func TestGPUStatusMessage(t *testing.T) {
	assert.Contains(t, GPUStatus{State: GPUAvailable}.Message(), "CUDA GPU detected")
	assert.Contains(t, GPUStatus{State: GPUProbeError, Detail: "boom"}.Message(), "Error checking GPU: boom")
}

func TestLocateScripts(t *testing.T) {
	rel := filepath.Join("tools", "quantization", "locate_me_7f3a.py")
	install := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(install, "tools", "quantization"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(install, rel), []byte("print('ok')\n"), 0o644))
	empty := t.TempDir()

	got := locateScripts([]string{"python3", rel, "--fast"}, empty, install)
	assert.Equal(t, []string{"python3", filepath.Join(install, rel), "--fast"}, got)

	missing := filepath.Join("tools", "nowhere_7f3a.py")
	got = locateScripts([]string{"python3", missing}, empty, install)
	assert.Equal(t, []string{"python3", missing}, got, "unresolved script stays as configured")

	abs := filepath.Join(empty, "abs.py")
	got = locateScripts([]string{"python3", abs}, install)
	assert.Equal(t, []string{"python3", abs}, got)

	// the executable itself is never rewritten
	got = locateScripts([]string{rel}, install)
	assert.Equal(t, []string{rel}, got)
}
