package quantize

import (
	"context"
	"strings"
	"time"

	"modelkit/internal/common/execx"
)

// GPUState is the outcome of probing for a CUDA-capable runtime.
type GPUState int

const (
	GPUAvailable GPUState = iota
	GPUNoDevice
	GPURuntimeMissing
	GPUProbeError
)

func (s GPUState) String() string {
	switch s {
	case GPUAvailable:
		return "available"
	case GPUNoDevice:
		return "no_device"
	case GPURuntimeMissing:
		return "runtime_missing"
	case GPUProbeError:
		return "probe_error"
	default:
		return "unknown"
	}
}

// GPUStatus is what a probe found.
type GPUStatus struct {
	State  GPUState
	Detail string
}

// Available reports whether real quantization should be attempted.
func (s GPUStatus) Available() bool { return s.State == GPUAvailable }

// Message is the one-line human summary printed before quantization.
func (s GPUStatus) Message() string {
	switch s.State {
	case GPUAvailable:
		return "CUDA GPU detected. Attempting actual quantization..."
	case GPUNoDevice:
		return "No CUDA GPU detected. Quantization will be simulated."
	case GPURuntimeMissing:
		return "PyTorch not installed. Quantization will be simulated."
	default:
		return "Error checking GPU: " + s.Detail + ". Quantization will be simulated."
	}
}

// GPUProber detects whether a CUDA-capable numeric runtime is usable.
type GPUProber interface {
	Probe(ctx context.Context) GPUStatus
}

// Exit codes used by torchProbeScript.
const (
	probeExitRuntimeMissing = 3
	probeExitNoDevice       = 4
)

const torchProbeScript = `import sys
try:
    import torch
except ImportError:
    sys.exit(3)
sys.exit(0 if torch.cuda.is_available() else 4)
`

const probeTimeout = 2 * time.Minute

// CommandProber runs a probe command. The default command imports torch and
// asks it for CUDA; a custom command (e.g. nvidia-smi) counts as available
// when it exits 0.
type CommandProber struct {
	exec    execx.Executor
	cmd     execx.Cmd
	builtin bool
}

// NewCommandProber returns a prober using cmd, or the torch probe when cmd is empty.
func NewCommandProber(ex execx.Executor, cmd []string) *CommandProber {
	if len(cmd) == 0 {
		return &CommandProber{
			exec:    ex,
			cmd:     execx.Cmd{Path: "python3", Args: []string{"-c", torchProbeScript}},
			builtin: true,
		}
	}
	return &CommandProber{exec: ex, cmd: execx.Cmd{Path: cmd[0], Args: cmd[1:]}}
}

func (p *CommandProber) Probe(ctx context.Context) GPUStatus {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	_, err := p.exec.Run(ctx, p.cmd)
	if err == nil {
		return GPUStatus{State: GPUAvailable}
	}
	if execx.IsNotFound(err) {
		return GPUStatus{State: GPURuntimeMissing, Detail: p.cmd.Path + " not found"}
	}
	code := execx.ExitCode(err)
	if p.builtin {
		switch code {
		case probeExitRuntimeMissing:
			return GPUStatus{State: GPURuntimeMissing, Detail: "torch not importable"}
		case probeExitNoDevice:
			return GPUStatus{State: GPUNoDevice}
		}
		return GPUStatus{State: GPUProbeError, Detail: strings.TrimSpace(err.Error())}
	}
	if code > 0 {
		return GPUStatus{State: GPUNoDevice, Detail: strings.TrimSpace(err.Error())}
	}
	return GPUStatus{State: GPUProbeError, Detail: strings.TrimSpace(err.Error())}
}
