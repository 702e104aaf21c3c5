package workflow

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/terminal"
)

// Tool is one toolchain dependency probed by the validator.
type Tool struct {
	Name     string `json:"name"`
	Command  string `json:"command"`
	Optional bool   `json:"optional"`
}

// ToolStatus is the result of probing one tool.
type ToolStatus struct {
	Tool     Tool `json:"tool"`
	Present  bool `json:"present"`
	ExitCode int  `json:"exit_code"`
}

// DefaultTools lists the toolchain the firmware tree needs. Version commands
// exit zero when the tool is installed and on PATH.
func DefaultTools() []Tool {
	return []Tool{
		{Name: "git", Command: "git --version"},
		{Name: "python", Command: "python3 --version"},
		{Name: "gcc", Command: "gcc --version"},
		{Name: "arm-gcc", Command: "arm-none-eabi-gcc --version"},
		{Name: "gdb", Command: "gdb --version", Optional: true},
		{Name: "ccache", Command: "ccache --version", Optional: true},
		{Name: "mavproxy", Command: "mavproxy.py --version", Optional: true},
	}
}

// Validator checks toolchain availability by running version commands
// through a dedicated terminal monitor.
type Validator struct {
	reg     *terminal.Registry
	log     *logging.Logger
	tools   []Tool
	timeout time.Duration
}

// validatorTerminal is the terminal the validator runs its probes in.
const validatorTerminal = "devenv-toolchain"

// NewValidator creates a validator probing the given tools; nil tools means
// DefaultTools.
func NewValidator(reg *terminal.Registry, log *logging.Logger, tools []Tool) *Validator {
	if tools == nil {
		tools = DefaultTools()
	}
	return &Validator{
		reg:     reg,
		log:     log,
		tools:   tools,
		timeout: 15 * time.Second,
	}
}

// Validate probes every tool and returns per-tool status. It fails only when
// a required tool is missing or a probe could not run at all.
func (v *Validator) Validate(ctx context.Context) ([]ToolStatus, error) {
	m := v.reg.Monitor(validatorTerminal)

	statuses := make([]ToolStatus, 0, len(v.tools))
	var missing []string
	for _, tool := range v.tools {
		probeCtx, cancel := context.WithTimeout(ctx, v.timeout)
		code, err := m.Run(probeCtx, tool.Command, terminal.RunOptions{})
		cancel()
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, terminal.ErrTimeout) {
				// A hung probe counts as absent.
				v.log.Warn("toolchain probe timed out",
					zap.String("tool", tool.Name),
					zap.String("command", tool.Command))
				code = -1
			} else {
				return statuses, err
			}
		}

		present := code == 0
		statuses = append(statuses, ToolStatus{Tool: tool, Present: present, ExitCode: code})
		if !present && !tool.Optional {
			missing = append(missing, tool.Name)
		}
	}

	if len(missing) > 0 {
		return statuses, &MissingToolsError{Tools: missing}
	}
	return statuses, nil
}

// MissingToolsError reports required tools absent from the environment.
type MissingToolsError struct {
	Tools []string
}

func (e *MissingToolsError) Error() string {
	return "missing required tools: " + strings.Join(e.Tools, ", ")
}
