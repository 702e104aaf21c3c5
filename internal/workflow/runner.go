package workflow

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/terminal"
)

// Terminal names owned by the runner. Sharing the build terminal across
// configure/build/upload keeps the shell's working directory and environment
// warm between steps; SITL gets its own terminal because the simulator runs
// un-awaited and may outlive any single request.
const (
	BuildTerminal = "devenv-build"
	SITLTerminal  = "devenv-sitl"
)

var sitlReady = regexp.MustCompile(`(?m)^Ready to FLY|Waiting for connection`)

// Runner drives the firmware workflow operations through terminal monitors.
type Runner struct {
	reg    *terminal.Registry
	log    *logging.Logger
	srcDir string
}

// NewRunner creates a runner for the firmware tree at srcDir.
func NewRunner(reg *terminal.Registry, log *logging.Logger, srcDir string) *Runner {
	return &Runner{reg: reg, log: log, srcDir: srcDir}
}

// Clone fetches the firmware tree (with submodules) into the runner's
// source directory.
func (r *Runner) Clone(ctx context.Context, repoURL string) error {
	cmd := fmt.Sprintf("git clone --recurse-submodules %s %s", repoURL, r.srcDir)
	return r.runChecked(ctx, "clone", cmd)
}

// Configure runs the build system's configure step for the profile's board.
func (r *Runner) Configure(ctx context.Context, p *Profile) error {
	cmd := fmt.Sprintf("cd %s && ./waf configure --board %s", r.srcDir, p.Board)
	for _, flag := range p.Configure {
		cmd += " " + flag
	}
	return r.runChecked(ctx, "configure", cmd)
}

// Build compiles the profile's target. The command is compound on purpose:
// the cd and the waf invocation are reported by the shell as separate
// executions, and the monitor resolves the run on the final one.
func (r *Runner) Build(ctx context.Context, p *Profile) error {
	cmd := fmt.Sprintf("cd %s && ./waf %s", r.srcDir, p.Target)
	return r.runChecked(ctx, "build", cmd)
}

// Upload builds and flashes the profile's target onto a connected board.
func (r *Runner) Upload(ctx context.Context, p *Profile) error {
	cmd := fmt.Sprintf("cd %s && ./waf %s --upload", r.srcDir, p.Target)
	return r.runChecked(ctx, "upload", cmd)
}

// StartSITL launches the simulator nonblocking and waits until its console
// reports ready. The simulator keeps running after StartSITL returns; it is
// stopped by StopSITL or by disposing the SITL monitor.
func (r *Runner) StartSITL(ctx context.Context, p *Profile, readyTimeout time.Duration) error {
	if p.Board != "sitl" {
		return fmt.Errorf("profile %q is not a SITL profile (board %q)", p.Name, p.Board)
	}

	m := r.reg.Monitor(SITLTerminal)
	cmd := fmt.Sprintf("cd %s && sim_vehicle.py -v %s", r.srcDir, p.Vehicle)
	if p.SimFrame != "" {
		cmd += " -f " + p.SimFrame
	}

	r.log.Info("starting SITL", zap.String("profile", p.Name), zap.String("command", cmd))
	if _, err := m.Run(ctx, cmd, terminal.RunOptions{Nonblocking: true}); err != nil {
		return err
	}

	if _, err := m.WaitForMatch(ctx, sitlReady, readyTimeout); err != nil {
		return fmt.Errorf("SITL did not report ready: %w", err)
	}
	return nil
}

// StopSITL tears down the simulator terminal through the monitor's graceful
// dispose: interrupt, bounded wait, and a refusal to destroy the terminal if
// the simulator will not stop.
func (r *Runner) StopSITL(ctx context.Context) error {
	m, ok := r.reg.Get(SITLTerminal)
	if !ok {
		return nil
	}
	return m.Dispose(ctx)
}

func (r *Runner) runChecked(ctx context.Context, step, cmd string) error {
	m := r.reg.Monitor(BuildTerminal)
	r.log.Info("workflow step", zap.String("step", step), zap.String("command", cmd))

	code, err := m.Run(ctx, cmd, terminal.RunOptions{})
	if err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	if code != 0 {
		return fmt.Errorf("%s failed with exit code %d", step, code)
	}
	return nil
}
