package workflow

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/host"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/terminal"
)

// okHost answers every sent command with a zero exit code, the way the VS
// Code-style substrate reports a compound command: one execution per part.
func okHost() *host.Stub {
	stub := host.NewStub()
	stub.OnSend = func(term, cmd string) {
		for _, part := range strings.Split(cmd, "&&") {
			part = strings.TrimSpace(part)
			stub.EmitStart(term, part)
			stub.EmitEnd(term, part, 0)
		}
	}
	return stub
}

func newTestRunner(t *testing.T, stub *host.Stub) (*Runner, *terminal.Registry) {
	t.Helper()
	reg := terminal.NewRegistry(stub, logging.NewNop(), terminal.Options{SettleDelay: time.Millisecond})
	return NewRunner(reg, logging.NewNop(), "ardupilot"), reg
}

func TestRunnerConfigureBuildsCompoundCommand(t *testing.T) {
	stub := okHost()
	r, _ := newTestRunner(t, stub)

	p := &Profile{Name: "cube", Vehicle: "ArduCopter", Board: "CubeOrange", Target: "copter", Configure: []string{"--enable-dds"}}
	require.NoError(t, r.Configure(context.Background(), p))

	sent := stub.Terminal(BuildTerminal).Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "cd ardupilot && ./waf configure --board CubeOrange --enable-dds", sent[0])
}

func TestRunnerBuildFailurePropagatesExitCode(t *testing.T) {
	stub := host.NewStub()
	stub.OnSend = func(term, cmd string) {
		stub.EmitStart(term, cmd)
		stub.EmitEnd(term, cmd, 2)
	}
	r, _ := newTestRunner(t, stub)

	err := r.Build(context.Background(), &Profile{Name: "x", Board: "sitl", Target: "copter"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exit code 2")
}

func TestRunnerCloneAndUploadCommands(t *testing.T) {
	stub := okHost()
	r, _ := newTestRunner(t, stub)

	require.NoError(t, r.Clone(context.Background(), "https://github.com/ArduPilot/ardupilot.git"))
	require.NoError(t, r.Upload(context.Background(), &Profile{Name: "cube", Board: "CubeOrange", Target: "copter"}))

	sent := stub.Terminal(BuildTerminal).Sent()
	require.Len(t, sent, 2)
	assert.Equal(t, "git clone --recurse-submodules https://github.com/ArduPilot/ardupilot.git ardupilot", sent[0])
	assert.Equal(t, "cd ardupilot && ./waf copter --upload", sent[1])
}

func TestRunnerStartSITLWaitsForReady(t *testing.T) {
	stub := host.NewStub()
	stub.OnSend = func(term, cmd string) {
		stub.EmitStart(term, cmd)
		// The simulator comes up asynchronously and never ends.
		go func() {
			time.Sleep(10 * time.Millisecond)
			stub.EmitOutput(term, "Ready to FLY  ArduCopter\n")
		}()
	}
	r, _ := newTestRunner(t, stub)

	p := &Profile{Name: "sitl-copter", Vehicle: "ArduCopter", Board: "sitl", Target: "copter", SimFrame: "quad"}
	require.NoError(t, r.StartSITL(context.Background(), p, time.Second))

	sent := stub.Terminal(SITLTerminal).Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "cd ardupilot && sim_vehicle.py -v ArduCopter -f quad", sent[0])
}

func TestRunnerStartSITLRejectsHardwareProfile(t *testing.T) {
	r, _ := newTestRunner(t, okHost())
	err := r.StartSITL(context.Background(), &Profile{Name: "cube", Board: "CubeOrange", Target: "copter"}, time.Second)
	assert.Error(t, err)
}

func TestRunnerStartSITLReadyTimeout(t *testing.T) {
	stub := host.NewStub()
	stub.OnSend = func(term, cmd string) { stub.EmitStart(term, cmd) }
	r, _ := newTestRunner(t, stub)

	p := &Profile{Name: "sitl-copter", Vehicle: "ArduCopter", Board: "sitl", Target: "copter"}
	err := r.StartSITL(context.Background(), p, 50*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, terminal.ErrTimeout)
}

func TestRunnerStopSITLDisposesMonitor(t *testing.T) {
	stub := host.NewStub()
	stub.OnSend = func(term, cmd string) {
		stub.EmitStart(term, cmd)
		go func() {
			time.Sleep(5 * time.Millisecond)
			stub.EmitOutput(term, "Waiting for connection\n")
		}()
	}
	r, reg := newTestRunner(t, stub)

	p := &Profile{Name: "sitl-copter", Vehicle: "ArduCopter", Board: "sitl", Target: "copter"}
	require.NoError(t, r.StartSITL(context.Background(), p, time.Second))
	require.True(t, reg.Monitor(SITLTerminal).Active())

	// The interrupt lands and the simulator reports its end.
	term := stub.Terminal(SITLTerminal)
	go func() {
		for term.Interrupts() == 0 {
			time.Sleep(time.Millisecond)
		}
		stub.EmitEnd(SITLTerminal, "cd ardupilot && sim_vehicle.py -v ArduCopter", 130)
	}()

	require.NoError(t, r.StopSITL(context.Background()))
	assert.True(t, term.Closed())
}

func TestRunnerStopSITLNoopWithoutMonitor(t *testing.T) {
	r, _ := newTestRunner(t, okHost())
	assert.NoError(t, r.StopSITL(context.Background()))
}
