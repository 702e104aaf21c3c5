// Package http exposes the terminal monitors and firmware workflows over a
// REST surface consumed by the editor-side extension.
package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/monitoring"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/terminal"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/workflow"
)

// Handlers contains all HTTP handlers.
type Handlers struct {
	reg       *terminal.Registry
	runner    *workflow.Runner
	validator *workflow.Validator
	manifest  *workflow.ManifestClient
	profiles  *workflow.ProfileSet
	metrics   *monitoring.Metrics
	log       *logging.Logger
}

// NewHandlers creates a new handler set.
func NewHandlers(
	reg *terminal.Registry,
	runner *workflow.Runner,
	validator *workflow.Validator,
	manifest *workflow.ManifestClient,
	profiles *workflow.ProfileSet,
	metrics *monitoring.Metrics,
	log *logging.Logger,
) *Handlers {
	return &Handlers{
		reg:       reg,
		runner:    runner,
		validator: validator,
		manifest:  manifest,
		profiles:  profiles,
		metrics:   metrics,
		log:       log,
	}
}

// Health handles the health check.
func (h *Handlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "ardupilot-devenv",
		"monitors": h.reg.Len(),
	})
}

// ListTerminals returns the names of all registered monitors.
func (h *Handlers) ListTerminals(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"terminals": h.reg.Names()})
}

type createTerminalRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateTerminal ensures a monitor and live terminal exist under a name.
func (h *Handlers) CreateTerminal(c *gin.Context) {
	var req createTerminalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := h.reg.Monitor(req.Name)
	if err := m.EnsureTerminal(c.Request.Context()); err != nil {
		h.fail(c, err)
		return
	}
	h.metrics.MonitorsActive.Set(float64(h.reg.Len()))
	c.JSON(http.StatusOK, gin.H{"name": req.Name})
}

type runRequest struct {
	Command     string `json:"command" binding:"required"`
	Nonblocking bool   `json:"nonblocking"`
	TimeoutMs   int    `json:"timeout_ms"`
}

// RunCommand runs a command in a named terminal.
func (h *Handlers) RunCommand(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	ctx := c.Request.Context()
	if req.TimeoutMs > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutMs)*time.Millisecond)
		defer cancel()
	}

	name := c.Param("name")
	m := h.reg.Monitor(name)

	start := time.Now()
	code, err := m.Run(ctx, req.Command, terminal.RunOptions{Nonblocking: req.Nonblocking})
	if err != nil {
		h.metrics.RecordCommand(name, "error", time.Since(start))
		h.fail(c, err)
		return
	}

	status := "ok"
	if code != 0 {
		status = "nonzero"
	}
	h.metrics.RecordCommand(name, status, time.Since(start))
	c.JSON(http.StatusOK, gin.H{"exit_code": code})
}

type waitRequest struct {
	Kind      string `json:"kind"`
	Text      string `json:"text"`
	TimeoutMs int    `json:"timeout_ms"`
}

// Wait blocks until the requested event kind fires or text appears.
func (h *Handlers) Wait(c *gin.Context) {
	var req waitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	m := h.reg.Monitor(c.Param("name"))
	timeout := time.Duration(req.TimeoutMs) * time.Millisecond

	if req.Text != "" {
		text, err := m.WaitForText(c.Request.Context(), req.Text, timeout)
		if err != nil {
			h.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"text": text})
		return
	}

	kind, ok := parseKind(req.Kind)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown event kind: " + req.Kind})
		return
	}
	ev, err := m.WaitFor(c.Request.Context(), kind, timeout)
	if err != nil {
		h.fail(c, err)
		return
	}
	resp := gin.H{"kind": ev.Kind.String(), "command_line": ev.CommandLine}
	if ev.ExitCode != nil {
		resp["exit_code"] = *ev.ExitCode
	}
	c.JSON(http.StatusOK, resp)
}

// DisposeTerminal disposes a monitor, honoring the graceful-teardown
// contract: a terminal whose command will not stop is left open and the
// conflict is reported to the caller.
func (h *Handlers) DisposeTerminal(c *gin.Context) {
	name := c.Param("name")
	m, ok := h.reg.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such terminal: " + name})
		return
	}

	if err := m.Dispose(c.Request.Context()); err != nil {
		if errors.Is(err, terminal.ErrCleanupFailed) {
			h.metrics.CleanupFailures.Inc()
			h.log.Warn("terminal left open", zap.String("terminal", name))
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "terminal_open": true})
			return
		}
		h.fail(c, err)
		return
	}
	h.metrics.MonitorsActive.Set(float64(h.reg.Len()))
	c.Status(http.StatusNoContent)
}

// Profiles returns the configured build profiles.
func (h *Handlers) Profiles(c *gin.Context) {
	c.JSON(http.StatusOK, h.profiles)
}

// Toolchain validates the toolchain and reports per-tool status.
func (h *Handlers) Toolchain(c *gin.Context) {
	statuses, err := h.validator.Validate(c.Request.Context())

	var missing *workflow.MissingToolsError
	if err != nil && !errors.As(err, &missing) {
		h.fail(c, err)
		return
	}
	resp := gin.H{"tools": statuses, "valid": err == nil}
	if missing != nil {
		resp["missing"] = missing.Tools
	}
	c.JSON(http.StatusOK, resp)
}

// Boards returns boards with prebuilt firmware for an optional vehicle.
func (h *Handlers) Boards(c *gin.Context) {
	manifest, err := h.manifest.Fetch(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"boards": manifest.Boards(c.Query("vehicle"))})
}

type profileRequest struct {
	Profile string `json:"profile" binding:"required"`
}

// Configure runs the configure step for a profile.
func (h *Handlers) Configure(c *gin.Context) {
	h.runProfileStep(c, h.runner.Configure)
}

// Build runs the build step for a profile.
func (h *Handlers) Build(c *gin.Context) {
	h.runProfileStep(c, h.runner.Build)
}

// Upload flashes a profile's firmware onto a connected board.
func (h *Handlers) Upload(c *gin.Context) {
	h.runProfileStep(c, h.runner.Upload)
}

type cloneRequest struct {
	RepoURL string `json:"repo_url" binding:"required"`
}

// Clone fetches the firmware source tree.
func (h *Handlers) Clone(c *gin.Context) {
	var req cloneRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.runner.Clone(c.Request.Context(), req.RepoURL); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// StartSITL launches the simulator for a SITL profile.
func (h *Handlers) StartSITL(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, ok := h.profiles.Find(req.Profile)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such profile: " + req.Profile})
		return
	}
	if err := h.runner.StartSITL(c.Request.Context(), p, 2*time.Minute); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"terminal": workflow.SITLTerminal})
}

// StopSITL stops the simulator via graceful disposal.
func (h *Handlers) StopSITL(c *gin.Context) {
	if err := h.runner.StopSITL(c.Request.Context()); err != nil {
		if errors.Is(err, terminal.ErrCleanupFailed) {
			h.metrics.CleanupFailures.Inc()
			c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "terminal_open": true})
			return
		}
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handlers) runProfileStep(c *gin.Context, step func(context.Context, *workflow.Profile) error) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	p, ok := h.profiles.Find(req.Profile)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such profile: " + req.Profile})
		return
	}
	if err := step(c.Request.Context(), p); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// fail maps the monitor's error taxonomy onto HTTP statuses: timeouts are
// 504 so the caller can retry, a missing terminal is 503, everything else
// is a plain 500.
func (h *Handlers) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, terminal.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		h.metrics.WaitTimeouts.Inc()
		status = http.StatusGatewayTimeout
	case errors.Is(err, terminal.ErrNoTerminal):
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func parseKind(s string) (terminal.Kind, bool) {
	switch s {
	case "text":
		return terminal.KindText, true
	case "opened":
		return terminal.KindOpened, true
	case "closed":
		return terminal.KindClosed, true
	case "exec-start":
		return terminal.KindExecStart, true
	case "exec-end":
		return terminal.KindExecEnd, true
	default:
		return 0, false
	}
}
