package server

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	apihttp "github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/api/http"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/api/middleware"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/config"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/host"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/logging"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/monitoring"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/terminal"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/workflow"
	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/ws"
)

// disposeTimeout bounds how long shutdown waits on terminals with running
// commands before giving up and leaving them open.
const disposeTimeout = 30 * time.Second

// Server wraps the HTTP server and dependencies.
type Server struct {
	router *gin.Engine
	reg    *terminal.Registry
	log    *logging.Logger
}

// New builds a fully wired server from configuration.
func New(cfg *config.Config, log *logging.Logger) (*Server, error) {
	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}

	promReg := prometheus.NewRegistry()
	promReg.MustRegister(collectors.NewGoCollector())
	promReg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := monitoring.NewMetrics(promReg)

	terminalHost := host.NewPTY(log.Named("pty"))
	reg := terminal.NewRegistry(terminalHost, log.Named("terminal"), terminal.Options{
		SettleDelay: cfg.Terminal.SettleDelay(),
		Terminal:    host.Options{Shell: cfg.Terminal.Shell},
	})

	profiles, err := loadProfiles(cfg, log)
	if err != nil {
		return nil, err
	}

	runner := workflow.NewRunner(reg, log.Named("workflow"), cfg.Workflow.SourceDir)
	validator := workflow.NewValidator(reg, log.Named("toolchain"), workflow.DefaultTools())
	manifest := workflow.NewManifestClient(cfg.Workflow.FirmwareServer, log.Named("manifest"))

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	router.Use(monitoring.Middleware(metrics))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(reg, runner, validator, manifest, profiles, metrics, log.Named("http"))
	wsHandler := ws.NewHandler(reg, metrics, log.Named("ws"))

	router.GET("/health", handlers.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promReg, promhttp.HandlerOpts{})))

	router.GET("/terminals", handlers.ListTerminals)
	router.POST("/terminals", handlers.CreateTerminal)
	router.POST("/terminals/:name/run", handlers.RunCommand)
	router.POST("/terminals/:name/wait", handlers.Wait)
	router.DELETE("/terminals/:name", handlers.DisposeTerminal)

	router.GET("/workflow/profiles", handlers.Profiles)
	router.GET("/workflow/toolchain", handlers.Toolchain)
	router.GET("/workflow/boards", handlers.Boards)
	router.POST("/workflow/clone", handlers.Clone)
	router.POST("/workflow/configure", handlers.Configure)
	router.POST("/workflow/build", handlers.Build)
	router.POST("/workflow/upload", handlers.Upload)
	router.POST("/workflow/sitl/start", handlers.StartSITL)
	router.POST("/workflow/sitl/stop", handlers.StopSITL)

	router.GET("/ws/terminals/:name", wsHandler.Stream)

	return &Server{router: router, reg: reg, log: log}, nil
}

func loadProfiles(cfg *config.Config, log *logging.Logger) (*workflow.ProfileSet, error) {
	if cfg.Workflow.ProfilesPath == "" {
		return workflow.DefaultProfiles(), nil
	}
	profiles, err := workflow.LoadProfiles(cfg.Workflow.ProfilesPath)
	if err != nil {
		return nil, err
	}
	log.Info("loaded build profiles",
		zap.String("path", cfg.Workflow.ProfilesPath),
		zap.Int("count", len(profiles.Profiles)))
	return profiles, nil
}

// Run starts the server on addr and blocks.
func (s *Server) Run(addr string) error {
	s.log.Info("starting server", zap.String("addr", addr))
	return s.router.Run(addr)
}

// Close disposes every monitor. Terminals whose commands refuse to stop are
// left open; their errors are joined and returned.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), disposeTimeout)
	defer cancel()
	return s.reg.DisposeAll(ctx)
}
