package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"github.com/arwaypoint/engine/internal/api"
	"github.com/arwaypoint/engine/internal/cache"
	"github.com/arwaypoint/engine/internal/channel"
	"github.com/arwaypoint/engine/internal/config"
	"github.com/arwaypoint/engine/internal/dispatcher"
	"github.com/arwaypoint/engine/internal/engine"
	"github.com/arwaypoint/engine/internal/geo"
	"github.com/arwaypoint/engine/internal/influx"
	"github.com/arwaypoint/engine/internal/logging"
	"github.com/arwaypoint/engine/internal/monitor"
	intOtel "github.com/arwaypoint/engine/internal/otel"
	"github.com/arwaypoint/engine/internal/parser"
	"github.com/arwaypoint/engine/internal/recorder"
	"github.com/arwaypoint/engine/internal/server"
	"github.com/arwaypoint/engine/internal/session"
	"github.com/arwaypoint/engine/internal/worker"
)

// Version and BuildDate can be set at build time via ldflags.
var (
	Version   string = "0.1.0"
	BuildDate string = "unknown"
)

const appName = "waypointd"

func main() {
	var (
		configDir    string
		replayFile   string
		replaySpeed  float64
		simulate     bool
		exportKey    string
		exportDB     string
		exportOut    string
		listSessions bool
		showVersion  bool
	)
	flag.StringVar(&configDir, "config", ".", "directory containing waypointd.cfg.json")
	flag.StringVar(&replayFile, "replay", "", "replay a session export through a fresh engine and print projections")
	flag.Float64Var(&replaySpeed, "replay-speed", 0, "replay pacing as a real-time multiplier; 0 replays without delay")
	flag.BoolVar(&simulate, "simulate", false, "drive the engine with a synthetic walker instead of a sensor client")
	flag.StringVar(&exportKey, "export", "", "re-export a recorded session (key, label, or \"latest\") from the database as a JSON archive")
	flag.StringVar(&exportDB, "export-db", "", "read the recording from this SQLite file instead of the configured database")
	flag.StringVar(&exportOut, "export-out", "", "directory for re-exported archives; defaults to the configured recording output dir")
	flag.BoolVar(&listSessions, "sessions", false, "list recorded sessions in the database and exit")
	flag.BoolVar(&showVersion, "version", false, "print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Printf("%s %s (built %s)\n", appName, Version, BuildDate)
		return
	}

	// Replay is self-contained: no config, no network, no recording.
	if replayFile != "" {
		if err := runReplay(replayFile, replaySpeed); err != nil {
			fmt.Fprintf(os.Stderr, "replay failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if listSessions {
		if err := runListSessions(configDir, exportDB); err != nil {
			fmt.Fprintf(os.Stderr, "list sessions failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if exportKey != "" {
		if err := runExport(configDir, exportKey, exportDB, exportOut); err != nil {
			fmt.Fprintf(os.Stderr, "export failed: %v\n", err)
			os.Exit(1)
		}
		return
	}

	app, err := newApplication(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "startup failed: %v\n", err)
		os.Exit(1)
	}

	if simulate {
		err = app.runSimulation()
	} else {
		err = app.serve()
	}

	app.shutdown()

	if err != nil {
		app.logger.Error("Exited with error", "error", err)
		os.Exit(1)
	}
}

// application holds the wired service graph for serve and simulate modes.
type application struct {
	startTime time.Time

	logMgr  *logging.SlogManager
	logger  *slog.Logger
	logFile *os.File

	otelProvider *intOtel.Provider
	influxMgr    *influx.Manager
	archive      *api.Client

	sessions   *session.Context
	engine     *engine.Engine
	dispatcher *dispatcher.Dispatcher
	backend    recorder.Backend
	worker     *worker.Manager
	monitor    *monitor.Service
	server     *server.Server

	ctx    context.Context
	cancel context.CancelFunc
}

func newApplication(configDir string) (*application, error) {
	app := &application{startTime: time.Now()}
	app.ctx, app.cancel = context.WithCancel(context.Background())

	// Console logging until the log file is in place.
	app.logMgr = logging.NewSlogManager()
	app.logMgr.Setup(nil, "info", nil)
	app.logger = app.logMgr.Logger()

	if err := config.Load(configDir); err != nil {
		app.logger.Warn("Failed to load config, using defaults!", "error", err)
	} else {
		app.logger.Info("Loaded config", "dir", configDir)
	}

	logsDir := config.GetString("logsDir")
	if _, err := os.Stat(logsDir); os.IsNotExist(err) {
		_ = os.MkdirAll(logsDir, 0755)
	}

	logPath := logging.LogFilePath(logsDir, appName, app.startTime)
	logFile, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
	if err != nil {
		app.logger.Error("Failed to open log file, keeping console logging", "error", err, "path", logPath)
	} else {
		app.logFile = logFile
	}

	// OTel log export shares the log file, plus an OTLP endpoint if set.
	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		provider, err := intOtel.New(intOtel.Config{
			Enabled:      otelCfg.Enabled,
			ServiceName:  otelCfg.ServiceName,
			BatchTimeout: otelCfg.BatchTimeout,
			LogWriter:    app.logFile,
			Endpoint:     otelCfg.Endpoint,
			Insecure:     otelCfg.Insecure,
		})
		if err != nil {
			app.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			app.otelProvider = provider
			app.logger.Info("OTel provider initialized", "endpoint", otelCfg.Endpoint)
		}
	}

	if config.GetBool("graylog.enabled") {
		w, err := logging.NewGelfWriter(config.GetString("graylog.address"))
		if err != nil {
			app.logger.Warn("Graylog unreachable, skipping GELF sink", "error", err)
		} else {
			app.logMgr.UseGraylog(w)
		}
	}

	app.sessions = session.NewContext()

	// Stamp the live session key on every record.
	app.logMgr.UseContext(func() []slog.Attr {
		if sess, active := app.sessions.Current(); active {
			return []slog.Attr{slog.String("sessionKey", sess.SessionKey)}
		}
		return nil
	})

	// Re-setup logging with file output and optional OTel.
	var otelLogProvider *sdklog.LoggerProvider
	if app.otelProvider != nil {
		otelLogProvider = app.otelProvider.LoggerProvider()
	}
	app.logMgr.Setup(app.logFile, config.GetString("logLevel"), otelLogProvider)
	app.logger = app.logMgr.Logger()
	if app.logFile != nil {
		app.logger.Info("Logging to file", "path", logPath)
	}

	// The database, influx and dispatcher sides log through zerolog.
	zlog := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if config.GetBool("influx.enabled") {
		backupPath := filepath.Join(logsDir, fmt.Sprintf(
			"influx_backup_%s.lp.gz", app.startTime.Format("20060102_150405"),
		))
		mgr := influx.NewManager(zlog, backupPath)
		if err := mgr.Connect(); err != nil {
			app.logger.Warn("Metrics export unavailable", "error", err)
		} else {
			mgr.StartHealthCheck(app.ctx, 30*time.Second)
			app.influxMgr = mgr
		}
	}

	engCfg := config.GetEngineConfig()
	eng, err := engine.New(engine.Config{
		HeadingSmoothing:  engCfg.HeadingSmoothing,
		PositionSmoothing: engCfg.PositionSmoothing,
		MaxElevationRad:   geo.DegToRad(engCfg.MaxElevationDeg),
		RenderRadius:      engCfg.RenderRadius,
		EarthRadiusM:      geo.EarthRadiusM,
	})
	if err != nil {
		return nil, fmt.Errorf("invalid engine config: %w", err)
	}
	app.engine = eng

	d, err := dispatcher.New(logging.NewDispatcherLogger(zlog))
	if err != nil {
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}
	app.dispatcher = d

	storageCfg := config.GetStorageConfig()
	backend, err := recorder.NewBackend(storageCfg, recorder.Dependencies{
		WaypointCache:  cache.NewWaypointCache(),
		LogManager:     app.logMgr,
		SessionContext: app.sessions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create %s recording backend: %w", storageCfg.Type, err)
	}
	if err := backend.Init(); err != nil {
		return nil, fmt.Errorf("failed to init %s recording backend: %w", storageCfg.Type, err)
	}
	app.backend = backend
	app.logger.Info("Recording backend initialized", "type", storageCfg.Type)

	if key := config.GetString("api.apiKey"); key != "" {
		app.archive = api.New(config.GetString("api.serverUrl"), key)
		go app.checkArchiveStatus()
	}

	outbound := channel.New[[]byte](4096)

	app.worker = worker.NewManager(worker.Dependencies{
		LogManager:     app.logMgr,
		SessionContext: app.sessions,
		Parser:         parser.New(app.logger, Version),
		Engine:         app.engine,
		Influx:         app.influxMgr,
		Archive:        app.archive,
		DefaultTag:     config.GetString("defaultTag"),
	}, backend, outbound)
	app.worker.RegisterHandlers(d)

	clients := &cache.SafeCounter{}

	monDeps := monitor.Dependencies{
		LogManager:     app.logMgr,
		SessionContext: app.sessions,
		Engine:         app.engine,
		Dispatcher:     d,
		Influx:         app.influxMgr,
		Clients:        clients,
	}
	if q, ok := backend.(recorder.QueueReporter); ok {
		monDeps.Queues = q
	}
	if p, ok := backend.(recorder.PerformanceRecorder); ok {
		monDeps.Performance = p
	}
	mon, err := monitor.NewService(monDeps)
	if err != nil {
		return nil, fmt.Errorf("failed to create monitor service: %w", err)
	}
	app.monitor = mon
	if err := mon.Start(); err != nil {
		app.logger.Error("Failed to start status monitor", "error", err)
	}

	app.server = server.New(server.Dependencies{
		LogManager:     app.logMgr,
		SessionContext: app.sessions,
		Dispatcher:     d,
		Monitor:        mon,
		Clients:        clients,
		Version:        Version,
		Secret:         config.GetString("server.secret"),
	}, outbound)

	return app, nil
}

// serve runs the gateway until SIGINT or SIGTERM.
func (app *application) serve() error {
	if err := app.server.Start(config.GetString("server.listenAddr")); err != nil {
		return err
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	sig := <-stop
	app.logger.Info("Shutting down", "signal", sig.String())
	return nil
}

// checkArchiveStatus logs whether the archive hub answers its healthcheck.
func (app *application) checkArchiveStatus() {
	ctx, cancel := context.WithTimeout(app.ctx, 10*time.Second)
	defer cancel()
	if err := app.archive.Healthcheck(ctx); err != nil {
		app.logger.Info("Archive hub is offline", "error", err)
		return
	}
	app.logger.Info("Archive hub is online")
}

// shutdown tears the service graph down in dependency order: server first
// so no new sensor events arrive, then recording, then telemetry.
func (app *application) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if app.server != nil {
		if err := app.server.Stop(ctx); err != nil {
			app.logger.Error("Gateway server shutdown failed", "error", err)
		}
	}
	if app.monitor != nil {
		app.monitor.Stop()
	}
	if app.backend != nil {
		if err := app.backend.Close(); err != nil {
			app.logger.Error("Recording backend close failed", "error", err)
		}
	}

	app.cancel()

	if app.influxMgr != nil {
		app.influxMgr.Close()
	}
	if err := app.logMgr.Flush(ctx); err != nil {
		app.logger.Error("Log flush failed", "error", err)
	}
	if app.otelProvider != nil {
		if err := app.otelProvider.Shutdown(ctx); err != nil {
			app.logger.Error("OTel shutdown failed", "error", err)
		}
	}
	if app.logFile != nil {
		_ = app.logFile.Close()
	}
}
