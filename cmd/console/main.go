package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/open-teleop/console/domain/connection"
	"github.com/open-teleop/console/domain/session"
	"github.com/open-teleop/console/pkg/api"
	"github.com/open-teleop/console/pkg/config"
	"github.com/open-teleop/console/pkg/journal"
	"github.com/open-teleop/console/pkg/link"
	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/processing"
	"github.com/open-teleop/console/pkg/zeromq"
	"github.com/open-teleop/console/services"
)

const shutdownTimeout = 5 * time.Second

func main() {
	defaultDir := os.Getenv("CONSOLE_CONFIG_DIR")
	if defaultDir == "" {
		defaultDir = "./config"
	}
	configDir := flag.String("config-dir", defaultDir, "directory holding console_config.yaml")
	flag.Parse()

	bootstrap, err := config.LoadBootstrapConfig(*configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load bootstrap config: %v\n", err)
		os.Exit(1)
	}

	logger, err := customlog.NewLogrusLogger(bootstrap.Logging.Level, bootstrap.Logging.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	configService, err := services.NewTeleopConfigService(bootstrap.Data.TeleopConfigPath(), logger)
	if err != nil {
		logger.Fatalf("Failed to load operational config: %v", err)
	}
	cfg := configService.GetCurrentConfig()

	// Link and dispatch
	httpLink := link.NewHTTPClient(rosterOf(cfg), bootstrap.Link.RequestTimeout(), logger)
	registry := processing.NewCommandRegistry(logger)
	registry.LoadFromConfig(cfg)
	director := processing.NewCommandDirector(httpLink, registry, logger, &processing.DirectorOptions{
		DefaultQueueSize: bootstrap.Processing.QueueSize,
	})
	director.Initialize(bootstrap.Processing.HighPriorityWorkers, bootstrap.Processing.StandardPriorityWorkers)

	machine := connection.NewMachine(httpLink, cfg.DefaultRobotID(), bootstrap.Link.PollInterval(), logger)

	sess, err := session.New(robotsOf(cfg), cfg.DefaultRobotID(), cfg.Input, director, machine, logger)
	if err != nil {
		logger.Fatalf("Failed to start session: %v", err)
	}

	// Optional journal
	var recorder processing.ResultRecorder
	var commandLog api.CommandLog
	if path := bootstrap.Data.JournalPath(); path != "" {
		j, err := journal.Open(path, logger)
		if err != nil {
			logger.Warnf("Journal disabled: %v", err)
		} else {
			defer j.Close()
			j.SetSessionID(sess.ID())
			j.Attach(machine)
			recorder, commandLog = j, j
		}
	}

	// Optional ZeroMQ fan-out
	var publisher processing.MessagePublisher
	var zmqService *zeromq.ZeroMQService
	if bootstrap.ZeroMQ.Enabled {
		zmqService, err = zeromq.NewZeroMQService(bootstrap.ZeroMQ, logger)
		if err != nil {
			logger.Fatalf("Failed to initialize ZeroMQ service: %v", err)
		}
		zeromq.RegisterConsoleHandlers(zmqService, configService, sess, machine, logger)
		configService.SetPublisher(zeromq.NewConfigPublisher(zmqService, configService, logger))
		zeromq.NewTelemetryPublisher(zmqService, logger).Attach(machine)
		publisher = zmqService
	}

	resultHandler := processing.NewConsoleResultHandler(logger, machine, recorder, publisher)
	director.SetResultHandler(resultHandler.CreateHandlerFunc())

	configService.OnUpdate(func(cfg *config.Config) {
		httpLink.SetRoster(rosterOf(cfg))
		registry.LoadFromConfig(cfg)
		if err := sess.SetRoster(robotsOf(cfg)); err != nil {
			logger.Warnf("Failed to apply roster: %v", err)
		}
	})

	// Start everything. The director outlives the signal context so the
	// final Stop can still be delivered.
	director.Start(context.Background())
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	machine.Start(ctx)
	if zmqService != nil {
		if err := zmqService.Start(); err != nil {
			logger.Fatalf("Failed to start ZeroMQ service: %v", err)
		}
	}

	app := api.NewApp(true)
	api.RegisterSessionRoutes(app, sess, logger)
	api.RegisterInputRoutes(app, sess, logger)
	api.RegisterStatusRoutes(app, machine, director, commandLog, logger)
	api.RegisterConfigRoutes(app, configService, logger)
	api.RegisterWebSocketRoutes(app, sess, machine, api.DefaultStatusInterval, logger)

	port := bootstrap.Server.HTTPPort
	if port == 0 {
		port = 8080
	}
	go func() {
		logger.Infof("Console listening on port %d", port)
		if err := app.Listen(fmt.Sprintf(":%d", port)); err != nil {
			logger.Errorf("HTTP server stopped: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Infof("Shutting down console...")

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warnf("Server forced to shutdown: %v", err)
	}
	sess.Pause()
	director.Stop()
	machine.Stop()
	if zmqService != nil {
		zmqService.Stop()
	}
	logger.Infof("Console exited properly")
}

func rosterOf(cfg *config.Config) link.Roster {
	roster := make(link.Roster, len(cfg.Robots))
	for _, r := range cfg.Robots {
		roster[r.ID] = r.BaseURL
	}
	return roster
}

func robotsOf(cfg *config.Config) []session.Robot {
	robots := make([]session.Robot, 0, len(cfg.Robots))
	for _, r := range cfg.Robots {
		name := r.Name
		if name == "" {
			name = r.ID
		}
		robots = append(robots, session.Robot{ID: r.ID, Name: name})
	}
	return robots
}
