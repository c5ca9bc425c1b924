package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"

	"github.com/gofiber/fiber/v2"

	customlog "github.com/open-teleop/console/pkg/log"
	"github.com/open-teleop/console/pkg/robotsim"
)

func main() {
	robots := flag.String("robots", "rb-01=127.0.0.1:8001,rb-02=127.0.0.1:8002,rb-03=127.0.0.1:8003",
		"comma-separated id=host:port list of robots to simulate")
	level := flag.String("log-level", "info", "log level")
	tick := flag.Duration("tick", robotsim.DefaultTick, "simulation step")
	flag.Parse()

	logger, err := customlog.NewLogrusLogger(*level, "")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		wg   sync.WaitGroup
		apps []*fiber.App
	)
	for _, entry := range strings.Split(*robots, ",") {
		id, addr, ok := strings.Cut(strings.TrimSpace(entry), "=")
		if !ok || id == "" || addr == "" {
			logger.Fatalf("Invalid robot entry %q, expected id=host:port", entry)
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatalf("Failed to listen for %s on %s: %v", id, addr, err)
		}

		sim := robotsim.New(id, logger.WithField("robot", id))
		app := sim.App()
		apps = append(apps, app)

		wg.Add(2)
		go func() {
			defer wg.Done()
			sim.Run(ctx, *tick)
		}()
		go func() {
			defer wg.Done()
			if err := sim.Serve(app, ln); err != nil {
				logger.Errorf("Robot %s server stopped: %v", id, err)
			}
		}()
	}

	<-ctx.Done()
	logger.Infof("Shutting down simulated robots...")
	for _, app := range apps {
		if err := app.Shutdown(); err != nil {
			logger.Warnf("Shutdown: %v", err)
		}
	}
	wg.Wait()
}
