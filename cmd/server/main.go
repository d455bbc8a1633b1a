package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nickyhof/orpheus"
	"github.com/nickyhof/orpheus/config"
	"github.com/sirupsen/logrus"
)

// Version is set at build time via -ldflags
var Version = "dev"

func main() {
	configPath := flag.String("config", "", "Configuration file (default $"+config.EnvPath+" or "+config.DefaultPath+")")
	port := flag.Int("port", 0, "TCP port to listen on (overrides the configuration)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Orpheus Server v%s\n", Version)
		return
	}

	cfg, err := config.Load(config.Path(*configPath))
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}
	if cfg.Store.ConnectTimeout == 0 {
		cfg.Store.ConnectTimeout = 30 * time.Second
	}

	logger := cfg.Logger()
	logrus.SetLevel(logger.GetLevel())

	instance, err := orpheus.OpenConfig(context.Background(), cfg)
	if err != nil {
		logger.WithError(err).Fatal("failed to open instance")
	}
	defer instance.Close()

	logger.WithFields(logrus.Fields{
		"driver": instance.Store.Dialect(),
		"meta":   cfg.Meta.Dir,
	}).Info("instance opened")

	auth := authConfigFrom(cfg.Server)
	if auth == nil {
		logger.Warn("no jwt secret configured, every connection acts as the configured user")
	}

	server := NewServer(instance, cfg.User, auth, logger)
	if err := server.Start(fmt.Sprintf(":%d", cfg.Server.Port)); err != nil {
		logger.WithError(err).Fatal("failed to start server")
	}

	fmt.Println()
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Printf("║   Orpheus Server v%-19s ║\n", Version)
	fmt.Println("║   Dataset Version Control             ║")
	fmt.Println("╚═══════════════════════════════════════╝")
	fmt.Println()
	fmt.Printf("Listening on port %d\n", cfg.Server.Port)
	fmt.Println(`Send one JSON request per line, e.g. {"op":"ls"}; 'quit' to disconnect`)
	fmt.Println()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down")
	if err := server.Stop(); err != nil {
		logger.WithError(err).Warn("listener close failed")
	}
	logger.Info("server stopped")
}
