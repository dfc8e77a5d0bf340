package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/corehttp/httpd/pkg/config"
	"github.com/corehttp/httpd/pkg/ratelimit"
	"github.com/corehttp/httpd/pkg/router"
	"github.com/corehttp/httpd/pkg/server"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config file (defaults to built-in defaults)")
	flag.Parse()

	logger := log.New(os.Stderr, "[httpd] ", log.LstdFlags)

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatalf("loading config: %v", err)
		}
		cfg = loaded
	}

	rt := router.New()
	rl := ratelimit.FromConfig(cfg.RateLimiter)
	server.BuildRouter(cfg, rt, rl)

	srv := server.New(cfg, rt, logger)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Print("shutting down")
		srv.Shutdown()
	}()

	if err := srv.ListenAndServe(); err != nil {
		logger.Fatalf("server error: %v", err)
	}
}
