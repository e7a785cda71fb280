package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/zz9tf/publications-view/internal/config"
	"github.com/zz9tf/publications-view/internal/server"
	"github.com/zz9tf/publications-view/internal/simulate"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	genToken := flag.Bool("gen-token", false, "Print a fresh auth token and exit")
	flag.Parse()

	if *genToken {
		token, err := config.GenerateToken()
		if err != nil {
			log.Fatalf("Failed to generate token: %v", err)
		}
		fmt.Println(token)
		return
	}

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *port > 0 {
		cfg.Server.Port = *port
	}

	hub := server.NewHub()
	runner := simulate.NewRunner(simulate.Options{
		Tick:        cfg.Simulate.Tick.Std(),
		MinPapers:   cfg.Simulate.MinPapers,
		MaxPapers:   cfg.Simulate.MaxPapers,
		FailureRate: cfg.Simulate.FailureRate,
		Seed:        cfg.Simulate.Seed,
	}, server.EmitFunc(hub))

	srv := server.New(cfg.Server, hub, runner)

	mux := http.NewServeMux()
	srv.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		runner.Shutdown()
		hub.Close()
		os.Exit(0)
	}()

	if err := server.ListenAndServe(cfg.Server.Addr(), mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
