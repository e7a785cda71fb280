package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zz9tf/publications-view/internal/bus"
	"github.com/zz9tf/publications-view/internal/config"
	"github.com/zz9tf/publications-view/internal/conn"
	"github.com/zz9tf/publications-view/internal/fetch"
	"github.com/zz9tf/publications-view/internal/tui"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	wsURL := flag.String("url", "", "WebSocket URL of the fetch worker (overrides config)")
	token := flag.String("token", "", "Auth token (overrides config)")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *wsURL != "" {
		cfg.Worker.URL = *wsURL
	}
	if *token != "" {
		cfg.Worker.Token = *token
	}

	b := bus.New()
	mgr := conn.NewManager(conn.Options{
		URL:          cfg.Worker.URL,
		Token:        cfg.Worker.Token,
		Bus:          b,
		InitialDelay: cfg.Reconnect.InitialDelay.Std(),
		MaxDelay:     cfg.Reconnect.MaxDelay.Std(),
		Multiplier:   cfg.Reconnect.Multiplier,
		WriteTimeout: cfg.Timeouts.Write.Std(),
		PongTimeout:  cfg.Timeouts.Pong.Std(),
		PingInterval: cfg.Timeouts.PingInterval.Std(),
	})

	// The registry must see job events before the UI refreshes, so it
	// binds to the bus first.
	reg := fetch.NewRegistry(mgr)
	defer reg.Bind(b)()

	m := tui.New(mgr, reg, b)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
