package server

import (
	"encoding/json"
	"log"
	"net/http"
	"net/url"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/shirou/gopsutil/v3/process"
	"github.com/zz9tf/publications-view/internal/config"
	"github.com/zz9tf/publications-view/internal/simulate"
	"github.com/zz9tf/publications-view/internal/wire"
)

// Server exposes the worker over HTTP: the /ws endpoint viewers connect to,
// plus small JSON endpoints for inspecting the process. Command frames read
// from a client drive the runner; job events flow back out through the hub
// to every connected client, so a viewer that reconnects mid-job keeps
// receiving updates for runs it started earlier.
type Server struct {
	cfg            config.ServerConfig
	hub            *Hub
	runner         *simulate.Runner
	allowedOrigins map[string]bool
	allowedHosts   map[string]bool
	started        time.Time
}

func New(cfg config.ServerConfig, hub *Hub, runner *simulate.Runner) *Server {
	s := &Server{
		cfg:            cfg,
		hub:            hub,
		runner:         runner,
		allowedOrigins: make(map[string]bool),
		allowedHosts:   make(map[string]bool),
		started:        time.Now(),
	}

	for _, origin := range cfg.AllowedOrigins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		s.allowedOrigins[trimmed] = true
		if parsed, err := url.Parse(trimmed); err == nil && parsed.Host != "" {
			s.allowedHosts[parsed.Host] = true
		}
	}

	return s
}

// EmitFunc adapts a hub into the callback the runner publishes through:
// each job event is wrapped in an envelope, stamped with a frame id, and
// fanned out to every connected client.
func EmitFunc(hub *Hub) simulate.EmitFunc {
	return func(event wire.Event, payload any) {
		env, err := wire.NewEnvelope(event, payload)
		if err != nil {
			log.Printf("server: encode %s event: %v", event, err)
			return
		}
		data, err := json.Marshal(env)
		if err != nil {
			log.Printf("server: marshal %s event: %v", event, err)
			return
		}
		hub.Broadcast(data)
	}
}

func (s *Server) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/api/status", s.handleStatus)
	mux.HandleFunc("/api/jobs", s.handleJobs)
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("X-XSS-Protection", "1; mode=block")
		w.Header().Set("Content-Security-Policy", "default-src 'self'")
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	upgrader := websocket.Upgrader{
		CheckOrigin: s.checkOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("server: ws upgrade error: %v", err)
		return
	}

	sessionID := uuid.NewString()
	log.Printf("server: client %s connected from %s", sessionID, r.RemoteAddr)
	c := s.hub.Add(conn, sessionID)

	if data, err := handshakeFrame(sessionID); err != nil {
		log.Printf("server: handshake for %s: %v", sessionID, err)
	} else {
		s.hub.Push(c, data)
	}

	go s.readCommands(conn, c, sessionID)
}

func handshakeFrame(sessionID string) ([]byte, error) {
	env, err := wire.NewEnvelope(wire.EventConnected, wire.ConnectedPayload{ID: sessionID})
	if err != nil {
		return nil, err
	}
	return json.Marshal(env)
}

// readCommands drains command frames from one client until its connection
// drops. Malformed or unknown frames are logged and skipped; they never
// tear down the connection.
func (s *Server) readCommands(conn *websocket.Conn, c *client, sessionID string) {
	defer func() {
		s.hub.Remove(c)
		log.Printf("server: client %s disconnected", sessionID)
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}

		env, err := wire.ParseEnvelope(data)
		if err != nil {
			log.Printf("server: dropping frame from %s: %v", sessionID, err)
			continue
		}
		s.dispatch(env, sessionID)
	}
}

func (s *Server) dispatch(env wire.Envelope, sessionID string) {
	switch env.Event {
	case wire.EventStartFetch:
		var p wire.StartFetchPayload
		if err := env.Decode(&p); err != nil {
			log.Printf("server: bad start_fetch from %s: %v", sessionID, err)
			return
		}
		if err := s.runner.Start(p.JobID, p.SourceURL); err != nil {
			log.Printf("server: start job %q: %v", p.JobID, err)
		}
	case wire.EventStopFetch:
		var p wire.StopFetchPayload
		if err := env.Decode(&p); err != nil {
			log.Printf("server: bad stop_fetch from %s: %v", sessionID, err)
			return
		}
		s.runner.Stop(p.JobID)
	default:
		log.Printf("server: ignoring %s frame from %s", env.Event, sessionID)
	}
}

type statusReport struct {
	Uptime     string  `json:"uptime"`
	Goroutines int     `json:"goroutines"`
	Clients    int     `json:"clients"`
	ActiveJobs int     `json:"activeJobs"`
	CPUPercent float64 `json:"cpuPercent"`
	RSSBytes   uint64  `json:"rssBytes"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	report := statusReport{
		Uptime:     time.Since(s.started).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Clients:    s.hub.ClientCount(),
		ActiveJobs: s.runner.ActiveCount(),
	}

	// Self-inspection is best effort; a probe failure leaves the zero value.
	if proc, err := process.NewProcess(int32(os.Getpid())); err == nil {
		if cpu, err := proc.CPUPercent(); err == nil {
			report.CPUPercent = cpu
		}
		if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
			report.RSSBytes = mem.RSS
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(report)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	if !s.authorize(r) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(s.runner.ActiveRuns())
}

func (s *Server) authorize(r *http.Request) bool {
	if s.cfg.AuthToken == "" {
		return true
	}

	if r.URL.Query().Get("token") == s.cfg.AuthToken {
		return true
	}

	if r.Header.Get("X-Pubview-Token") == s.cfg.AuthToken {
		return true
	}

	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.cfg.AuthToken {
		return true
	}

	return false
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}

	if len(s.allowedOrigins) > 0 {
		if s.allowedOrigins[origin] {
			return true
		}
		if parsed, err := url.Parse(origin); err == nil && parsed.Host != "" {
			return s.allowedHosts[parsed.Host]
		}
		return false
	}

	parsed, err := url.Parse(origin)
	if err != nil {
		return false
	}

	host := parsed.Host
	if host == "" {
		return false
	}

	if host == r.Host {
		return true
	}

	if strings.HasPrefix(host, "localhost:") || host == "localhost" {
		return true
	}
	if strings.HasPrefix(host, "127.0.0.1:") || host == "127.0.0.1" {
		return true
	}
	if strings.HasPrefix(host, "[::1]:") || host == "::1" {
		return true
	}

	return false
}

func ListenAndServe(addr string, mux *http.ServeMux) error {
	log.Printf("server: listening on %s", addr)
	return http.ListenAndServe(addr, securityHeaders(mux))
}
