package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	reword "github.com/Paranoid-AF/reword"
	defaults "github.com/Paranoid-AF/reword/default"
	"github.com/Paranoid-AF/reword/generate"
)

// maxRequestSize bounds a single request line.
const maxRequestSize = 4 << 20

// Paraphraser processes a paraphrase request and returns a response.
type Paraphraser interface {
	Paraphrase(ctx context.Context, req *reword.Request) *reword.Response
	Close()
}

// sessionEntry tracks a cancellable in-flight request for a session.
type sessionEntry struct {
	requestID int
	cancel    context.CancelFunc
}

// Server listens on a Unix domain socket for paraphrase requests.
type Server struct {
	listener  net.Listener
	sockPath  string
	newEngine func() Paraphraser

	mu       sync.Mutex
	engine   Paraphraser
	sessions map[string]sessionEntry
}

// NewServer creates a new IPC server bound to the given socket path.
func NewServer(sockPath string) (*Server, error) {
	return NewServerWithParaphraser(sockPath, func() Paraphraser { return generate.NewEngine() })
}

// NewServerWithParaphraser creates a new IPC server. newEngine is called once
// at startup and again on every config reload.
func NewServerWithParaphraser(sockPath string, newEngine func() Paraphraser) (*Server, error) {
	// Remove stale socket file if it exists
	if err := os.Remove(sockPath); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	listener, err := net.Listen("unix", sockPath)
	if err != nil {
		return nil, err
	}

	return &Server{
		listener:  listener,
		sockPath:  sockPath,
		newEngine: newEngine,
		engine:    newEngine(),
		sessions:  make(map[string]sessionEntry),
	}, nil
}

// Serve accepts connections and handles requests. It returns nil once the
// server has been closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.listener.Accept()
		if errors.Is(err, net.ErrClosed) {
			return nil
		}
		if err != nil {
			return err
		}
		go s.handleConn(conn)
	}
}

// Close shuts down the server, the engine, and removes the socket file.
func (s *Server) Close() {
	s.mu.Lock()
	if s.engine != nil {
		s.engine.Close()
		s.engine = nil
	}
	s.mu.Unlock()
	s.listener.Close()
	os.Remove(s.sockPath)
}

func (s *Server) currentEngine() Paraphraser {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	log := slog.With("conn", uuid.NewString())

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 64*1024), maxRequestSize)
	if !scanner.Scan() {
		return
	}

	raw := scanner.Bytes()
	log.Debug("request", "data", string(raw))

	// Check if this is a config request (has "action" field)
	var cfgReq reword.ConfigRequest
	if err := json.Unmarshal(raw, &cfgReq); err == nil && cfgReq.Action != "" {
		s.writeJSON(conn, log, s.handleConfigRequest(&cfgReq))
		return
	}

	var req reword.Request
	if err := json.Unmarshal(raw, &req); err != nil {
		log.Warn("invalid request", "error", err)
		s.writeJSON(conn, log, &reword.Response{
			Variants: []string{},
			Error:    &reword.Error{Code: generate.CodeInvalidInput, Message: err.Error()},
		})
		return
	}

	engine := s.currentEngine()
	if engine == nil {
		return
	}

	// Cancel any in-flight request for this session and create a new context.
	ctx, cancel := context.WithCancel(context.Background())
	sid := req.SessionID
	reqID := req.RequestID
	if sid != "" {
		s.mu.Lock()
		if prev, ok := s.sessions[sid]; ok {
			prev.cancel()
		}
		s.sessions[sid] = sessionEntry{requestID: reqID, cancel: cancel}
		s.mu.Unlock()
	}
	defer func() {
		cancel()
		if sid != "" {
			s.mu.Lock()
			if cur, ok := s.sessions[sid]; ok && cur.requestID == reqID {
				delete(s.sessions, sid)
			}
			s.mu.Unlock()
		}
	}()

	resp := engine.Paraphrase(ctx, &req)

	// A newer request for this session took over.
	if ctx.Err() != nil {
		log.Debug("request superseded", "request_id", reqID, "session", sid)
		return
	}

	resp.RequestID = req.RequestID
	s.writeJSON(conn, log, resp)
}

func (s *Server) writeJSON(conn net.Conn, log *slog.Logger, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		log.Error("failed to marshal response", "error", err)
		return
	}
	log.Debug("response", "data", string(data))
	conn.Write(append(data, '\n'))
}

func (s *Server) handleConfigRequest(req *reword.ConfigRequest) *reword.ConfigResponse {
	var resp reword.ConfigResponse

	switch req.Action {
	case "get":
		cfg, err := reword.LoadConfig()
		if err != nil {
			resp.Error = &reword.Error{Code: "config_error", Message: err.Error()}
		} else {
			resp.Config = cfg
		}

	case "reload":
		cfg, err := reword.LoadConfig()
		if err != nil {
			resp.Error = &reword.Error{Code: "config_error", Message: err.Error()}
			break
		}
		s.reloadEngine()
		resp.Config = cfg
		resp.Warnings = reword.ValidateConfig(cfg)

	case "defaults":
		resp.Config = reword.DefaultConfig()

	case "default_prompt":
		resp.Prompt = defaults.DefaultPrompt

	case "validate":
		cfg, err := reword.LoadConfig()
		if err != nil {
			resp.Error = &reword.Error{Code: "config_error", Message: err.Error()}
		} else {
			resp.Warnings = reword.ValidateConfig(cfg)
		}

	default:
		resp.Error = &reword.Error{
			Code:    "unknown_action",
			Message: "unknown config action: " + req.Action,
		}
	}
	return &resp
}

// reloadEngine swaps in a freshly configured engine. The model is built
// lazily, so this does not block on the endpoint.
func (s *Server) reloadEngine() {
	next := s.newEngine()

	s.mu.Lock()
	prev := s.engine
	s.engine = next
	s.mu.Unlock()

	if prev != nil {
		prev.Close()
	}
	slog.Info("engine reloaded")
}
