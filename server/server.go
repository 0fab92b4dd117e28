// Package server exposes environment engines over a websocket so a training
// loop in another process can drive them. Every connection gets its own
// engine; requests and responses are JSON text frames.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/brensch/snekgym/convert"
	"github.com/brensch/snekgym/env"
	"github.com/brensch/snekgym/rules"
	"github.com/brensch/snekgym/store"
)

// RemotePolicy is the policy name recorded for episodes played over the wire.
const RemotePolicy = "remote"

// Options configures a Server.
type Options struct {
	Env          env.Config
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// RecordDir, when set, receives one Parquet file per finished episode.
	RecordDir string
	// BaseSeed seeds resets that arrive without a seed.
	BaseSeed int64
	Logger   *slog.Logger
}

// Server hands out one engine per websocket connection.
type Server struct {
	opts     Options
	logger   *slog.Logger
	encoding convert.Kind
	obsShape []int
	upgrader websocket.Upgrader

	resets atomic.Int64
	active atomic.Int64

	mu    sync.Mutex
	conns map[*websocket.Conn]struct{}
}

// New checks that engines can be built from opts.Env.
func New(opts Options) (*Server, error) {
	probe, err := env.New(opts.Env)
	if err != nil {
		return nil, fmt.Errorf("env config: %w", err)
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Minute
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		opts:     opts,
		logger:   logger,
		encoding: probe.Encoder().Kind(),
		obsShape: probe.Encoder().Shape(opts.Env.BoardSize),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 16384,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		conns: make(map[*websocket.Conn]struct{}),
	}, nil
}

// ActiveSessions is the number of open websocket sessions.
func (s *Server) ActiveSessions() int64 { return s.active.Load() }

// Health is the /healthz body.
type Health struct {
	Status   string `json:"status"`
	Sessions int64  `json:"sessions"`
}

// Handler serves /ws and /healthz.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(Health{Status: "ok", Sessions: s.ActiveSessions()})
	})
	mux.HandleFunc("/ws", s.handleWS)
	return mux
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()
	s.logger.Info("env server listening", "addr", ln.Addr().String(), "board_size", s.opts.Env.BoardSize, "encoding", string(s.encoding), "obs_shape", s.obsShape)

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.closeAll()
	if err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) track(c *websocket.Conn) {
	s.mu.Lock()
	s.conns[c] = struct{}{}
	s.mu.Unlock()
	s.active.Add(1)
}

func (s *Server) untrack(c *websocket.Conn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
	s.active.Add(-1)
}

// closeAll drops hijacked connections, which http.Server.Shutdown ignores.
func (s *Server) closeAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.conns {
		_ = c.Close()
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "error", err)
		return
	}
	s.track(conn)
	defer func() {
		s.untrack(conn)
		_ = conn.Close()
	}()

	engine, err := env.New(s.opts.Env)
	if err != nil {
		s.logger.Error("build engine", "error", err)
		return
	}
	sess := &session{srv: s, engine: engine, logger: s.logger.With("remote", r.RemoteAddr)}
	sess.logger.Debug("session opened")

	for {
		_ = conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				sess.logger.Debug("session closed")
			} else {
				sess.logger.Debug("session read ended", "error", err)
			}
			sess.flush()
			return
		}

		var req Request
		var resp Response
		if err := json.Unmarshal(message, &req); err != nil {
			resp = errorResponse(CodeBadRequest, fmt.Errorf("decode request: %w", err))
		} else {
			resp = sess.handle(req)
		}
		if resp.Code != "" {
			sess.logger.Warn("request rejected", "op", req.Op, "code", resp.Code, "error", resp.Error)
		}

		_ = conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := conn.WriteJSON(resp); err != nil {
			sess.logger.Debug("session write failed", "error", err)
			sess.flush()
			return
		}
	}
}

// session is the per-connection engine plus the transitions of its current
// episode when recording.
type session struct {
	srv    *Server
	engine *env.Engine
	logger *slog.Logger

	episodeID string
	rows      []store.TransitionRow
}

func (ss *session) handle(req Request) Response {
	switch req.Op {
	case OpReset:
		ss.flush()
		n := ss.srv.resets.Add(1) - 1
		seed := rules.DeriveSeed(ss.srv.opts.BaseSeed, int(n))
		if req.Seed != nil {
			seed = *req.Seed
		}
		obs := ss.engine.Reset(seed)
		ss.episodeID = uuid.NewString()
		ss.rows = ss.rows[:0]
		ss.logger.Debug("episode reset", "episode_id", ss.episodeID, "seed", seed)
		return Response{Observation: &obs}

	case OpStep:
		if req.Action == nil {
			return errorResponse(CodeBadRequest, errors.New("step requires an action"))
		}
		mask := ss.engine.LegalActionsMask()
		res, err := ss.engine.Step(*req.Action)
		if err != nil {
			return errorResponse(codeFor(err), err)
		}
		if ss.srv.opts.RecordDir != "" {
			ss.rows = append(ss.rows, store.NewTransitionRow(ss.episodeID, ss.engine.Seed(), RemotePolicy, *req.Action, mask, res, ss.engine.State()))
		}
		if res.Done {
			ss.logger.Debug("episode finished", "episode_id", ss.episodeID, "result", string(res.Info.Result), "score", res.Info.Score, "steps", res.Info.Steps)
			ss.flush()
		}
		return Response{Observation: &res.Observation, Done: &res.Done, Info: &res.Info}

	case OpMask:
		mask := ss.engine.LegalActionsMask()
		return Response{Mask: &mask}

	case OpObserve:
		obs, err := ss.engine.Observe()
		if err != nil {
			return errorResponse(codeFor(err), err)
		}
		return Response{Observation: &obs}

	case OpState:
		state := ss.engine.State()
		if state == nil {
			return errorResponse(CodeNoEpisode, env.ErrNotReset)
		}
		return Response{State: state}

	default:
		return errorResponse(CodeBadRequest, fmt.Errorf("unknown op %q", req.Op))
	}
}

// flush writes the recorded rows of the current episode, if any.
func (ss *session) flush() {
	if ss.srv.opts.RecordDir == "" || len(ss.rows) == 0 {
		return
	}
	path, err := store.WriteBatchParquetAtomic(ss.srv.opts.RecordDir, ss.rows)
	if err != nil {
		ss.logger.Error("record episode", "episode_id", ss.episodeID, "error", err)
	} else {
		ss.logger.Info("recorded episode", "episode_id", ss.episodeID, "rows", len(ss.rows), "path", path)
	}
	ss.rows = ss.rows[:0]
}
