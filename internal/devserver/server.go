package devserver

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/danilokhury/termdock/internal/infrastructure/config"
	"github.com/danilokhury/termdock/internal/infrastructure/logging"
	"github.com/danilokhury/termdock/internal/infrastructure/monitoring"
	"github.com/danilokhury/termdock/internal/shared/id"
	"github.com/danilokhury/termdock/internal/shared/types"
)

var upgrader = websocket.Upgrader{
	// Local dev gateway; any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Server is the dev session gateway.
type Server struct {
	cfg      *config.ServerConfig
	log      *logging.Logger
	metrics  *monitoring.Metrics
	profiles ProfileTable
	router   *gin.Engine
	saveDir  string

	mu       sync.Mutex
	sessions map[string]*ptySession
	saveSeq  int
}

// New creates a Server with routes wired.
func New(cfg *config.ServerConfig, log *logging.Logger, metrics *monitoring.Metrics) (*Server, error) {
	profiles, err := LoadProfiles(cfg.Profiles)
	if err != nil {
		return nil, err
	}

	saveDir := cfg.SaveDir
	if saveDir == "" {
		saveDir = filepath.Join(os.TempDir(), "termdock-saves")
	}
	if err := os.MkdirAll(saveDir, 0o755); err != nil {
		return nil, fmt.Errorf("create save dir: %w", err)
	}

	s := &Server{
		cfg:      cfg,
		log:      log.Named("devserver"),
		metrics:  metrics,
		profiles: profiles,
		saveDir:  saveDir,
		sessions: make(map[string]*ptySession),
	}
	s.router = s.buildRouter()
	return s, nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestID(id.Default()))
	router.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "DELETE"},
		AllowHeaders:    []string{"Content-Type"},
		MaxAge:          12 * time.Hour,
	}))
	if s.metrics != nil {
		router.Use(monitoring.Middleware(s.metrics))
	}
	if s.cfg.RateLimit.Enabled {
		router.Use(rateLimit(s.cfg.RateLimit))
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "sessions": s.count()})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	router.POST("/sessions", s.createSession)
	router.GET("/sessions", s.listSessions)
	router.DELETE("/sessions/:id", s.deleteSession)
	router.GET("/sessions/:id/ws", s.handleSocket)
	return router
}

// Router exposes the handler for tests.
func (s *Server) Router() http.Handler { return s.router }

// Run serves until the context is canceled, then drains with a short
// shutdown window and kills remaining sessions.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    net.JoinHostPort(s.cfg.Host, s.cfg.Port),
		Handler: s.router,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.log.Warn("shutdown incomplete", zap.Error(err))
	}

	s.mu.Lock()
	sessions := make([]*ptySession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.kill()
	}
	return nil
}

type createSessionRequest struct {
	Profile types.Profile `json:"profile" binding:"required"`
	Cols    int           `json:"cols"`
	Rows    int           `json:"rows"`
	Cwd     string        `json:"cwd"`
}

func (s *Server) createSession(c *gin.Context) {
	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	spec, ok := s.profiles[req.Profile]
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown profile %q", req.Profile)})
		return
	}

	sess, err := spawn(req.Profile, spec, req.Cols, req.Rows, req.Cwd, s.log)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	sess.onExit = s.remove

	s.mu.Lock()
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.log.Info("session created",
		zap.String("session_id", sess.id),
		zap.String("profile", string(req.Profile)))
	c.JSON(http.StatusCreated, gin.H{"session_id": sess.id})
}

func (s *Server) listSessions(c *gin.Context) {
	s.mu.Lock()
	out := make([]types.LiveSession, 0, len(s.sessions))
	for _, sess := range s.sessions {
		out = append(out, types.LiveSession{
			ID:        sess.id,
			Profile:   sess.profile,
			CreatedAt: sess.createdAt.Unix(),
		})
	}
	s.mu.Unlock()
	c.JSON(http.StatusOK, gin.H{"sessions": out})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	sess.kill()
	c.Status(http.StatusNoContent)
}

func (s *Server) handleSocket(c *gin.Context) {
	id := c.Param("id")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.log.Warn("upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	s.mu.Lock()
	sess, ok := s.sessions[id]
	s.mu.Unlock()
	if !ok {
		// The error goes over the socket so the client can tell a dead
		// session apart from a dead server.
		conn.WriteJSON(types.Frame{
			Type:    types.FrameError,
			Message: "Session not found: " + id,
		})
		return
	}

	out := make(chan types.Frame, 256)
	sess.attach(out)

	// History first, then live frames. The client renders both the same.
	if history := sess.ring.Bytes(); len(history) > 0 {
		out <- types.Frame{Type: types.FrameReplay, Data: string(history)}
	}

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for frame := range out {
			if err := conn.WriteJSON(frame); err != nil {
				return
			}
			if frame.Type == types.FrameExit {
				conn.Close()
				return
			}
		}
	}()

	s.readFrames(conn, sess, out)
	// Detach before closing: broadcast sends under the session lock, so once
	// detach returns no pump goroutine can write into out.
	sess.detach(out)
	close(out)
	<-writerDone
}

// readFrames handles client-to-server frames until the connection drops.
func (s *Server) readFrames(conn *websocket.Conn, sess *ptySession, out chan<- types.Frame) {
	for {
		var frame types.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			return
		}
		switch frame.Type {
		case types.FrameInput:
			if err := sess.write([]byte(frame.Data)); err != nil {
				s.reply(out, types.Frame{Type: types.FrameError, Message: err.Error()})
			}

		case types.FrameResize:
			if err := sess.resize(frame.Cols, frame.Rows); err != nil {
				s.reply(out, types.Frame{Type: types.FrameError, Message: err.Error()})
			}

		case types.FrameImagePaste:
			path, err := s.saveImage(frame.Data)
			if err != nil {
				s.reply(out, types.Frame{Type: types.FrameError, Message: err.Error()})
				continue
			}
			s.reply(out, types.Frame{Type: types.FrameImageSaved, Path: path})

		case types.FrameMemoryDrop:
			path, err := s.saveMemory(frame.Content, frame.Title)
			if err != nil {
				s.reply(out, types.Frame{Type: types.FrameError, Message: err.Error()})
				continue
			}
			s.reply(out, types.Frame{Type: types.FrameMemorySaved, Path: path})

		default:
			s.log.Debug("unknown inbound frame", zap.String("type", string(frame.Type)))
		}
	}
}

func (s *Server) reply(out chan<- types.Frame, frame types.Frame) {
	select {
	case out <- frame:
	default:
	}
}

// saveImage decodes pasted image bytes and writes them under the save dir
// with an extension sniffed from the content.
func (s *Server) saveImage(encoded string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	ext := mimetype.Detect(data).Extension()
	if ext == "" {
		ext = ".bin"
	}

	name := fmt.Sprintf("img_%03d%s", s.nextSeq(), ext)
	path := filepath.Join(s.saveDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("save image: %w", err)
	}
	return path, nil
}

// saveMemory writes a dropped memory document as markdown.
func (s *Server) saveMemory(content, title string) (string, error) {
	name := fmt.Sprintf("memory_%03d_%s", s.nextSeq(), sanitizeTitle(title))
	path := filepath.Join(s.saveDir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("save memory: %w", err)
	}
	return path, nil
}

func (s *Server) nextSeq() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveSeq++
	return s.saveSeq
}

func (s *Server) remove(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func sanitizeTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		title = "memory.md"
	}
	var b strings.Builder
	for _, r := range title {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_', r == '.':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	out := b.String()
	if !strings.HasSuffix(out, ".md") {
		out += ".md"
	}
	return out
}
