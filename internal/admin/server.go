package admin

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/danmuck/awenet/internal/link"
	"github.com/danmuck/awenet/internal/lobby"
	"github.com/danmuck/awenet/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const version = "0.1.0"

// Server is the local HTTP surface over one lobby: health, metrics, and
// read/write access to the chat log and ready board.
type Server struct {
	lobby    *lobby.Lobby
	router   *gin.Engine
	log      zerolog.Logger
	appeared time.Time

	originPatterns []string

	srv *http.Server
	ln  net.Listener
}

func New(l *lobby.Lobby, log zerolog.Logger, corsOrigins []string) *Server {
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log))
	r.Use(observability.RequestMetricsMiddleware())
	origins := normalizeOrigins(corsOrigins)
	r.Use(cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		lobby:    l,
		router:   r,
		log:      log,
		appeared: time.Now(),

		originPatterns: originHosts(origins),
	}
	s.registerRoutes()
	return s
}

func (s *Server) HTTPRouter() *gin.Engine {
	return s.router
}

type statusView struct {
	Role      string `json:"role"`
	State     string `json:"state"`
	Phase     string `json:"phase"`
	LocalSeat int    `json:"local_seat"`
	Ready     []bool `json:"ready"`
	Seed      uint32 `json:"seed"`
	Remote    string `json:"remote,omitempty"`
}

type recordView struct {
	Kind string    `json:"kind"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

type chatRequest struct {
	Text string `json:"text"`
}

type readyRequest struct {
	Ready *bool `json:"ready"`
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.appeared).String(),
			"service": "awectl",
			"version": version,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/ready", func(c *gin.Context) {
		established := s.lobby.Link().State() == link.StateEstablished
		status := http.StatusOK
		if !established {
			status = http.StatusServiceUnavailable
		}
		c.JSON(status, gin.H{
			"ready":  established,
			"uptime": time.Since(s.appeared).String(),
		})
	})

	s.router.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.status())
	})

	s.router.GET("/chat", func(c *gin.Context) {
		records := s.lobby.Chat().Snapshot()
		out := make([]recordView, 0, len(records))
		for _, rec := range records {
			out = append(out, viewOf(rec))
		}
		c.JSON(http.StatusOK, gin.H{"records": out})
	})

	s.router.GET("/chat/stream", s.chatStream)

	s.router.POST("/chat", func(c *gin.Context) {
		var req chatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if err := s.lobby.SendChat(req.Text); err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	s.router.POST("/seat/ready", func(c *gin.Context) {
		var req readyRequest
		if err := c.ShouldBindJSON(&req); err != nil || req.Ready == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "ready flag required"})
			return
		}
		if err := s.lobby.SetReady(*req.Ready); err != nil {
			c.JSON(errorStatus(err), gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, s.status())
	})
}

func (s *Server) status() statusView {
	st := s.lobby.Status()
	view := statusView{
		Role:      st.Role.String(),
		State:     st.State.String(),
		Phase:     st.Phase.String(),
		LocalSeat: st.LocalSeat,
		Ready:     st.Ready[:],
		Seed:      st.Seed,
	}
	if addr := s.lobby.Link().RemoteAddr(); addr != nil {
		view.Remote = addr.String()
	}
	return view
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, lobby.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, lobby.ErrNoSeat), errors.Is(err, link.ErrNotConnected):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

// Start binds addr and serves in the background. Bind errors are returned
// immediately.
func (s *Server) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("admin: listen %s: %w", addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error().Err(err).Msg("admin server stopped")
		}
	}()
	s.log.Info().Str("addr", ln.Addr().String()).Msg("admin server listening")
	return nil
}

// Addr returns the bound address once started.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
