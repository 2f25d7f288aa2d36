package api

import (
	"context"
	"net/http"
	"time"

	"pinbin/cfg"
	"pinbin/svc/db"
	"pinbin/svc/svc"
	"pinbin/svc/util"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/hlog"
)

type Server struct {
	router     *chi.Mux
	cfg        *cfg.Cfg
	db         *db.SQLite
	rdb        *db.Redis
	httpServer *http.Server
}

func NewServer(c *cfg.Cfg, paste *svc.Paste, users *svc.User, sessions *Sessions, sqlDB *db.SQLite, rdb *db.Redis) *Server {
	r := chi.NewRouter()
	mw := NewMw(c, sessions, users)
	s := &Server{
		router: r,
		cfg:    c,
		db:     sqlDB,
		rdb:    rdb,
		httpServer: &http.Server{
			Addr:           ":" + c.Port,
			Handler:        r,
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   15 * time.Second,
			IdleTimeout:    60 * time.Second,
			MaxHeaderBytes: 256 * 1024,
		},
	}
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Get("/health", s.Health)
		r.Get("/ready", s.Ready)
	})
	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Handle("/metrics", mw.BasicAuthMetrics(promhttp.Handler()))
	})
	r.Mount("/debug", middleware.Profiler())

	r.Group(func(r chi.Router) {
		r.Use(mw.Recoverer)
		r.Use(mw.RequestID)
		r.Use(hlog.NewHandler(util.GetLogger()))
		r.Use(hlog.AccessHandler(func(req *http.Request, status, size int, dur time.Duration) {
			hlog.FromRequest(req).Info().
				Str("method", req.Method).
				Str("url", req.URL.String()).
				Int("status", status).
				Int("size", size).
				Dur("duration", dur).
				Str("request_id", util.GetRequestID(req.Context())).
				Msg("http request")
		}))
		r.Use(mw.ContextTimeout)
		r.Use(mw.SecurityHeaders)
		r.Use(mw.CORS)
		r.Use(mw.JSONContentType)
		r.Use(mw.Metrics)
		r.Use(mw.CurrentUser)
		hdl := &Hdl{paste: paste, users: users, sessions: sessions, cfg: c}

		r.Post("/api/register", hdl.Register)
		r.Post("/api/login", hdl.Login)
		r.Post("/api/logout", hdl.Logout)
		r.Get("/api/user", hdl.CurrentUser)

		r.Get("/api/pastes", hdl.ListPastes)
		r.Get("/api/pastes/pinned", hdl.PinnedPastes)
		r.Get("/api/pastes/recent", hdl.RecentPastes)
		r.With(mw.RequireAuth).Post("/api/pastes", hdl.CreatePaste)
		r.Get("/api/pastes/{id}", hdl.GetPaste)
		r.With(mw.RequireAdmin).Post("/api/pastes/{id}/pin", hdl.PinPaste)
		r.With(mw.RequireAdmin).Delete("/api/pastes/{id}", hdl.DeletePaste)

		r.With(mw.RequireAuth).Get("/api/users", hdl.ListUsers)
		r.Get("/api/users/{id}/pastes", hdl.UserPastes)
		r.With(mw.RequireAuth).Patch("/api/users/{id}", hdl.UpdateUser)
		r.With(mw.RequireAdmin).Delete("/api/users/{id}", hdl.DeleteUser)
	})
	return s
}
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
func (s *Server) SetTimeouts(read, write, idle time.Duration) {
	s.httpServer.ReadTimeout = read
	s.httpServer.WriteTimeout = write
	s.httpServer.IdleTimeout = idle
}
func (s *Server) Start() error {
	util.Info().Str("port", s.cfg.Port).Msg("starting server")
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		util.Error().Err(err).Str("port", s.cfg.Port).Msg("server failed to start")
		return err
	}
	return nil
}
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
