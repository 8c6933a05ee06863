package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tenant-guardian/backend/internal/ai"
	"tenant-guardian/backend/internal/i18n"
	"tenant-guardian/backend/internal/state"
	"tenant-guardian/backend/internal/store"
	"tenant-guardian/backend/internal/util"
)

// Config defines server dependencies.
type Config struct {
	Service        *ai.Service
	State          *state.Store
	History        *store.Database
	Catalog        *i18n.Catalog
	AllowedOrigins []string
	MaxUploadBytes int64
	AnalysisModel  string
	ChatModel      string
}

// Server wires HTTP handlers with the listing adapter and app state.
type Server struct {
	service        *ai.Service
	state          *state.Store
	history        *store.Database
	catalog        *i18n.Catalog
	allowedOrigins []string
	maxUploadBytes int64
	analysisModel  string
	chatModel      string
}

const defaultMaxUploadBytes = 10 << 20

// NewServer constructs the API server.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Service == nil {
		return nil, errors.New("ai service required")
	}
	if cfg.State == nil {
		return nil, errors.New("state store required")
	}
	catalog := cfg.Catalog
	if catalog == nil {
		loaded, err := i18n.Load()
		if err != nil {
			return nil, err
		}
		catalog = loaded
	}
	if cfg.History == nil {
		logrus.Info("assessment history disabled - no database configured")
	}
	maxUpload := cfg.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Server{
		service:        cfg.Service,
		state:          cfg.State,
		history:        cfg.History,
		catalog:        catalog,
		allowedOrigins: cfg.AllowedOrigins,
		maxUploadBytes: maxUpload,
		analysisModel:  cfg.AnalysisModel,
		chatModel:      cfg.ChatModel,
	}, nil
}

// Router configures gin routes.
func (s *Server) Router() (*gin.Engine, error) {
	r := gin.New()
	r.Use(gin.Recovery(), requestLogger())

	corsCfg := cors.DefaultConfig()
	corsCfg.AllowCredentials = true
	if len(s.allowedOrigins) == 0 {
		corsCfg.AllowAllOrigins = true
		corsCfg.AllowCredentials = false
	} else {
		corsCfg.AllowOrigins = s.allowedOrigins
	}
	corsCfg.AllowHeaders = []string{"Origin", "Content-Type", "Accept"}
	corsCfg.AllowMethods = []string{"GET", "POST", "PUT", "OPTIONS"}
	r.Use(cors.New(corsCfg))

	r.GET("/api/healthz", s.handleHealth)
	r.GET("/api/config", s.handleConfig)
	r.GET("/api/i18n/:lang", s.handleStrings)

	auth := r.Group("/api/auth")
	{
		auth.POST("/login", s.handleLogin)
		auth.POST("/google", s.handleGoogleLogin)
		auth.GET("/google/accounts", s.handleGoogleAccounts)
		auth.POST("/signup", s.handleSignup)
		auth.POST("/logout", s.handleLogout)
		auth.GET("/status", s.handleAuthStatus)
	}

	api := r.Group("/api", s.requireAuth)
	{
		api.GET("/profile", s.handleGetProfile)
		api.PUT("/profile", s.handleSaveProfile)
		api.POST("/analyze", s.handleAnalyze)
		api.GET("/assessments", s.handleListAssessments)
		api.GET("/assessments/:id", s.handleGetAssessment)
		api.POST("/documents/verify", s.handleVerifyDocument)
		api.GET("/geocode", s.handleGeocode)
		api.POST("/chat", s.handleChat)
		api.GET("/chat/ws", s.handleChatWS)
	}

	return r, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleConfig(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"languages":      ai.Languages(),
		"analysis_model": s.analysisModel,
		"chat_model":     s.chatModel,
		"ai_enabled":     s.service.Enabled(),
		"history":        s.history != nil,
	})
}

func (s *Server) handleStrings(c *gin.Context) {
	lang := ai.ParseLanguage(c.Param("lang"))
	c.JSON(http.StatusOK, gin.H{
		"language": lang,
		"strings":  s.catalog.Strings(lang),
	})
}

func (s *Server) requireAuth(c *gin.Context) {
	if !s.state.Authenticated() {
		s.renderError(c, http.StatusUnauthorized, errors.New("authentication required"))
		c.Abort()
		return
	}
	c.Next()
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		timer := util.StartTimer()
		c.Next()
		entry := logrus.WithFields(logrus.Fields{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status":      c.Writer.Status(),
			"duration_ms": timer.ElapsedMs(),
		})
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request served")
	}
}

func (s *Server) renderError(c *gin.Context, status int, err error) {
	c.JSON(status, gin.H{"error": err.Error()})
}

// renderFailure maps adapter failures onto a status. Only the user-facing
// message leaves the server.
func (s *Server) renderFailure(c *gin.Context, err error) {
	status := http.StatusBadGateway
	var failure *ai.Failure
	switch {
	case errors.As(err, &failure) && failure.Cause == ai.CauseInput:
		status = http.StatusBadRequest
	case errors.Is(err, ai.ErrDisabled):
		status = http.StatusServiceUnavailable
	}
	s.renderError(c, status, err)
}

func languageFrom(c *gin.Context, values ...string) ai.Language {
	return ai.ParseLanguage(firstNonEmpty(append(values, c.Query("lang"), c.GetHeader("Accept-Language"))...))
}

func parsePage(c *gin.Context) (offset, limit int) {
	page, _ := strconv.Atoi(c.Query("page"))
	if page < 0 {
		page = 0
	}
	limit, _ = strconv.Atoi(c.Query("pageSize"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return page * limit, limit
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
