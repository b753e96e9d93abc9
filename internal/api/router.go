package api

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/LJTian/MedNewsHub/internal/aggregator"
	"github.com/LJTian/MedNewsHub/internal/collector"
	"github.com/LJTian/MedNewsHub/internal/pipeline"
	"github.com/LJTian/MedNewsHub/internal/storage"
)

type DigestReader interface {
	LatestDigest(ctx context.Context) (*storage.Digest, error)
	ListDigests(ctx context.Context, limit int) ([]storage.Digest, error)
}

// Runner starts a cycle in the background.
type Runner interface {
	Trigger(ctx context.Context) error
}

type Deps struct {
	Store       DigestReader
	Categorizer *aggregator.Categorizer
	Priorities  aggregator.PriorityTable
	Runner      Runner
	Gatherer    prometheus.Gatherer
	Logger      *zap.Logger
}

type Server struct {
	deps Deps
}

func NewServer(deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	if deps.Priorities == nil {
		deps.Priorities = aggregator.DefaultPriorityTable()
	}
	return &Server{deps: deps}
}

func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	if s.deps.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.deps.Gatherer, promhttp.HandlerOpts{})))
	}

	v1 := r.Group("/api/v1")
	{
		v1.GET("/digests/latest", s.latestDigest)
		v1.GET("/digests", s.listDigests)
		v1.POST("/classify", s.classify)
		v1.POST("/run", s.run)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) latestDigest(c *gin.Context) {
	if s.deps.Store == nil {
		unavailable(c, "archive disabled")
		return
	}
	d, err := s.deps.Store.LatestDigest(c.Request.Context())
	if errors.Is(err, storage.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"code":    "not_found",
			"message": "no digest has been posted yet",
		})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	respondOK(c, d)
}

func (s *Server) listDigests(c *gin.Context) {
	if s.deps.Store == nil {
		unavailable(c, "archive disabled")
		return
	}
	limitStr := c.DefaultQuery("limit", "10")
	limit, err := strconv.Atoi(limitStr)
	if err != nil || limit <= 0 {
		limit = 10
	}

	list, err := s.deps.Store.ListDigests(c.Request.Context(), limit)
	if err != nil {
		s.internalError(c, err)
		return
	}
	respondOK(c, list)
}

type classifyRequest struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
	Source  string `json:"source"`
}

func (s *Server) classify(c *gin.Context) {
	if s.deps.Categorizer == nil {
		unavailable(c, "classifier disabled")
		return
	}
	var req classifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Title+req.Summary) == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"code":    "bad_request",
			"message": "title or summary is required",
		})
		return
	}

	a := collector.Article{
		Title:    req.Title,
		Summary:  req.Summary,
		Source:   req.Source,
		Priority: s.deps.Priorities.Lookup(req.Source),
	}
	respondOK(c, s.deps.Categorizer.Assess(a))
}

func (s *Server) run(c *gin.Context) {
	if s.deps.Runner == nil {
		unavailable(c, "runner disabled")
		return
	}
	// 请求结束后周期继续执行
	err := s.deps.Runner.Trigger(context.WithoutCancel(c.Request.Context()))
	if errors.Is(err, pipeline.ErrCycleRunning) {
		c.JSON(http.StatusConflict, gin.H{
			"code":    "busy",
			"message": "a cycle is already running",
		})
		return
	}
	if err != nil {
		s.internalError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"code":    "accepted",
		"message": "cycle started",
	})
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    data,
	})
}

func unavailable(c *gin.Context, msg string) {
	c.JSON(http.StatusServiceUnavailable, gin.H{
		"code":    "unavailable",
		"message": msg,
	})
}

func (s *Server) internalError(c *gin.Context, err error) {
	s.deps.Logger.Error("api request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{
		"code":    "internal_error",
		"message": "internal server error",
	})
}

// AuthConfig 描述全站 Basic Auth。Exempt 中的路径（按前缀匹配）不需要认证。
type AuthConfig struct {
	User   string
	Pass   string
	Realm  string
	Exempt []string
}

// DefaultAuthExempt 健康检查始终放行
var DefaultAuthExempt = []string{"/health"}

// BasicAuth guards every route except cfg.Exempt. Credentials are compared as
// SHA-256 digests so the comparison time does not depend on their length.
func BasicAuth(cfg AuthConfig) gin.HandlerFunc {
	realm := cfg.Realm
	if realm == "" {
		realm = "MedNewsHub"
	}
	exempt := cfg.Exempt
	if exempt == nil {
		exempt = DefaultAuthExempt
	}
	wantUser := sha256.Sum256([]byte(cfg.User))
	wantPass := sha256.Sum256([]byte(cfg.Pass))
	challenge := `Basic realm="` + realm + `", charset="UTF-8"`

	return func(c *gin.Context) {
		if isExempt(c.Request.URL.Path, exempt) {
			c.Next()
			return
		}
		u, p, ok := c.Request.BasicAuth()
		gotUser := sha256.Sum256([]byte(u))
		gotPass := sha256.Sum256([]byte(p))
		// 两次比较都要做，避免按用户名短路
		userOK := subtle.ConstantTimeCompare(gotUser[:], wantUser[:])
		passOK := subtle.ConstantTimeCompare(gotPass[:], wantPass[:])
		if !ok || userOK&passOK != 1 {
			c.Header("WWW-Authenticate", challenge)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "unauthorized",
				"message": "authentication required",
			})
			return
		}
		c.Set(gin.AuthUserKey, u)
		c.Next()
	}
}

func isExempt(path string, exempt []string) bool {
	for _, e := range exempt {
		if e == "" {
			continue
		}
		if path == e || strings.HasPrefix(path, strings.TrimSuffix(e, "/")+"/") {
			return true
		}
	}
	return false
}
