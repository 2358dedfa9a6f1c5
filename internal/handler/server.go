package handler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"fleetscope/internal/codec"
	"fleetscope/internal/domain"
	"fleetscope/internal/service"
)

// ErrDiscoveryRunning is returned when a discovery pass is already in progress
var ErrDiscoveryRunning = errors.New("discovery already running")

// Discoverer runs a discovery pass for one organization
type Discoverer interface {
	Run(ctx context.Context, orgID string) (*service.Report, error)
}

// ErrorResponse is the body of every non-2xx response
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// Server serves reports over HTTP
type Server struct {
	router    *gin.Engine
	discovery Discoverer
	orgs      []string
	logger    *logrus.Logger
	timeout   time.Duration

	mu      sync.RWMutex
	reports map[string]*service.Report

	running sync.Mutex
}

// Options configures a Server
type Options struct {
	// Organizations that may be discovered; the first is the default
	Organizations []string
	// Events is mounted at /api/events when set
	Events http.Handler
	// DiscoveryTimeout bounds a single POST /api/discover
	DiscoveryTimeout time.Duration
}

// New creates the API server and registers its routes
func New(d Discoverer, opts Options, logger *logrus.Logger) *Server {
	if logger == nil {
		logger = logrus.New()
	}
	if opts.DiscoveryTimeout <= 0 {
		opts.DiscoveryTimeout = 10 * time.Minute
	}

	router := gin.New()
	router.Use(gin.Recovery(), requestLogger(logger))

	s := &Server{
		router:    router,
		discovery: d,
		orgs:      opts.Organizations,
		logger:    logger,
		timeout:   opts.DiscoveryTimeout,
		reports:   make(map[string]*service.Report),
	}

	api := router.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/report", s.handleReport)
	api.GET("/topology", s.handleTopology)
	api.GET("/failures", s.handleFailures)
	api.POST("/discover", s.handleDiscover)
	if opts.Events != nil {
		api.GET("/events", gin.WrapH(opts.Events))
	}

	return s
}

// Handler returns the HTTP handler of the server
func (s *Server) Handler() http.Handler {
	return s.router
}

// SetReport stores report as the latest for its organization
func (s *Server) SetReport(report *service.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[report.Organization] = report
}

// Report returns the latest report for orgID
func (s *Server) Report(orgID string) (*service.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reports[orgID]
	return r, ok
}

// Discover runs one discovery pass and stores its report. Only one pass runs at a time.
func (s *Server) Discover(ctx context.Context, orgID string) (*service.Report, error) {
	if !s.running.TryLock() {
		return nil, ErrDiscoveryRunning
	}
	defer s.running.Unlock()

	report, err := s.discovery.Run(ctx, orgID)
	if err != nil {
		return nil, err
	}
	s.SetReport(report)
	return report, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	s.mu.RLock()
	orgs := make([]string, 0, len(s.reports))
	for org := range s.reports {
		orgs = append(orgs, org)
	}
	s.mu.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"organizations": s.orgs,
		"reports":       len(orgs),
	})
}

// orgParam returns the requested organization, defaulting to the first configured one
func (s *Server) orgParam(c *gin.Context) (string, bool) {
	org := c.Query("org")
	if org == "" && len(s.orgs) > 0 {
		org = s.orgs[0]
	}
	if org == "" {
		writeError(c, http.StatusBadRequest, "organization required", "pass ?org=<id>")
		return "", false
	}
	if len(s.orgs) > 0 && !contains(s.orgs, org) {
		writeError(c, http.StatusNotFound, "unknown organization", org)
		return "", false
	}
	return org, true
}

// latest resolves the org parameter and its report, writing the error response if missing
func (s *Server) latest(c *gin.Context) (*service.Report, bool) {
	org, ok := s.orgParam(c)
	if !ok {
		return nil, false
	}
	report, ok := s.Report(org)
	if !ok {
		writeError(c, http.StatusNotFound, "no report yet", "POST /api/discover?org="+org)
		return nil, false
	}
	return report, true
}

func (s *Server) handleReport(c *gin.Context) {
	report, ok := s.latest(c)
	if !ok {
		return
	}

	format := c.DefaultQuery("format", "json")
	if format == "json" {
		c.JSON(http.StatusOK, report)
		return
	}

	exporter, err := codec.ForFormat(format, codec.Options{})
	if err != nil {
		writeError(c, http.StatusBadRequest, "unsupported format", err.Error())
		return
	}
	c.Header("Content-Type", contentType(format))
	c.Status(http.StatusOK)
	if err := exporter.Export(report, c.Writer); err != nil {
		s.logger.WithError(err).Warn("Failed to write report")
	}
}

// TopologyResponse is the body of GET /api/topology
type TopologyResponse struct {
	Organization string                 `json:"organization"`
	Site         string                 `json:"site,omitempty"`
	Graph        *domain.AdjacencyGraph `json:"graph"`
	Lines        []domain.RenderLine    `json:"lines"`
}

func (s *Server) handleTopology(c *gin.Context) {
	report, ok := s.latest(c)
	if !ok {
		return
	}

	resp := TopologyResponse{
		Organization: report.Organization,
		Graph:        report.Graph,
		Lines:        report.Topology,
	}

	if site := c.Query("site"); site != "" {
		found := false
		for _, st := range report.Sites {
			if st.Network.ID == site || st.Network.Name == site {
				resp.Site = st.Network.ID
				resp.Lines = st.Lines
				found = true
				break
			}
		}
		if !found {
			writeError(c, http.StatusNotFound, "unknown site", site)
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleFailures(c *gin.Context) {
	report, ok := s.latest(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"organization": report.Organization,
		"failures":     nonNil(report.Failures),
		"skipped":      nonNil(report.Skipped),
	})
}

// DiscoverResponse summarizes a finished discovery pass
type DiscoverResponse struct {
	Organization string        `json:"organization"`
	Partial      bool          `json:"partial"`
	Stats        service.Stats `json:"stats"`
}

func (s *Server) handleDiscover(c *gin.Context) {
	org, ok := s.orgParam(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), s.timeout)
	defer cancel()

	report, err := s.Discover(ctx, org)
	switch {
	case errors.Is(err, ErrDiscoveryRunning):
		writeError(c, http.StatusConflict, "discovery already running", "")
		return
	case err != nil:
		s.logger.WithError(err).WithField("org_id", org).Error("Discovery failed")
		writeError(c, http.StatusBadGateway, "discovery failed", err.Error())
		return
	}

	c.JSON(http.StatusOK, DiscoverResponse{
		Organization: report.Organization,
		Partial:      report.Partial(),
		Stats:        report.Stats,
	})
}

func writeError(c *gin.Context, status int, msg, details string) {
	c.AbortWithStatusJSON(status, ErrorResponse{Error: msg, Details: details})
}

// requestLogger logs every request through logrus
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.WithFields(logrus.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"duration": time.Since(start).String(),
		}).Debug("HTTP request")
	}
}

func contentType(format string) string {
	switch format {
	case "yaml", "yml", "ansible", "ansible-inventory":
		return "application/yaml; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
