package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"price-oracle/src/interfaces"
	"price-oracle/src/logger"
	"price-oracle/src/models"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const shutdownTimeout = 5 * time.Second

// -----------------------------------------------------------------------------
// APIServer serves the REST API, the metrics endpoint and the push feed.
// -----------------------------------------------------------------------------

type APIServer struct {
	Config *models.MConfig
	Logger *logger.Logger
	oracle interfaces.IOracleService
	engine *gin.Engine
	http   *http.Server
	httpMu sync.Mutex

	// WebSocket clients, owned by the hub loop
	clients     map[*Client]struct{}
	connections atomic.Int64
	broadcast   chan *models.MPriceUpdate
	register    chan *Client
	unregister  chan *Client
	done        chan struct{}
	stopOnce    sync.Once
	hubOnce     sync.Once

	// Snapshot sent to new subscribers
	latestState map[string]models.MPublishedPrice
	latestTs    int64
	stateMutex  sync.RWMutex
}

// -----------------------------------------------------------------------------
// Constructor
// -----------------------------------------------------------------------------

func NewAPIServer(cfg *models.MConfig, log *logger.Logger, oracle interfaces.IOracleService) *APIServer {
	// Set Gin mode
	if !strings.EqualFold(cfg.LogLevel, "debug") {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	s := &APIServer{
		Config:  cfg,
		Logger:  log,
		oracle:  oracle,
		engine:  gin.New(),
		clients: make(map[*Client]struct{}),
		// Buffered so a publishing submit never waits on slow subscribers
		broadcast:   make(chan *models.MPriceUpdate, 256),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		done:        make(chan struct{}),
		latestState: make(map[string]models.MPublishedPrice),
	}

	s.engine.Use(gin.Recovery())
	s.engine.Use(requestIDMiddleware())
	s.engine.Use(s.requestLogMiddleware())
	s.engine.Use(corsMiddleware(cfg.API.AllowedOrigins))

	// setup web routes
	s.setupRoutes()
	return s
}

// Handler exposes the router, mainly for httptest.
func (s *APIServer) Handler() http.Handler {
	return s.engine
}

// -----------------------------------------------------------------------------
// Route Setup
// -----------------------------------------------------------------------------

func (s *APIServer) setupRoutes() {
	s.engine.GET("/api/health", s.getHealth)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := s.engine.Group("/api")
	if s.Config.API.RateLimitPerSecond > 0 {
		limiter := NewRateLimiter(s.Config.API.RateLimitPerSecond, s.Config.API.RateLimitBurst)
		api.Use(RateLimitMiddleware(limiter))
	}

	api.GET("/status", s.getStatus)
	api.GET("/pairs", s.listPairs)
	api.POST("/pairs", s.registerPair)
	api.GET("/prices", s.listPrices)
	api.GET("/prices/:pair", s.getPrice)
	api.POST("/prices", s.submitPrices)
	api.GET("/submissions/:producer", s.getSubmission)

	// WebSocket endpoint
	s.engine.GET("/ws", s.handleWebSocket)
}

// -----------------------------------------------------------------------------
// Server Lifecycle
// -----------------------------------------------------------------------------

// Start runs the hub and blocks serving HTTP until Stop is called.
func (s *APIServer) Start() error {
	addr := fmt.Sprintf("%s:%d", s.Config.Host, s.Config.Port)
	s.Logger.Info("Starting server on %s", addr)

	s.StartHub()

	s.httpMu.Lock()
	select {
	case <-s.done:
		s.httpMu.Unlock()
		return nil
	default:
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.http = srv
	s.httpMu.Unlock()

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartHub runs the websocket hub loop. Start calls it; tests serving the
// handler through httptest call it directly.
func (s *APIServer) StartHub() {
	s.hubOnce.Do(func() { go s.handleWebsockets() })
}

// -----------------------------------------------------------------------------

func (s *APIServer) Stop() error {
	var err error
	s.stopOnce.Do(func() {
		s.httpMu.Lock()
		close(s.done)
		srv := s.http
		s.httpMu.Unlock()

		if srv != nil {
			ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			err = srv.Shutdown(ctx)
		}
	})
	return err
}

// -----------------------------------------------------------------------------
// Route Handlers
// -----------------------------------------------------------------------------

func (s *APIServer) getHealth(c *gin.Context) {
	s.stateMutex.RLock()
	timestamp := s.latestTs
	s.stateMutex.RUnlock()

	c.JSON(http.StatusOK, gin.H{
		"status":        "ok",
		"connections":   s.connections.Load(),
		"latest_update": timestamp,
	})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getStatus(c *gin.Context) {
	status, err := s.oracle.Status(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

// -----------------------------------------------------------------------------

func (s *APIServer) listPairs(c *gin.Context) {
	pairs, err := s.oracle.ListPairs(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if pairs == nil {
		pairs = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"pairs": pairs})
}

// -----------------------------------------------------------------------------

type registerPairRequest struct {
	Caller string `json:"caller" binding:"required"`
	Pair   string `json:"pair" binding:"required"`
}

func (s *APIServer) registerPair(c *gin.Context) {
	var req registerPairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	if err := s.oracle.RegisterPair(c.Request.Context(), req.Caller, req.Pair); err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"pair": req.Pair})
}

// -----------------------------------------------------------------------------

func (s *APIServer) listPrices(c *gin.Context) {
	prices, err := s.oracle.ListPrices(c.Request.Context())
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if prices == nil {
		prices = []models.MPublishedPrice{}
	}
	c.JSON(http.StatusOK, gin.H{"prices": prices})
}

// -----------------------------------------------------------------------------

func (s *APIServer) getPrice(c *gin.Context) {
	pair := c.Param("pair")
	price, err := s.oracle.Current(c.Request.Context(), pair)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if price == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not_published", "message": fmt.Sprintf("no published price for %s", pair)})
		return
	}
	c.JSON(http.StatusOK, price)
}

// -----------------------------------------------------------------------------

type submitPricesRequest struct {
	Producer  string             `json:"producer" binding:"required"`
	PairsData map[string]float64 `json:"pairs_data"`
}

func (s *APIServer) submitPrices(c *gin.Context) {
	var req submitPricesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad_request", "message": err.Error()})
		return
	}

	result, err := s.oracle.SubmitPrices(c.Request.Context(), req.Producer, req.PairsData)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// -----------------------------------------------------------------------------

func (s *APIServer) getSubmission(c *gin.Context) {
	producer := c.Param("producer")
	sub, err := s.oracle.Submission(c.Request.Context(), producer)
	if err != nil {
		s.abortWithError(c, err)
		return
	}
	if sub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no_submission", "message": fmt.Sprintf("no submission from %s", producer)})
		return
	}
	c.JSON(http.StatusOK, sub)
}

// Methods for the push feed live in hub.go
