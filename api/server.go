// Package api serves the live engine's state over HTTP: JSON endpoints for
// dashboards, a websocket stream for push updates, and the Prometheus
// scrape target.
package api

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server wraps gin with lifecycle control.
type Server struct {
	engine *gin.Engine
	server *http.Server
	hub    *Hub
}

// NewServer wires the routes. src is the live engine (or anything that can
// answer the same questions in tests).
func NewServer(src StateSource, port int) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(corsMiddleware())
	engine.Use(loggerMiddleware())

	s := &Server{
		engine: engine,
		hub:    NewHub(src),
		server: &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: engine,
		},
	}
	s.setupRoutes(src)
	return s
}

func (s *Server) setupRoutes(src StateSource) {
	handler := NewHandler(src)

	api := s.engine.Group("/api")
	{
		api.GET("/status", handler.GetStatus)
		api.GET("/positions", handler.GetPositions)
		api.GET("/trades", handler.GetTrades)
		api.GET("/equity", handler.GetEquity)
	}

	s.engine.GET("/ws", s.hub.Serve)
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Start blocks in ListenAndServe and also starts the websocket broadcast
// loop. The loop stops when Shutdown is called.
func (s *Server) Start() error {
	log.Printf("[api] listening on http://localhost%s", s.server.Addr)
	log.Println("[api] endpoints:")
	log.Println("  GET /api/status    - engine snapshot")
	log.Println("  GET /api/positions - open positions")
	log.Println("  GET /api/trades    - trade audit trail")
	log.Println("  GET /api/equity    - equity history")
	log.Println("  GET /ws            - websocket stream")
	log.Println("  GET /metrics       - prometheus")

	go s.hub.Run()

	if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains connections and stops the broadcast loop.
func (s *Server) Shutdown() error {
	s.hub.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.server.Shutdown(ctx)
}

func loggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		log.Printf("[api] %s %s %d %v", c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
