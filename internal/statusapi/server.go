package statusapi

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/betbot/dexdesk/internal/history"
)

var log = logrus.WithField("module", "statusapi")

// Summary 运行状态快照
type Summary struct {
	Ready        bool   `json:"ready"`
	Connected    bool   `json:"connected"`
	Account      string `json:"account,omitempty"`
	ActiveOrders int    `json:"active_orders"`
	VisibleRows  int    `json:"visible_rows"`
	Timers       int    `json:"timers"`
}

// SummaryFunc 由装配层注入的状态采集函数
type SummaryFunc func() Summary

// Server 本地状态 API
// 给运维脚本和面板一个只读探针；不承载任何交易操作
type Server struct {
	addr    string
	summary SummaryFunc
	hist    *history.Store

	srv *http.Server
}

// New 创建状态 API 服务
func New(addr string, summary SummaryFunc, hist *history.Store) *Server {
	return &Server{addr: addr, summary: summary, hist: hist}
}

// Router 组装路由
func (s *Server) Router() http.Handler {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	api := r.Group("/api")
	api.GET("/status", func(c *gin.Context) {
		if s.summary == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "summary unavailable"})
			return
		}
		c.JSON(http.StatusOK, s.summary())
	})
	api.GET("/history", func(c *gin.Context) {
		limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
		entries, err := s.hist.Recent(c.Request.Context(), limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"entries": entries})
	})

	return r
}

// Start 启动监听（异步）
func (s *Server) Start() error {
	if s.addr == "" {
		return errors.New("statusapi: addr is required")
	}
	s.srv = &http.Server{
		Addr:              s.addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infof("状态 API 已启动: %s", s.addr)
		if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("状态 API 退出: %v", err)
		}
	}()
	return nil
}

// Stop 优雅停机
func (s *Server) Stop(ctx context.Context) error {
	if s.srv == nil {
		return nil
	}
	return s.srv.Shutdown(ctx)
}
