package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"sentinel/internal/abi"
	"sentinel/internal/analyzer"
	"sentinel/internal/bytecode"
	"sentinel/internal/errors"
	"sentinel/internal/registry"
)

// Server API服务器
type Server struct {
	analyzer *analyzer.Analyzer
	registry *registry.ThreatRegistry
	cache    *bytecode.Cache
	logger   *logrus.Logger
	server   *http.Server
	port     int
}

// NewServer 创建新的API服务器。cache可以为nil，此时缓存相关接口
// 返回404
func NewServer(a *analyzer.Analyzer, reg *registry.ThreatRegistry, cache *bytecode.Cache, logger *logrus.Logger, port int) *Server {
	return &Server{
		analyzer: a,
		registry: reg,
		cache:    cache,
		logger:   logger,
		port:     port,
	}
}

// Start 启动API服务器
func (s *Server) Start() error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// 添加CORS中间件
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	s.setupRoutes(router)

	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: router,
	}

	s.logger.Infof("API服务器启动在端口 %d", s.port)
	return s.server.ListenAndServe()
}

// Stop 停止API服务器
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// setupRoutes 设置路由
func (s *Server) setupRoutes(router *gin.Engine) {
	// 健康检查
	router.GET("/health", s.healthCheck)

	api := router.Group("/api/v1")
	{
		// 合约分析
		api.POST("/analyze", s.analyzeContract)
		api.POST("/analyze/batch", s.analyzeBatch)

		// 恶意名单查询
		api.GET("/registry/:address", s.checkRegistry)

		// 统计信息
		api.GET("/stats", s.getStats)

		// 缓存管理
		api.DELETE("/cache", s.clearCache)
	}
}

// healthCheck 健康检查
func (s *Server) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Unix(),
		"service":   "sentinel-api",
	})
}

// analyzeRequest 分析请求体
type analyzeRequest struct {
	Address string          `json:"address" binding:"required"`
	ABI     json.RawMessage `json:"abi,omitempty"`
}

// analyzeContract 分析单个合约
func (s *Server) analyzeContract(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var contractABI abi.ABI
	if len(req.ABI) > 0 {
		parsed, err := abi.Parse(req.ABI)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		contractABI = parsed
	}

	analysis, err := s.analyzer.AnalyzeContractAdvanced(c.Request.Context(), req.Address, contractABI)
	if err != nil {
		// 只有地址校验失败会走到这里，分析降级不报错
		if errors.IsValidationError(err) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":    err.Error(),
				"analysis": analysis,
			})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysis)
}

// batchRequest 批量分析请求体
type batchRequest struct {
	Addresses []string `json:"addresses" binding:"required"`
}

// analyzeBatch 批量分析
func (s *Server) analyzeBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if len(req.Addresses) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "地址列表不能为空"})
		return
	}

	if len(req.Addresses) > 100 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "单次批量分析最多100个地址"})
		return
	}

	result := s.analyzer.AnalyzeBatch(c.Request.Context(), req.Addresses)
	c.JSON(http.StatusOK, result)
}

// checkRegistry 查询地址是否在恶意名单中
func (s *Server) checkRegistry(c *gin.Context) {
	addr := c.Param("address")

	known := s.registry.IsKnown(addr)
	resp := gin.H{
		"address":  addr,
		"is_known": known,
	}

	if known {
		if warning, err := s.registry.WarningFor(addr); err == nil {
			resp["warning"] = warning
		} else if errors.IsSecurityError(err) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	}

	c.JSON(http.StatusOK, resp)
}

// getStats 获取统计信息
func (s *Server) getStats(c *gin.Context) {
	stats := gin.H{
		"analyzer":      s.analyzer.Stats(),
		"registry_size": s.registry.Size(),
	}
	if s.cache != nil {
		stats["cache"] = s.cache.Stats()
	}
	c.JSON(http.StatusOK, stats)
}

// clearCache 清空字节码缓存
func (s *Server) clearCache(c *gin.Context) {
	if s.cache == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "未启用字节码缓存"})
		return
	}
	s.cache.Clear()
	s.logger.Info("字节码缓存已清空")
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}
