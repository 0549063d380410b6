package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/MM25Zamanian/prismate/internal/cache"
	"github.com/MM25Zamanian/prismate/internal/service"
)

// GET /admin/cache
func (h *handlers) cacheStats(c *gin.Context) {
	c.JSON(http.StatusOK, h.svc.CacheStats())
}

// DELETE /admin/cache
func (h *handlers) cacheClear(c *gin.Context) {
	h.svc.ClearCache()
	c.Status(http.StatusNoContent)
}

type cacheConfigReq struct {
	MaxSize *int    `json:"maxSize"`
	TTL     *string `json:"ttl"` // Go duration, e.g. "5m"
}

// PATCH /admin/cache
func (h *handlers) cacheConfig(c *gin.Context) {
	var req cacheConfigReq
	if err := decodeBody(c, &req); err != nil {
		badRequest(c, "Invalid JSON")
		return
	}
	u := cache.Update{MaxSize: req.MaxSize}
	if req.TTL != nil {
		ttl, err := time.ParseDuration(*req.TTL)
		if err != nil || ttl < 0 {
			badRequest(c, "ttl must be a non-negative duration")
			return
		}
		u.TTL = &ttl
	}
	if err := h.svc.UpdateCacheConfig(u); err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.svc.CacheStats())
}

// GET /admin/schema
func (h *handlers) schemaExport(c *gin.Context) {
	sum, err := h.svc.Registry().Checksum()
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("ETag", `"`+sum+`"`)
	c.JSON(http.StatusOK, gin.H{
		"checksum": sum,
		"schema":   h.svc.ExportSchema(),
	})
}

// GET /admin/schema.prisma
func (h *handlers) schemaText(c *gin.Context) {
	c.String(http.StatusOK, h.svc.Registry().PrismaText())
}

// GET /admin/models/:model/config
func (h *handlers) modelConfig(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	cfg, _ := h.svc.ModelConfig(m.Name())
	c.JSON(http.StatusOK, cfg)
}

// PUT /admin/models/:model/fields/:field
func (h *handlers) setFieldMapping(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	f, ok := m.Field(c.Param("field"))
	if !ok {
		h.writeError(c, unknownField(m, c.Param("field")))
		return
	}
	var fm service.FieldMapping
	if err := decodeBody(c, &fm); err != nil {
		badRequest(c, "Invalid JSON")
		return
	}
	h.svc.SetFieldMapping(m.Name(), f.Name, fm)
	cfg, _ := h.svc.ModelConfig(m.Name())
	c.JSON(http.StatusOK, cfg)
}
