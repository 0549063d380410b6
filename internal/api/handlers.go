package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/MM25Zamanian/prismate/internal/apperrors"
	"github.com/MM25Zamanian/prismate/internal/reference"
	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/service"
	"github.com/MM25Zamanian/prismate/internal/store"
)

type handlers struct {
	svc     *service.Service
	catalog *reference.Catalog
	logger  *zap.Logger
}

// model resolves the :model route segment.
func (h *handlers) model(c *gin.Context) (*schema.ModelSchema, bool) {
	raw := c.Param("model")
	name, ok := h.svc.ResolveModel(raw)
	if !ok {
		h.writeError(c, &apperrors.SchemaError{Model: raw})
		return nil, false
	}
	m, _ := h.svc.Registry().Model(name)
	return m, true
}

// decodeBody reads a JSON body keeping numbers as json.Number, so big
// integers reach the validator intact.
func decodeBody(c *gin.Context, dst any) error {
	dec := json.NewDecoder(c.Request.Body)
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("empty body")
		}
		return err
	}
	return nil
}

// GET /api/:model
func (h *handlers) list(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	opts, err := parseListParams(m, c.Request.URL.Query())
	if err != nil {
		h.writeError(c, err)
		return
	}
	recs, err := h.svc.GetModels(c.Request.Context(), m.Name(), opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	total, err := h.svc.CountModels(c.Request.Context(), m.Name(), opts.Where)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.Header("X-Total-Count", strconv.FormatInt(total, 10))
	c.JSON(http.StatusOK, recs)
}

// GET /api/:model/count
func (h *handlers) count(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	where, err := buildWhere(m, c.Request.URL.Query())
	if err != nil {
		h.writeError(c, err)
		return
	}
	total, err := h.svc.CountModels(c.Request.Context(), m.Name(), where)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"total": total})
}

// POST /api/:model/_aggregate
func (h *handlers) aggregate(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	var opts store.AggregateOptions
	if err := decodeBody(c, &opts); err != nil {
		badRequest(c, "Invalid JSON")
		return
	}
	out, err := h.svc.AggregateModels(c.Request.Context(), m.Name(), opts)
	if err != nil {
		h.writeError(c, err)
		return
	}
	if out == nil {
		out = map[string]any{}
	}
	c.JSON(http.StatusOK, out)
}

// GET /api/:model/:id
func (h *handlers) get(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	sel, inc, err := shapeParams(m, c.Request.URL.Query())
	if err != nil {
		h.writeError(c, err)
		return
	}
	rec, err := h.svc.GetModel(c.Request.Context(), m.Name(), c.Param("id"), store.QueryOptions{Select: sel, Include: inc})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// POST /api/:model
func (h *handlers) create(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	var obj map[string]any
	if err := decodeBody(c, &obj); err != nil {
		badRequest(c, "Invalid JSON")
		return
	}
	rec, err := h.svc.CreateModel(c.Request.Context(), m.Name(), obj)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, rec)
}

// PUT and PATCH /api/:model/:id; PATCH validates partially.
func (h *handlers) update(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	var obj map[string]any
	if err := decodeBody(c, &obj); err != nil {
		badRequest(c, "Invalid JSON")
		return
	}
	update := h.svc.UpdateModel
	if c.Request.Method == http.MethodPatch {
		update = h.svc.PatchModel
	}
	rec, err := update(c.Request.Context(), m.Name(), c.Param("id"), obj)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// DELETE /api/:model/:id
func (h *handlers) remove(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	rec, err := h.svc.DeleteModel(c.Request.Context(), m.Name(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}
