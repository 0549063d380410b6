package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/MM25Zamanian/prismate/internal/schema"
	"github.com/MM25Zamanian/prismate/internal/service"
)

// GET /api/meta
func (h *handlers) metaList(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"models": h.svc.ModelSummary(),
		"enums":  h.catalog.Names(),
	})
}

type metaField struct {
	service.FieldView
	Enum []string `json:"enum,omitempty"`
}

type metaModel struct {
	Name      string            `json:"name"`
	Module    string            `json:"module,omitempty"`
	IDField   string            `json:"idField,omitempty"`
	Fields    []metaField       `json:"fields"`
	Relations []schema.Relation `json:"relations"`
	// Constraints is {"unique": [["number", "customerId"], ...]}.
	Constraints map[string]any `json:"constraints,omitempty"`
}

// GET /api/meta/:model
func (h *handlers) metaModel(c *gin.Context) {
	m, ok := h.model(c)
	if !ok {
		return
	}
	def, err := h.svc.GetModelDefinition(m.Name())
	if err != nil {
		h.writeError(c, err)
		return
	}
	view, err := h.svc.GetModelView(m.Name())
	if err != nil {
		h.writeError(c, err)
		return
	}

	fields := make([]metaField, 0, len(view.Fields))
	for _, f := range view.Fields {
		if f.Hidden {
			continue
		}
		mf := metaField{FieldView: f}
		if f.Kind == schema.KindEnum {
			if dir, ok := h.catalog.Get(f.Type); ok {
				mf.Enum = dir.Codes()
			}
		}
		fields = append(fields, mf)
	}

	var constraints map[string]any
	if len(def.Unique) > 0 {
		constraints = map[string]any{"unique": def.Unique}
	}
	c.JSON(http.StatusOK, metaModel{
		Name:        def.Name,
		Module:      def.Module,
		IDField:     def.IDField,
		Fields:      fields,
		Relations:   def.Relations,
		Constraints: constraints,
	})
}

// GET /api/meta/enums/:name
func (h *handlers) metaEnum(c *gin.Context) {
	name := c.Param("name")
	dir, ok := h.catalog.Get(name)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Catalog not found"})
		return
	}
	c.JSON(http.StatusOK, dir)
}
