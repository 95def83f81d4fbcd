package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lamb-project/kb-server/internal/plugin"
)

type PluginHandler struct {
	registry *plugin.Registry
}

func NewPluginHandler(registry *plugin.Registry) *PluginHandler {
	return &PluginHandler{registry: registry}
}

func (h *PluginHandler) ListIngestion(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plugins": h.registry.IngestionInfo(),
	})
}

func (h *PluginHandler) ListQuery(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"plugins": h.registry.QueryInfo(),
	})
}
