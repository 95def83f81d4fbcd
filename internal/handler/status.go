package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lamb-project/kb-server/internal/service"
)

type StatusHandler struct {
	consistency *service.ConsistencyService
}

func NewStatusHandler(consistency *service.ConsistencyService) *StatusHandler {
	return &StatusHandler{consistency: consistency}
}

// DatabaseStatus reports whether the metadata store and the vector store
// agree on which collections exist.
func (h *StatusHandler) DatabaseStatus(c *gin.Context) {
	report, err := h.consistency.Status(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, report)
}
