package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lamb-project/kb-server/internal/plugin"
	"github.com/lamb-project/kb-server/internal/service"
)

// respondError translates the service error taxonomy into HTTP responses
// with the uniform error envelope.
func respondError(c *gin.Context, err error) {
	var paramsErr *plugin.InvalidParamsError
	if errors.As(err, &paramsErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": gin.H{
				"code":       "INVALID_PLUGIN_PARAMETERS",
				"message":    paramsErr.Error(),
				"violations": paramsErr.Violations,
			},
		})
		return
	}

	code, status := classify(err)
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": err.Error(),
		},
	})
}

func classify(err error) (string, int) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return "NOT_FOUND", http.StatusNotFound
	case errors.Is(err, plugin.ErrNotFound):
		return "PLUGIN_NOT_FOUND", http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateName):
		return "DUPLICATE_NAME", http.StatusConflict
	case errors.Is(err, service.ErrEmbeddingFrozen):
		return "EMBEDDING_FROZEN", http.StatusConflict
	case errors.Is(err, service.ErrValidation):
		return "VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, service.ErrEmbeddingValidation):
		return "EMBEDDING_VALIDATION_ERROR", http.StatusBadRequest
	case errors.Is(err, service.ErrEmbeddingTimeout):
		return "EMBEDDING_TIMEOUT", http.StatusGatewayTimeout
	case errors.Is(err, service.ErrVectorStoreTimeout):
		return "VECTOR_STORE_TIMEOUT", http.StatusGatewayTimeout
	case errors.Is(err, service.ErrVectorStoreMissing):
		return "COLLECTION_VECTOR_STORE_MISSING", http.StatusInternalServerError
	case errors.Is(err, service.ErrStorageFault):
		return "STORAGE_FAULT", http.StatusInternalServerError
	default:
		return "INTERNAL_ERROR", http.StatusInternalServerError
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{
		"error": gin.H{
			"code":    "VALIDATION_ERROR",
			"message": message,
		},
	})
}
