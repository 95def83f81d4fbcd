package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lamb-project/kb-server/internal/plugin"
	"github.com/lamb-project/kb-server/internal/service"
)

type IngestHandler struct {
	svc *service.IngestionService
}

func NewIngestHandler(svc *service.IngestionService) *IngestHandler {
	return &IngestHandler{svc: svc}
}

// Upload stages a file without processing it.
func (h *IngestHandler) Upload(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	defer file.Close()

	staged, err := h.svc.Upload(
		c.Request.Context(),
		collectionID,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
		"", nil,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"file_id":   staged.ID,
		"file_path": staged.StoredPath,
		"file":      staged,
	})
}

type processRequest struct {
	FilePath     string                 `json:"file_path" binding:"required"`
	PluginName   string                 `json:"plugin_name" binding:"required"`
	PluginParams map[string]interface{} `json:"plugin_params"`
}

// Process previews a staged file's chunking without touching the vector
// store.
func (h *IngestHandler) Process(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}

	var req processRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	chunks, err := h.svc.Process(c.Request.Context(), collectionID, req.FilePath, req.PluginName, req.PluginParams)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"chunks": chunks,
		"count":  len(chunks),
	})
}

type commitRequest struct {
	FileID uuid.UUID      `json:"file_id" binding:"required"`
	Chunks []plugin.Chunk `json:"chunks" binding:"required"`
}

// CommitDocuments writes pre-built chunks to the vector store.
func (h *IngestHandler) CommitDocuments(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}

	var req commitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}

	count, err := h.svc.CommitDocuments(c.Request.Context(), collectionID, req.FileID, req.Chunks)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"document_count": count,
	})
}

// IngestFile is the atomic upload+process+commit path (multipart).
func (h *IngestHandler) IngestFile(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		badRequest(c, "file is required")
		return
	}
	defer file.Close()

	pluginName := c.DefaultPostForm("plugin_name", "simple_ingest")
	params, err := parseParams(c.PostForm("plugin_params"))
	if err != nil {
		badRequest(c, "plugin_params must be a JSON object")
		return
	}

	ingested, err := h.svc.IngestFile(
		c.Request.Context(),
		collectionID,
		header.Filename,
		header.Header.Get("Content-Type"),
		header.Size,
		file,
		pluginName,
		params,
	)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file":           ingested,
		"document_count": ingested.DocumentCount,
	})
}

type ingestURLRequest struct {
	URLs         []string               `json:"urls" binding:"required"`
	PluginName   string                 `json:"plugin_name"`
	PluginParams map[string]interface{} `json:"plugin_params"`
}

// IngestURLs fetches URLs, processes and commits them atomically.
func (h *IngestHandler) IngestURLs(c *gin.Context) {
	collectionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "invalid collection id")
		return
	}

	var req ingestURLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err.Error())
		return
	}
	if req.PluginName == "" {
		req.PluginName = "url_ingest"
	}

	ingested, err := h.svc.IngestURLs(c.Request.Context(), collectionID, req.URLs, req.PluginName, req.PluginParams)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"file":           ingested,
		"document_count": ingested.DocumentCount,
	})
}

func parseParams(raw string) (map[string]interface{}, error) {
	if raw == "" {
		return nil, nil
	}
	var params map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, err
	}
	return params, nil
}
