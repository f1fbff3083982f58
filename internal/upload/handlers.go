package upload

import (
	"encoding/base64"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/docvault/docvault/internal/auth"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// TUS protocol constants.
const (
	tusVersion       = "1.0.0"
	tusExtensions    = "creation,termination"
	tusContentType   = "application/offset+octet-stream"
	headerResumable  = "Tus-Resumable"
	headerVersion    = "Tus-Version"
	headerExtension  = "Tus-Extension"
	headerMaxSize    = "Tus-Max-Size"
	headerUploadLen  = "Upload-Length"
	headerUploadOff  = "Upload-Offset"
	headerUploadMeta = "Upload-Metadata"
)

// Handler adapts the TUS wire protocol onto the lifecycle manager
type Handler struct {
	service  *Service
	basePath string
}

// NewHandler creates the TUS transport adapter. basePath is the mount point
// used to build Location and upload URLs, e.g. "/api/v1/uploads".
func NewHandler(service *Service, basePath string) *Handler {
	return &Handler{service: service, basePath: basePath}
}

// RegisterRoutes mounts the TUS endpoints on the given group
func (h *Handler) RegisterRoutes(group *gin.RouterGroup) {
	group.OPTIONS("", h.capabilities)
	group.POST("", h.create)
	group.GET("/config", h.clientConfig)
	group.HEAD("/:id", h.offset)
	group.PATCH("/:id", h.appendChunk)
	group.DELETE("/:id", h.cancel)
	group.GET("/:id/info", h.info)
	group.GET("/:id/complete", h.complete)
	group.POST("/:id/finalize", h.finalize)
}

// capabilities answers TUS discovery with the supported version and extensions
func (h *Handler) capabilities(c *gin.Context) {
	c.Header(headerResumable, tusVersion)
	c.Header(headerVersion, tusVersion)
	c.Header(headerExtension, tusExtensions)
	c.Header(headerMaxSize, strconv.FormatInt(h.service.Config().MaxUploadSize, 10))
	c.Status(http.StatusNoContent)
}

func (h *Handler) create(c *gin.Context) {
	c.Header(headerResumable, tusVersion)

	owner, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	length, err := strconv.ParseInt(c.GetHeader(headerUploadLen), 10, 64)
	if err != nil || length < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload-Length header is required"})
		return
	}

	metadata := parseUploadMetadata(c.GetHeader(headerUploadMeta))

	session, err := h.service.Create(c.Request.Context(), length, metadata, owner)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header("Location", h.uploadURL(c, session.ID))
	c.Header(headerUploadOff, "0")
	c.Status(http.StatusCreated)
}

func (h *Handler) offset(c *gin.Context) {
	c.Header(headerResumable, tusVersion)

	owner, ok := auth.IdentityFromContext(c)
	if !ok {
		c.Status(http.StatusUnauthorized)
		return
	}

	session, err := h.service.Get(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		c.Status(http.StatusNotFound)
		return
	}

	c.Header(headerUploadOff, strconv.FormatInt(session.CurrentOffset, 10))
	c.Header(headerUploadLen, strconv.FormatInt(session.TotalLength, 10))
	c.Header("Cache-Control", "no-store")
	c.Status(http.StatusOK)
}

func (h *Handler) appendChunk(c *gin.Context) {
	c.Header(headerResumable, tusVersion)

	owner, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if c.ContentType() != tusContentType {
		c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "content type must be " + tusContentType})
		return
	}

	claimedOffset, err := strconv.ParseInt(c.GetHeader(headerUploadOff), 10, 64)
	if err != nil || claimedOffset < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Upload-Offset header is required"})
		return
	}

	newOffset, err := h.service.Append(c.Request.Context(), c.Param("id"), owner, claimedOffset, c.Request.Body)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.Header(headerUploadOff, strconv.FormatInt(newOffset, 10))
	c.Status(http.StatusNoContent)
}

// cancel is deliberately idempotent: cancelling an unknown or already-removed
// session still answers 204
func (h *Handler) cancel(c *gin.Context) {
	c.Header(headerResumable, tusVersion)

	if err := h.service.Cancel(c.Request.Context(), c.Param("id")); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) info(c *gin.Context) {
	c.Header(headerResumable, tusVersion)

	owner, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.service.Get(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"uploadId":  session.ID,
		"offset":    session.CurrentOffset,
		"length":    session.TotalLength,
		"expiresAt": session.ExpiresAt.Format(time.RFC3339),
		"uploadUrl": h.uploadURL(c, session.ID),
	})
}

func (h *Handler) complete(c *gin.Context) {
	c.Header(headerResumable, tusVersion)

	owner, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	complete, err := h.service.IsComplete(c.Request.Context(), c.Param("id"), owner)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, complete)
}

func (h *Handler) finalize(c *gin.Context) {
	c.Header(headerResumable, tusVersion)

	owner, ok := auth.IdentityFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req FinalizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "filename is required"})
		return
	}

	document, err := h.service.Finalize(c.Request.Context(), c.Param("id"), owner, req)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          document.ID,
		"name":        document.Name,
		"contentType": document.ContentType,
		"size":        document.Size,
	})
}

func (h *Handler) clientConfig(c *gin.Context) {
	cfg := h.service.Config()
	c.JSON(http.StatusOK, gin.H{
		"enabled":                cfg.Enabled,
		"endpoint":               h.baseURL(c),
		"maxUploadSize":          cfg.MaxUploadSize,
		"chunkSize":              cfg.ChunkSize,
		"uploadExpirationPeriod": cfg.ExpirationPeriod.Milliseconds(),
	})
}

func (h *Handler) writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ErrValidation), errors.Is(err, ErrIncomplete):
		status = http.StatusBadRequest
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrParentNotFound):
		status = http.StatusNotFound
	case errors.Is(err, ErrOffsetConflict), errors.Is(err, ErrDuplicateName):
		status = http.StatusConflict
	case errors.Is(err, ErrSizeExceeded):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrQuotaExceeded):
		status = http.StatusInsufficientStorage
	}

	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.FullPath()).Msg("upload request failed")
	}

	c.JSON(status, gin.H{"error": err.Error()})
}

func (h *Handler) baseURL(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + h.basePath
}

func (h *Handler) uploadURL(c *gin.Context, id string) string {
	return h.baseURL(c) + "/" + id
}

// parseUploadMetadata decodes the Upload-Metadata header: comma-separated
// "key base64value" pairs. Pairs with invalid base64 are skipped; a bare key
// maps to the empty string.
func parseUploadMetadata(header string) map[string]string {
	result := make(map[string]string)
	if strings.TrimSpace(header) == "" {
		return result
	}

	for _, pair := range strings.Split(header, ",") {
		parts := strings.SplitN(strings.TrimSpace(pair), " ", 2)
		key := strings.TrimSpace(parts[0])
		if key == "" {
			continue
		}
		if len(parts) == 1 {
			result[key] = ""
			continue
		}
		value, err := base64.StdEncoding.DecodeString(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Warn().Str("pair", pair).Msg("invalid base64 in upload metadata")
			continue
		}
		result[key] = string(value)
	}
	return result
}
