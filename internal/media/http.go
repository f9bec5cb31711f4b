package media

import (
	"errors"
	"net/http"

	"github.com/abduss/blogapi/internal/auth"
	"github.com/abduss/blogapi/internal/logger"
	"github.com/abduss/blogapi/internal/post"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// multipart framing allowance on top of the file size limit
const formOverhead = 64 * 1024

// RegisterRoutes mounts cover image endpoints under /posts/:id/cover.
func RegisterRoutes(router *gin.RouterGroup, service *Service, authenticate gin.HandlerFunc) {
	handler := &httpHandler{service: service}
	router.POST("/posts/:id/cover", authenticate, handler.uploadCover)
	router.GET("/posts/:id/cover", handler.coverURL)
}

type httpHandler struct {
	service *Service
}

func (h *httpHandler) uploadCover(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		writeError(c, auth.ErrMissingAccessToken)
		return
	}

	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, post.ErrInvalidInput)
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.service.maxUploadBytes+formOverhead)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(c, ErrFileTooLarge)
			return
		}
		writeError(c, ErrFileRequired)
		return
	}

	cover, err := h.service.UploadCover(c.Request.Context(), userID, postID, fileHeader)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "cover": cover})
}

func (h *httpHandler) coverURL(c *gin.Context) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, post.ErrInvalidInput)
		return
	}

	cover, err := h.service.CoverURL(c.Request.Context(), postID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "cover": cover})
}

func writeError(c *gin.Context, err error) {
	status, code, message := http.StatusInternalServerError, "internal_error", "Something went wrong"

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		status, code, message = http.StatusUnauthorized, "unauthenticated", "Authentication required"
	case errors.Is(err, post.ErrPostNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Post not found."
	case errors.Is(err, ErrCoverNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Post has no cover image."
	case errors.Is(err, post.ErrForbidden):
		status, code, message = http.StatusForbidden, "forbidden", "You can only modify your own posts."
	case errors.Is(err, ErrFileTooLarge):
		status, code, message = http.StatusRequestEntityTooLarge, "file_too_large", "File exceeds the upload limit."
	case errors.Is(err, ErrUnsupportedType):
		status, code, message = http.StatusUnsupportedMediaType, "unsupported_media_type", "Only image uploads are allowed."
	case errors.Is(err, ErrFileRequired), errors.Is(err, post.ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "bad_request", err.Error()
	default:
		logger.FromContext(c).Error("media request failed", zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{
		"status":  "error",
		"error":   code,
		"message": message,
	})
}
