package post

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/abduss/blogapi/internal/auth"
	"github.com/abduss/blogapi/internal/logger"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRoutes mounts post endpoints onto the router. Writes go through
// authenticate; the listing goes through listCache when it is non-nil.
func RegisterRoutes(router *gin.RouterGroup, service *Service, authenticate, listCache gin.HandlerFunc) {
	handler := &httpHandler{service: service}

	list := []gin.HandlerFunc{handler.listPosts}
	if listCache != nil {
		list = append([]gin.HandlerFunc{listCache}, list...)
	}

	posts := router.Group("/posts")
	{
		posts.GET("", list...)
		posts.GET("/slug/:slug", handler.getPostBySlug)
		posts.GET("/:id", handler.getPost)

		posts.POST("", authenticate, handler.createPost)
		posts.PATCH("/:id", authenticate, handler.updatePost)
		posts.DELETE("/:id", authenticate, handler.deletePost)
	}
}

type httpHandler struct {
	service *Service
}

type createPostRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Content     string   `json:"content" binding:"required"`
	CategoryIDs []string `json:"categoryIds" binding:"omitempty,dive,uuid"`
	Published   bool     `json:"published"`
}

type updatePostRequest struct {
	Title       *string   `json:"title" binding:"omitempty,min=1,max=200"`
	Content     *string   `json:"content" binding:"omitempty,min=1"`
	CategoryIDs *[]string `json:"categoryIds" binding:"omitempty,dive,uuid"`
	Published   *bool     `json:"published"`
}

type listPostsQuery struct {
	Page         int    `form:"page" binding:"omitempty,min=1,max=1000000"`
	Limit        int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Published    *bool  `form:"published"`
	AuthorID     string `form:"authorId" binding:"omitempty,uuid"`
	Author       string `form:"author"`
	Category     string `form:"category" binding:"omitempty,uuid"`
	CategoryName string `form:"categoryName"`
	Search       string `form:"search"`
	MinComments  *int   `form:"minComments" binding:"omitempty,min=0"`
	MaxComments  *int   `form:"maxComments" binding:"omitempty,min=0"`
	DateFrom     string `form:"dateFrom"`
	DateTo       string `form:"dateTo"`
}

func (h *httpHandler) createPost(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		writeError(c, auth.ErrMissingAccessToken)
		return
	}

	var req createPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}
	categoryIDs, err := parseIDs(req.CategoryIDs)
	if err != nil {
		writeValidationError(c, err)
		return
	}

	created, err := h.service.CreatePost(c.Request.Context(), userID, CreateInput{
		Title:       req.Title,
		Content:     req.Content,
		CategoryIDs: categoryIDs,
		Published:   req.Published,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"status": "success", "post": created})
}

func (h *httpHandler) listPosts(c *gin.Context) {
	var query listPostsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		writeValidationError(c, err)
		return
	}
	filter, err := query.toFilter()
	if err != nil {
		writeValidationError(c, err)
		return
	}

	result, err := h.service.ListPosts(c.Request.Context(), filter)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":     "success",
		"results":    len(result.Posts),
		"posts":      result.Posts,
		"pagination": result.Pagination,
	})
}

func (h *httpHandler) getPost(c *gin.Context) {
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	found, err := h.service.GetPost(c.Request.Context(), postID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "post": found})
}

func (h *httpHandler) getPostBySlug(c *gin.Context) {
	found, err := h.service.GetPostBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "post": found})
}

func (h *httpHandler) updatePost(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		writeError(c, auth.ErrMissingAccessToken)
		return
	}
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	var req updatePostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	input := UpdateInput{
		Title:     req.Title,
		Content:   req.Content,
		Published: req.Published,
	}
	if req.CategoryIDs != nil {
		ids, err := parseIDs(*req.CategoryIDs)
		if err != nil {
			writeValidationError(c, err)
			return
		}
		if ids == nil {
			ids = []uuid.UUID{}
		}
		input.CategoryIDs = &ids
	}

	updated, err := h.service.UpdatePost(c.Request.Context(), userID, postID, input)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "post": updated})
}

func (h *httpHandler) deletePost(c *gin.Context) {
	userID, _, ok := auth.RequireUser(c)
	if !ok {
		writeError(c, auth.ErrMissingAccessToken)
		return
	}
	postID, ok := parsePostID(c)
	if !ok {
		return
	}

	if err := h.service.DeletePost(c.Request.Context(), userID, postID); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (q listPostsQuery) toFilter() (ListFilter, error) {
	filter := ListFilter{
		Page:         q.Page,
		Limit:        q.Limit,
		Published:    q.Published,
		AuthorName:   strings.TrimSpace(q.Author),
		CategoryName: strings.TrimSpace(q.CategoryName),
		Search:       strings.TrimSpace(q.Search),
		MinComments:  q.MinComments,
		MaxComments:  q.MaxComments,
	}

	if q.AuthorID != "" {
		id, err := uuid.Parse(q.AuthorID)
		if err != nil {
			return ListFilter{}, fmt.Errorf("invalid authorId: %w", err)
		}
		filter.AuthorID = &id
	}
	if q.Category != "" {
		id, err := uuid.Parse(q.Category)
		if err != nil {
			return ListFilter{}, fmt.Errorf("invalid category: %w", err)
		}
		filter.CategoryID = &id
	}

	var err error
	if filter.DateFrom, err = parseDate(q.DateFrom, false); err != nil {
		return ListFilter{}, fmt.Errorf("invalid dateFrom: %w", err)
	}
	if filter.DateTo, err = parseDate(q.DateTo, true); err != nil {
		return ListFilter{}, fmt.Errorf("invalid dateTo: %w", err)
	}
	return filter, nil
}

// parseDate accepts RFC3339 or a bare YYYY-MM-DD. A bare dateTo covers the
// whole day.
func parseDate(value string, endOfDay bool) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse(time.DateOnly, value)
	if err != nil {
		return nil, err
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

func parseIDs(raw []string) ([]uuid.UUID, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	ids := make([]uuid.UUID, 0, len(raw))
	for _, value := range raw {
		id, err := uuid.Parse(value)
		if err != nil {
			return nil, fmt.Errorf("invalid category id %q", value)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parsePostID(c *gin.Context) (uuid.UUID, bool) {
	postID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		writeError(c, fmt.Errorf("%w: invalid post id", ErrInvalidInput))
		return uuid.Nil, false
	}
	return postID, true
}

func writeError(c *gin.Context, err error) {
	status, code := http.StatusInternalServerError, "internal_error"
	message := "Something went wrong"

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		status, code, message = http.StatusUnauthorized, "unauthenticated", "Authentication required"
	case errors.Is(err, ErrPostNotFound):
		status, code, message = http.StatusNotFound, "not_found", "Post not found."
	case errors.Is(err, ErrSlugExists):
		status, code, message = http.StatusConflict, "conflict", "A post exists with the same title."
	case errors.Is(err, ErrForbidden):
		status, code, message = http.StatusForbidden, "forbidden", "You can only modify your own posts."
	case errors.Is(err, ErrCategoriesNotFound), errors.Is(err, ErrInvalidInput):
		status, code, message = http.StatusBadRequest, "bad_request", err.Error()
	default:
		logger.FromContext(c).Error("post request failed", zap.Error(err))
	}

	c.AbortWithStatusJSON(status, gin.H{
		"status":  "error",
		"error":   code,
		"message": message,
	})
}

func writeValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"error":   "validation_error",
		"message": err.Error(),
	})
}
