package auth

import (
	"errors"
	"io"
	"net/http"

	"github.com/abduss/blogapi/internal/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// RegisterRoutes mounts authentication endpoints under /auth. The optional
// middleware wraps the unauthenticated endpoints only.
func RegisterRoutes(router *gin.RouterGroup, service *Service, public ...gin.HandlerFunc) {
	handler := &httpHandler{service: service}
	chain := func(h gin.HandlerFunc) []gin.HandlerFunc {
		return append(append([]gin.HandlerFunc{}, public...), h)
	}

	authGroup := router.Group("/auth")
	{
		authGroup.POST("/register", chain(handler.register)...)
		authGroup.POST("/login", chain(handler.login)...)
		authGroup.POST("/refresh-token", chain(handler.refresh)...)

		gated := authGroup.Group("/", Middleware(service))
		gated.POST("/logout", handler.logout)
		gated.GET("/me", handler.me)
	}
}

type httpHandler struct {
	service *Service
}

type registerRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8,max=72"`
	Name     string `json:"name" binding:"required,max=100"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type tokensResponse struct {
	Status string `json:"status"`
	Tokens struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
	} `json:"tokens"`
}

func (h *httpHandler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	result, err := h.service.Register(c.Request.Context(), RegisterInput{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, marshalTokens(result.Tokens))
}

func (h *httpHandler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeValidationError(c, err)
		return
	}

	result, err := h.service.Login(c.Request.Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, marshalTokens(result.Tokens))
}

func (h *httpHandler) refresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		writeValidationError(c, err)
		return
	}

	result, err := h.service.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, marshalTokens(result.Tokens))
}

func (h *httpHandler) logout(c *gin.Context) {
	userID, _, ok := RequireUser(c)
	if !ok {
		writeError(c, ErrMissingAccessToken)
		return
	}

	if err := h.service.Logout(c.Request.Context(), userID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Logged out successfully"})
}

func (h *httpHandler) me(c *gin.Context) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		writeError(c, ErrMissingAccessToken)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "success", "data": gin.H{"user": identity}})
}

func marshalTokens(pair TokenPair) tokensResponse {
	resp := tokensResponse{Status: "success"}
	resp.Tokens.AccessToken = pair.AccessToken
	resp.Tokens.RefreshToken = pair.RefreshToken
	return resp
}

// errorClass maps a sentinel to its HTTP status and stable code.
type errorClass struct {
	target  error
	status  int
	code    string
	message string
}

var errorClasses = []errorClass{
	{ErrEmailAlreadyExists, http.StatusConflict, "conflict", "Email already in use"},
	{ErrConflict, http.StatusConflict, "conflict", "Conflict"},
	{ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "Invalid credentials"},
	{ErrInvalidRefreshToken, http.StatusUnauthorized, "unauthorized", "Invalid refresh token"},
	{ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Unauthorized"},
	{ErrMissingAccessToken, http.StatusUnauthorized, "unauthenticated", "AccessToken not found!"},
	{ErrUnauthenticated, http.StatusUnauthorized, "unauthenticated", "Invalid or expired access token"},
	{ErrRefreshTokenRequired, http.StatusBadRequest, "bad_request", "Refresh token required"},
	{ErrBadRequest, http.StatusBadRequest, "bad_request", "Bad request"},
	{ErrUserNotFound, http.StatusNotFound, "user_not_found", "User not found"},
	{ErrConfiguration, http.StatusInternalServerError, "configuration_error", "Server misconfigured"},
}

func writeError(c *gin.Context, err error) {
	for _, class := range errorClasses {
		if errors.Is(err, class.target) {
			c.AbortWithStatusJSON(class.status, gin.H{
				"status":  "error",
				"error":   class.code,
				"message": class.message,
			})
			return
		}
	}

	logger.FromContext(c).Error("auth request failed", zap.Error(err))
	c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
		"status":  "error",
		"error":   "internal_error",
		"message": "Something went wrong",
	})
}

func writeValidationError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"status":  "error",
		"error":   "validation_error",
		"message": err.Error(),
	})
}
