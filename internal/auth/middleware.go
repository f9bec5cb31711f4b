package auth

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const identityContextKey = "blogIdentity"

// Middleware authenticates the bearer token and attaches the resolved
// Identity for downstream handlers.
func Middleware(service *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := service.Authenticate(c.Request.Context(), c.GetHeader("Authorization"))
		if err != nil {
			writeError(c, err)
			return
		}

		SetIdentity(c, identity)
		c.Next()
	}
}

// SetIdentity attaches an authenticated identity to the request context.
func SetIdentity(c *gin.Context, identity Identity) {
	c.Set(identityContextKey, identity)
}

// CurrentIdentity extracts the authenticated identity from the context.
func CurrentIdentity(c *gin.Context) (Identity, bool) {
	value, exists := c.Get(identityContextKey)
	if !exists {
		return Identity{}, false
	}
	identity, ok := value.(Identity)
	return identity, ok
}

// RequireUser fetches the authenticated identity and its id.
func RequireUser(c *gin.Context) (uuid.UUID, Identity, bool) {
	identity, ok := CurrentIdentity(c)
	if !ok || identity.ID == uuid.Nil {
		return uuid.Nil, Identity{}, false
	}
	return identity.ID, identity, true
}
