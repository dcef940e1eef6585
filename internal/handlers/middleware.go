package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserID = "userId"

	errNoUser = "user id not found in context"
)

func (h *Handler) userIdMiddleware(c *gin.Context) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if token := c.Query("token"); token != "" {
			header = "Bearer " + token
		}
	}
	if header == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "missing Authorization header",
		})
		return
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid Authorization header format",
		})
		return
	}

	userId, err := h.services.ParseToken(parts[1])
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "invalid or expired token",
		})
		return
	}

	// store in Gin context
	c.Set(ctxUserID, userId)
	c.Next()
}

// userID reads the id set by userIdMiddleware. It writes a 401 and returns
// false when the id is missing.
func userID(c *gin.Context) (int, bool) {
	v, ok := c.Get(ctxUserID)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNoUser})
		return 0, false
	}
	id, ok := v.(int)
	if !ok || id <= 0 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errNoUser})
		return 0, false
	}
	return id, true
}

// triggerTokenMiddleware guards machine-to-machine endpoints with the
// configured X-Trigger-Token.
func (h *Handler) triggerTokenMiddleware(c *gin.Context) {
	if h.triggerToken == "" {
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "trigger endpoint disabled"})
		return
	}
	got := c.GetHeader("X-Trigger-Token")
	if subtle.ConstantTimeCompare([]byte(got), []byte(h.triggerToken)) != 1 {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid trigger token"})
		return
	}
	c.Next()
}
