package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/wilsbb/tor-accreditation-api/internal/middleware"
	"github.com/wilsbb/tor-accreditation-api/internal/models"
)

// claimsFromContext pulls the authenticated claims the JWT middleware
// stored; nil means the route ran without authentication.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}
