package http

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/garyjia/voucher-desk/internal/application/service"
	"github.com/garyjia/voucher-desk/internal/domain/entity"
)

const claimsKey = "claims"

var (
	roleAdmin      = []string{entity.RoleAdmin}
	rolesIssuing   = []string{entity.RoleAgent, entity.RoleSupervisor, entity.RoleAdmin}
	rolesVoiding   = []string{entity.RoleSupervisor, entity.RoleAdmin}
	rolesExporting = []string{entity.RoleFinance, entity.RoleAdmin}
	rolesReporting = []string{entity.RoleSupervisor, entity.RoleFinance, entity.RoleAdmin}
)

// authMiddleware verifies the bearer token and stores its claims on the context
func authMiddleware(auth service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(token) == "" {
			abortWithError(c, service.ErrUnauthorized)
			return
		}

		claims, err := auth.Authenticate(strings.TrimSpace(token))
		if err != nil {
			abortWithError(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// requireRole rejects callers whose role is not in roles
func requireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFrom(c)
		if !ok {
			abortWithError(c, service.ErrUnauthorized)
			return
		}
		if !claims.HasRole(roles...) {
			abortWithError(c, service.ErrForbidden)
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) (*service.Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*service.Claims)
	return claims, ok
}

// actor returns the username behind the request
func actor(c *gin.Context) string {
	if claims, ok := claimsFrom(c); ok {
		return claims.Username()
	}
	return ""
}
