package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/quotedesk/approval-api/internal/models"
	appErrors "github.com/quotedesk/approval-api/pkg/errors"
	"github.com/quotedesk/approval-api/pkg/response"
)

// RequireRoles enforces role-based access control for routes. Route
// gating is coarse: step ownership is checked again inside the workflow
// service against the persisted chain.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claimsValue, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims := claimsValue.(*models.JWTClaims)

		if _, ok := allowed[claims.Role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}

// RequireApprover admits any of the approver roles.
func RequireApprover() gin.HandlerFunc {
	return RequireRoles(models.ApproverRoles...)
}
