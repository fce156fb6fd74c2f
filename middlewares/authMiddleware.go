package middlewares

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tungdibui2609/qlk-phutungoto-sub003/utils"
)

// AuthMiddleware validates the bearer token and stamps the request context
// with the caller's user id and business id. The tenant guard plugin reads
// the business id off the same context.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		auth := c.Request.Header.Get("Authorization")

		bearer := "Bearer "
		if !strings.HasPrefix(auth, bearer) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}
		auth = auth[len(bearer):]

		validate, err := utils.JwtValidate(auth)
		if err != nil || !validate.Valid {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		claim, ok := validate.Claims.(*utils.JwtCustomClaim)
		if !ok || claim.BusinessId == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			c.Abort()
			return
		}

		ctx := c.Request.Context()
		ctx = utils.SetTokenInContext(ctx, auth)
		ctx = utils.SetUserIdInContext(ctx, claim.ID)
		ctx = utils.SetBusinessIdInContext(ctx, claim.BusinessId)
		ctx = utils.SetIsAdminInContext(ctx, claim.Role == "A")
		// An operator pinned to one warehouse sends it per request; the
		// tenant guard narrows warehouse-scoped tables accordingly.
		if warehouse := c.Request.Header.Get("X-Warehouse"); warehouse != "" {
			ctx = utils.SetWarehouseInContext(ctx, warehouse)
		}
		if _, exists := utils.GetCorrelationIdFromContext(ctx); !exists {
			ctx = utils.SetCorrelationIdInContext(ctx, uuid.NewString())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
