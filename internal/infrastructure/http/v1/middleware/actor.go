package middleware

import (
	"github.com/gin-gonic/gin"

	appctx "khata/internal/core/context"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorName = "X-Actor-Name"
)

// ActorContext middleware threads the acting user through the request
// context for audit stamps. Authentication happens in the surrounding
// platform; this core trusts the gateway-set headers.
func ActorContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := c.GetHeader(HeaderActorID)
		if actorID == "" {
			c.Next()
			return
		}

		actor := &appctx.ActorContext{
			ActorID:    actorID,
			BusinessID: c.GetString("business_id"),
			Name:       c.GetHeader(HeaderActorName),
		}

		ctx := appctx.WithActor(c.Request.Context(), actor)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}
