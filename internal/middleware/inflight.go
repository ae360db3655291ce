package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"accountdesk/portal/internal/session"
	"accountdesk/portal/internal/storage"
)

const inflightMessage = "That action is already in progress."

// InFlight rejects a second overlapping submission of the same route from the
// same browser session. The marker expires after ttl even if the holder dies.
func InFlight(locker storage.Locker, ttl time.Duration, redirectTo string, log zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		store := SessionFrom(c)
		key := store.Key("inflight:" + c.FullPath())
		ctx := c.Request.Context()

		acquired, err := locker.Acquire(ctx, key, ttl)
		if err != nil {
			log.Error().Err(err).Str("key", key).Msg("acquire in-flight lock failed")
			c.AbortWithStatus(http.StatusServiceUnavailable)
			return
		}
		if !acquired {
			if err := store.AddFlash(ctx, session.FlashInfo, inflightMessage); err != nil {
				log.Warn().Err(err).Msg("flash in-flight notice failed")
			}
			c.Redirect(http.StatusSeeOther, redirectTo)
			c.Abort()
			return
		}

		defer func() {
			if err := locker.Release(context.WithoutCancel(ctx), key); err != nil {
				log.Warn().Err(err).Str("key", key).Msg("release in-flight lock failed")
			}
		}()

		c.Next()
	}
}
