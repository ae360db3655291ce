package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"accountdesk/portal/internal/apiclient"
)

const requestIDHeader = "X-Request-Id"

// RequestID tags the response and the request context; the upstream client
// forwards the id on every call it makes for this request.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader(requestIDHeader)
		if requestID == "" || len(requestID) > 128 {
			requestID = uuid.NewString()
		}

		c.Set(requestIDHeader, requestID)
		c.Writer.Header().Set(requestIDHeader, requestID)
		c.Request = c.Request.WithContext(apiclient.WithRequestID(c.Request.Context(), requestID))

		c.Next()
	}
}

func RequestIDFrom(c *gin.Context) string {
	return c.GetString(requestIDHeader)
}
