package devserver

import (
	"github.com/gin-gonic/gin"

	"github.com/danilokhury/termdock/internal/shared/id"
)

const requestIDHeader = "X-Request-ID"

// requestID tags every request with a correlation id, honoring one supplied
// by the caller so client and gateway logs line up.
func requestID(ids *id.Generator) gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(requestIDHeader)
		if rid == "" {
			rid = ids.RequestID()
		}
		c.Set("request_id", rid)
		c.Header(requestIDHeader, rid)
		c.Next()
	}
}
