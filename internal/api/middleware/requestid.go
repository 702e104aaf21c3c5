package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ArduPilot/ardupilot-vscode-devenv-sub002/internal/shared/id"
)

// RequestIDHeader is the header carrying the request correlation ID.
const RequestIDHeader = "X-Request-ID"

// RequestID assigns each request a correlation ID. A well-formed caller
// supplied ID is honored; anything else is replaced with a fresh req_*
// identifier.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader(RequestIDHeader)
		if !wellFormed(rid) {
			rid = id.NewRequestID().String()
		}
		c.Set("request_id", rid)
		c.Header(RequestIDHeader, rid)
		c.Next()
	}
}

// wellFormed accepts this service's req_* ULIDs and plain uuids, which is
// what editor-side HTTP clients mint.
func wellFormed(rid string) bool {
	if suffix, ok := strings.CutPrefix(rid, id.RequestPrefix+"_"); ok {
		return id.IsValid(suffix)
	}
	_, err := uuid.Parse(rid)
	return err == nil
}
