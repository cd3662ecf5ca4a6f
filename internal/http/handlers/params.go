package handlers

import (
	"net/http"
	"net/url"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// pathUUID reads a uuid path parameter in canonical form. It answers 400
// itself when the value is malformed.
func pathUUID(ctx *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(ctx.Param(name))
	if err != nil {
		RespondError(ctx, http.StatusBadRequest, "invalid_id", name+" must be a valid UUID", nil)
		return "", false
	}
	return id.String(), true
}

// absoluteURL rebuilds the request URL for pagination links.
func absoluteURL(ctx *gin.Context) *url.URL {
	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if proto := ctx.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return &url.URL{
		Scheme:   scheme,
		Host:     ctx.Request.Host,
		Path:     ctx.Request.URL.Path,
		RawQuery: ctx.Request.URL.RawQuery,
	}
}
