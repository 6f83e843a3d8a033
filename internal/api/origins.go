package api

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	corsAllowHeaders = "Content-Type, Content-Length, Accept-Encoding, Authorization, X-API-Key, X-Request-ID, accept, origin, Cache-Control"
	corsAllowMethods = "POST, OPTIONS, GET, PUT, DELETE"
)

// originPolicy decides which browser origins may call the API. It is read
// from BEEPWATCH_CORS_ORIGIN: "*" allows every origin, a comma-separated list
// allows exactly those, and an empty value keeps the API same-origin.
type originPolicy struct {
	wildcard bool
	allowed  map[string]bool
}

func parseOriginPolicy(value string) originPolicy {
	p := originPolicy{wildcard: value == "*", allowed: make(map[string]bool)}
	if p.wildcard {
		return p
	}
	for _, origin := range strings.Split(value, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			p.allowed[origin] = true
		}
	}
	return p
}

// allowUpgrade is the WebSocket CheckOrigin. With no allow list a browser may
// only connect from the page the API itself served.
func (p originPolicy) allowUpgrade(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	switch {
	case p.wildcard:
		return true
	case len(p.allowed) > 0:
		return p.allowed[origin]
	case origin == "":
		return true
	}
	u, err := url.Parse(origin)
	return err == nil && u.Host == r.Host
}

// middleware sets the CORS response headers and answers preflight requests.
func (p originPolicy) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.Writer.Header()
		if p.wildcard {
			header.Set("Access-Control-Allow-Origin", "*")
		} else if origin := c.GetHeader("Origin"); p.allowed[origin] {
			header.Set("Access-Control-Allow-Origin", origin)
			header.Set("Vary", "Origin")
		}
		header.Set("Access-Control-Allow-Headers", corsAllowHeaders)
		header.Set("Access-Control-Allow-Methods", corsAllowMethods)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
