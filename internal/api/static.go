package api

import (
	"fmt"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mescon/beepwatch/internal/logger"
	"github.com/mescon/beepwatch/internal/web"
)

// mustSub returns a sub-filesystem or panics. Used for embedded assets.
func mustSub(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(fmt.Sprintf("failed to get sub-filesystem %q: %v", dir, err))
	}
	return sub
}

// serveIndexWithBasePath serves index.html with the base path injected so
// relative asset and API URLs resolve under a reverse proxy prefix.
func serveIndexWithBasePath(basePath string, readFile func() ([]byte, error)) gin.HandlerFunc {
	href := strings.TrimSuffix(basePath, "/") + "/"
	return func(c *gin.Context) {
		data, err := readFile()
		if err != nil {
			logger.Errorf("Failed to read %s: %v", web.IndexFile, err)
			c.Status(http.StatusNotFound)
			return
		}
		injected := fmt.Sprintf(`<base href=%q><script>window.__BEEPWATCH_BASE_PATH__=%q;</script></head>`, href, basePath)
		html := strings.Replace(string(data), "</head>", injected, 1)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(html))
	}
}

// setupDashboard serves the browser dashboard under the base path. Unknown
// API paths still get a JSON 404.
func (s *RESTServer) setupDashboard(base *gin.RouterGroup, basePath string) {
	webFS := web.GetFS(s.cfg.WebDir)
	if !web.HasIndex(webFS) {
		logger.Infof("No dashboard assets found - running in API-only mode")
		s.router.NoRoute(func(c *gin.Context) {
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
		})
		return
	}
	logger.Debugf("Dashboard files: %v", web.ListFiles(webFS))

	base.StaticFS("/assets", http.FS(mustSub(webFS, "assets")))

	indexHandler := serveIndexWithBasePath(basePath, func() ([]byte, error) {
		return fs.ReadFile(webFS, web.IndexFile)
	})
	base.GET("/", indexHandler)
	base.GET("/"+web.IndexFile, indexHandler)

	s.router.NoRoute(func(c *gin.Context) {
		path := c.Request.URL.Path
		switch {
		case strings.Contains(path, "/api/"):
			c.JSON(http.StatusNotFound, gin.H{"error": "API endpoint not found"})
		case basePath == "/" || strings.HasPrefix(path, basePath):
			indexHandler(c)
		default:
			c.Redirect(http.StatusMovedPermanently, basePath)
		}
	})
}
