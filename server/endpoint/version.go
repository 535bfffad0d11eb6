package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/caseflow/version"
)

// Version reports the running build.
func Version() gin.HandlerFunc {
	return func(c *gin.Context) {
		info := version.Get()
		c.JSON(http.StatusOK, gin.H{
			"version":    info.Short(),
			"commit":     info.Commit,
			"built_at":   info.BuiltAt,
			"go_version": info.GoVersion,
			"release":    info.Release(),
		})
	}
}
