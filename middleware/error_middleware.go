package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/mohitdev/blogbackend/httputil"
)

// ErrorHandler is the centralized formatter for errors handlers did not map
// themselves: anything attached via c.Error defaults to 500 with a generic
// message. Full detail stays server-side.
func ErrorHandler(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		for _, e := range c.Errors {
			log.WithFields(logrus.Fields{
				"method": c.Request.Method,
				"path":   c.Request.URL.Path,
			}).WithError(e.Err).Error("unhandled request error")
		}

		httputil.Error(c, http.StatusInternalServerError, "something went wrong")
	}
}

// Recovery formats panics as the same generic 500, exposing the stack trace
// only outside production.
func Recovery(log *logrus.Logger, dev bool) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		stack := string(debug.Stack())
		log.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
			"panic":  recovered,
		}).Error(stack)

		if dev {
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"message": "something went wrong",
				"stack":   stack,
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"message": "something went wrong",
		})
	})
}
