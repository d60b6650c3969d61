package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"bookingcore/internal/pkg/response"
)

// RequestLogger writes one line per request.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		entry := requestFields(c, start)
		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			entry.Error("request")
		case status >= http.StatusBadRequest:
			entry.Warn("request")
		default:
			entry.Info("request")
		}
	}
}

// ErrorLogger logs detailed error information and recovers from panics.
func ErrorLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				requestFields(c, start).
					WithField("error", err.Error()).
					WithField("stack", string(debug.Stack())).
					Error("panic")

				response.Abort(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal Server Error")
				return
			}

			for _, err := range c.Errors {
				entry := requestFields(c, start).
					WithField("error_type", fmt.Sprintf("%v", err.Type)).
					WithField("error", err.Error())
				if err.Meta != nil {
					entry = entry.WithField("meta", err.Meta)
				}
				entry.Error("request_error")
			}
		}()

		c.Next()
	}
}

func requestFields(c *gin.Context, start time.Time) *logrus.Entry {
	return logrus.WithFields(logrus.Fields{
		"status":     c.Writer.Status(),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"query":      c.Request.URL.RawQuery,
		"client_ip":  c.ClientIP(),
		"user_id":    c.GetInt64("user_id"),
		"role":       c.GetString("role"),
		"request_id": requestID(c),
		"latency":    time.Since(start).String(),
	})
}

func requestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = c.GetHeader("X-Request-Id")
	}
	return requestID
}
