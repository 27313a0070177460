// Package authgin records logins handled by gin routes.
package authgin

import (
	"net/http"

	"github.com/PaulFidika/accesslog/core"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type CaptureConfig struct {
	// Strict answers 500 when capture fails and the handler has not written a response.
	// Otherwise failures are logged and attached to c.Errors only.
	Strict bool
	// Logger defaults to logrus.StandardLogger().
	Logger logrus.FieldLogger
}

func (c *CaptureConfig) defaulted() CaptureConfig {
	if c == nil {
		return CaptureConfig{Logger: logrus.StandardLogger()}
	}
	out := *c
	if out.Logger == nil {
		out.Logger = logrus.StandardLogger()
	}
	return out
}

// Capture records the login of c immediately.
func Capture(c *gin.Context, capturer *core.Capturer, attrs map[string][]string, dest map[string]string) (core.Record, error) {
	return capturer.Process(c.Request.Context(), RequestFromGin(c, attrs, dest))
}

// CaptureLogin runs after the login handler and records the login it completed.
// Aborted requests, error statuses and requests without an identity are skipped.
func CaptureLogin(capturer *core.Capturer, resolve Resolver, cfg *CaptureConfig) gin.HandlerFunc {
	conf := cfg.defaulted()
	return func(c *gin.Context) {
		c.Next()

		if c.IsAborted() || c.Writer.Status() >= http.StatusBadRequest {
			return
		}
		login, ok := Identity(c, resolve)
		if !ok {
			return
		}
		if _, err := Capture(c, capturer, login.Attributes, login.Destination); err != nil {
			conf.Logger.WithError(err).WithFields(logrus.Fields{
				"set":    capturer.Set().Name,
				"source": login.Source,
				"path":   c.FullPath(),
			}).Error("accesslog: login capture failed")
			_ = c.Error(err)
			if conf.Strict && !c.Writer.Written() {
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "access_log_failed"})
			}
		}
	}
}
