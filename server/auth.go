package server

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krau/taggerapi/config"
)

// BasicAuth rejects requests whose HTTP Basic credentials are not in creds.
// With an empty table every request passes.
func BasicAuth(creds config.Credentials) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !creds.Enabled() {
			c.Next()
			return
		}
		user, pass, ok := c.Request.BasicAuth()
		if ok {
			expected, known := creds[user]
			if known && subtle.ConstantTimeCompare([]byte(pass), []byte(expected)) == 1 {
				c.Next()
				return
			}
		}
		c.Header("WWW-Authenticate", "Basic")
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"detail": "Incorrect username or password"})
	}
}
