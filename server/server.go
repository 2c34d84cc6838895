package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/krau/taggerapi/config"
)

// NewRouter mounts the tagger routes under prefix. Credentials, when present,
// guard every prefixed route; /health stays open.
func NewRouter(h *Handler, prefix string, creds config.Credentials) *gin.Engine {
	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.GET("/health", h.Health)

	api := r.Group("/"+strings.Trim(prefix, "/"), BasicAuth(creds))
	{
		api.POST("/interrogate", h.Interrogate)
		api.GET("/interrogators", h.Interrogators)
		api.POST("/batch_files_interrogate", h.BatchFilesInterrogate)
	}
	return r
}
