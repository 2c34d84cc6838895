package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/krau/taggerapi/service"
)

type Handler struct {
	tagger *service.Tagger
	logger *slog.Logger
}

func NewHandler(tagger *service.Tagger, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tagger: tagger, logger: logger}
}

func (h *Handler) Interrogate(c *gin.Context) {
	var req service.InterrogateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	resp, err := h.tagger.Interrogate(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Interrogators(c *gin.Context) {
	models, err := h.tagger.Models()
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, service.InterrogatorsResponse{Models: models})
}

func (h *Handler) BatchFilesInterrogate(c *gin.Context) {
	var req service.BatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"detail": err.Error()})
		return
	}

	// a started batch runs to completion even if the client goes away
	ctx := context.WithoutCancel(c.Request.Context())
	resp, err := h.tagger.BatchInterrogate(ctx, req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	if re, ok := service.AsRequestError(err); ok {
		status := http.StatusBadRequest
		if re.Kind == service.KindNotFound {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"detail": re.Message})
		return
	}
	h.logger.Error("Request failed",
		slog.String("path", c.FullPath()),
		slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
}
