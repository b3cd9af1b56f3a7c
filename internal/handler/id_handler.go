package handler

import (
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/flenzi/company-service/internal/generator"
	"github.com/flenzi/company-service/pkg/log"
	"github.com/flenzi/company-service/pkg/response"
)

// IDRecorder counts minted identifiers.
type IDRecorder interface {
	IDsGenerated(scheme string, n int)
}

// IDHandler exposes the id toolbox.
type IDHandler struct {
	registry *generator.Registry
	recorder IDRecorder
}

// NewIDHandler creates a new id handler. recorder may be nil.
func NewIDHandler(registry *generator.Registry, recorder IDRecorder) *IDHandler {
	return &IDHandler{registry: registry, recorder: recorder}
}

// RegisterRoutes registers the id routes under rg.
func (h *IDHandler) RegisterRoutes(rg *gin.RouterGroup) {
	ids := rg.Group("/ids")
	{
		ids.GET("", h.Schemes)
		ids.GET("/:scheme", h.Generate)
		ids.GET("/:scheme/:id", h.Inspect)
	}
}

type generateResponse struct {
	Scheme string   `json:"scheme"`
	IDs    []string `json:"ids"`
}

type inspectResponse struct {
	Valid  bool                   `json:"valid"`
	Reason string                 `json:"reason,omitempty"`
	Result *generator.ParseResult `json:"result,omitempty"`
}

func (h *IDHandler) Schemes(c *gin.Context) {
	response.Success(c, gin.H{
		"schemes":   h.registry.Names(),
		"max_batch": h.registry.MaxBatch(),
	})
}

// Generate mints ?count= ids (default 1) with the path scheme.
func (h *IDHandler) Generate(c *gin.Context) {
	scheme := c.Param("scheme")

	count := 1
	if raw := c.Query("count"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			response.BadRequest(c, "count must be an integer")
			return
		}
		count = n
	}

	ids, err := h.registry.Generate(scheme, count)
	if err != nil {
		h.writeError(c, err)
		return
	}

	if h.recorder != nil {
		h.recorder.IDsGenerated(scheme, len(ids))
	}
	l := log.Ctx(c.Request.Context())
	l.Debug().Str(log.FieldScheme, scheme).Int("count", len(ids)).Msg("ids generated")

	response.Success(c, generateResponse{Scheme: scheme, IDs: ids})
}

// Inspect validates an id and, when valid, decodes what the scheme embeds.
func (h *IDHandler) Inspect(c *gin.Context) {
	s, err := h.registry.Get(c.Param("scheme"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	id := c.Param("id")
	if ok, reason := s.Validate(id); !ok {
		response.Success(c, inspectResponse{Valid: false, Reason: reason})
		return
	}

	result, err := s.Parse(id)
	if err != nil {
		response.Success(c, inspectResponse{Valid: false, Reason: err.Error()})
		return
	}

	response.Success(c, inspectResponse{Valid: true, Result: result})
}

func (h *IDHandler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, generator.ErrUnknownScheme):
		response.NotFound(c, err.Error())
	case errors.Is(err, generator.ErrInvalidCount):
		response.BadRequest(c, err.Error())
	default:
		l := log.Ctx(c.Request.Context())
		l.Error().Err(err).Msg("id generation failed")
		response.InternalError(c, "failed to generate ids")
	}
}
