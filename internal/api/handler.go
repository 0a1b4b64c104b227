package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prasenjit/go-gateway/internal/gateway"
	"github.com/prasenjit/go-gateway/internal/gwerrors"
	"github.com/prasenjit/go-gateway/internal/models"
)

// Handler handles API requests
type Handler struct {
	gateway *gateway.Gateway
	started time.Time
}

// NewHandler creates a new API handler
func NewHandler(g *gateway.Gateway) *Handler {
	return &Handler{gateway: g, started: time.Now()}
}

// fail writes err with the status and kind it maps to
func fail(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}
	if kind := gwerrors.Kind(err); kind != "" {
		body["kind"] = kind
	}
	c.JSON(gwerrors.HTTPStatus(err), body)
}

// badRequest answers a body that could not be bound at all
func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": "InvalidRequest"})
}

// RegisterSpec registers a new specification version
func (h *Handler) RegisterSpec(c *gin.Context) {
	var input models.SpecificationInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	spec, err := h.gateway.RegisterSpecification(c.Request.Context(), input)
	if err != nil {
		fail(c, err)
		return
	}

	endpoints, _ := h.gateway.ListEndpoints(spec.ID)
	c.JSON(http.StatusCreated, spec.Summary(len(endpoints)))
}

// ListSpecs returns all specification versions, optionally for one name
func (h *Handler) ListSpecs(c *gin.Context) {
	specs := h.gateway.ListSpecifications()

	if name := c.Query("name"); name != "" {
		filtered := specs[:0]
		for _, s := range specs {
			if s.Name == name {
				filtered = append(filtered, s)
			}
		}
		specs = filtered
	}

	c.JSON(http.StatusOK, specs)
}

// GetSpec returns a single specification including its content
func (h *Handler) GetSpec(c *gin.Context) {
	spec, err := h.gateway.GetSpecification(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, spec)
}

// DeleteSpec deletes one specification version
func (h *Handler) DeleteSpec(c *gin.Context) {
	if err := h.gateway.DeleteSpecification(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Specification deleted"})
}

// ListEndpoints returns the endpoints of a specification
func (h *Handler) ListEndpoints(c *gin.Context) {
	endpoints, err := h.gateway.ListEndpoints(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, endpoints)
}

// GetEndpoint returns a single endpoint
func (h *Handler) GetEndpoint(c *gin.Context) {
	endpoint, err := h.gateway.GetEndpoint(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, endpoint)
}

// GenerateDTOs returns the DTOs of a specification
func (h *Handler) GenerateDTOs(c *gin.Context) {
	dtos, err := h.gateway.GenerateDTOs(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, dtos)
}

// Validate returns the validation report of a specification
func (h *Handler) Validate(c *gin.Context) {
	report, err := h.gateway.Validate(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// GetRoutes returns the path templates of a specification by method
func (h *Handler) GetRoutes(c *gin.Context) {
	routes, err := h.gateway.Routes(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, routes)
}

// GetMounts returns the live mount table
func (h *Handler) GetMounts(c *gin.Context) {
	c.JSON(http.StatusOK, h.gateway.MountTable())
}

// CallByPath performs a call addressed by path against a specification.
// A call that reached the gateway's dispatcher answers 200 even when the
// upstream failed; the result says so.
func (h *Handler) CallByPath(c *gin.Context) {
	var req models.CallByPathRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	result, err := h.gateway.CallByPath(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// CallByEndpoint performs a call against one endpoint
func (h *Handler) CallByEndpoint(c *gin.Context) {
	var req models.CallRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	result, err := h.gateway.CallByEndpoint(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UpsertAuthConfig creates or updates an auth config
func (h *Handler) UpsertAuthConfig(c *gin.Context) {
	var input models.AuthConfigInput
	if err := c.ShouldBindJSON(&input); err != nil {
		badRequest(c, err)
		return
	}

	cfg, err := h.gateway.UpsertAuthConfig(input)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg.Redacted())
}

// ListAuthConfigs returns auth configs with secrets masked
func (h *Handler) ListAuthConfigs(c *gin.Context) {
	configs, err := h.gateway.ListAuthConfigs(c.Query("specId"))
	if err != nil {
		fail(c, err)
		return
	}

	out := make([]models.AuthConfig, len(configs))
	for i := range configs {
		out[i] = configs[i].Redacted()
	}
	c.JSON(http.StatusOK, out)
}

// GetAuthConfig returns one auth config with secrets masked
func (h *Handler) GetAuthConfig(c *gin.Context) {
	cfg, err := h.gateway.GetAuthConfig(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, cfg.Redacted())
}

// DeleteAuthConfig deletes an auth config
func (h *Handler) DeleteAuthConfig(c *gin.Context) {
	if err := h.gateway.DeleteAuthConfig(c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Auth config deleted"})
}

// GetRegistry returns what the registry can handle
func (h *Handler) GetRegistry(c *gin.Context) {
	c.JSON(http.StatusOK, h.gateway.Registry().Summary())
}

// GetGlobalStats returns global statistics
func (h *Handler) GetGlobalStats(c *gin.Context) {
	specs, endpoints := h.gateway.Counts()
	c.JSON(http.StatusOK, h.gateway.Stats().GetGlobalStats(specs, endpoints))
}

// GetSpecStats returns statistics for a specification
func (h *Handler) GetSpecStats(c *gin.Context) {
	spec, err := h.gateway.GetSpecification(c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, h.gateway.Stats().GetSpecStats(spec.ID, spec.Name))
}

// GetEndpointStats returns statistics for an endpoint
func (h *Handler) GetEndpointStats(c *gin.Context) {
	stats := h.gateway.Stats().GetEndpointStats(c.Param("id"))
	if stats == nil {
		c.JSON(http.StatusOK, gin.H{"message": "No statistics available"})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// ResetStats resets all statistics
func (h *Handler) ResetStats(c *gin.Context) {
	h.gateway.Stats().Reset()
	c.JSON(http.StatusOK, gin.H{"message": "Statistics reset"})
}

// ListCalls returns recorded calls, newest first
func (h *Handler) ListCalls(c *gin.Context) {
	filter, err := callFilter(c)
	if err != nil {
		badRequest(c, err)
		return
	}
	c.JSON(http.StatusOK, h.gateway.Calls().GetCalls(filter))
}

func callFilter(c *gin.Context) (*models.CallLogFilter, error) {
	filter := &models.CallLogFilter{
		SpecID:     c.Query("specId"),
		EndpointID: c.Query("endpointId"),
		Method:     strings.ToUpper(c.Query("method")),
		Limit:      100,
	}

	var err error
	if v := c.Query("statusCode"); v != "" {
		if filter.StatusCode, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	if v := c.Query("success"); v != "" {
		success, err := strconv.ParseBool(v)
		if err != nil {
			return nil, err
		}
		filter.Success = &success
	}
	if v := c.Query("since"); v != "" {
		if filter.StartTime, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, err
		}
	}
	if v := c.Query("until"); v != "" {
		if filter.EndTime, err = time.Parse(time.RFC3339, v); err != nil {
			return nil, err
		}
	}
	if v := c.Query("limit"); v != "" {
		if filter.Limit, err = strconv.Atoi(v); err != nil {
			return nil, err
		}
	}
	return filter, nil
}

// GetCall returns a single recorded call
func (h *Handler) GetCall(c *gin.Context) {
	id := c.Param("id")

	entry := h.gateway.Calls().GetCall(id)
	if entry == nil {
		fail(c, &gwerrors.NotFoundError{Entity: "call", ID: id})
		return
	}
	c.JSON(http.StatusOK, entry)
}

// ClearCalls clears recorded calls, optionally for one specification
func (h *Handler) ClearCalls(c *gin.Context) {
	if specID := c.Query("specId"); specID != "" {
		h.gateway.Calls().ClearCallsBySpec(specID)
	} else {
		h.gateway.Calls().ClearCalls()
	}
	c.JSON(http.StatusOK, gin.H{"message": "Calls cleared"})
}

// HealthCheck returns health status
func (h *Handler) HealthCheck(c *gin.Context) {
	specs, endpoints := h.gateway.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).Round(time.Second).String(),
		"specs":     specs,
		"endpoints": endpoints,
	})
}
