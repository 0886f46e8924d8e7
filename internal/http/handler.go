package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"dmv-service/internal/auth"
	"dmv-service/internal/config"
	"dmv-service/internal/domain/dmv"
	"dmv-service/internal/service"
)

type Handler struct {
	dmvService *service.DMVService
	config     *config.Config
	log        zerolog.Logger
}

func NewHandler(
	dmvService *service.DMVService,
	cfg *config.Config,
	log zerolog.Logger,
) *Handler {
	return &Handler{
		dmvService: dmvService,
		config:     cfg,
		log:        log,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	// Public endpoints
	public := r.Group("/api/v1")
	{
		public.GET("/healthz", h.healthz)
		public.POST("/sessions", h.createSession)
	}

	// Session-scoped endpoints
	protected := r.Group("/api/v1")
	protected.Use(authMiddleware)
	{
		protected.GET("/fleet", h.getFleet)
		protected.POST("/fleet/vehicles", h.addVehicle)
		protected.PUT("/fleet/vehicles/:index", h.updateVehicle)
		protected.DELETE("/fleet/vehicles/:index", h.removeVehicle)
		protected.POST("/fleet/ingest", h.ingestFleet)
		protected.PUT("/company", h.setCompany)
		protected.PUT("/tax-year", h.setTaxYear)
		protected.GET("/registry/:taxid", h.lookupCompany)
		protected.POST("/export", h.exportDeclaration)
	}
}

func (h *Handler) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

type createSessionRequest struct {
	TaxYear int `json:"tax_year"`
}

func (h *Handler) createSession(c *gin.Context) {
	var req createSessionRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
			return
		}
	}

	session := h.dmvService.CreateSession(req.TaxYear)
	token, expiresAt, err := auth.GenerateSessionToken(
		h.config.Auth.JWTSecret, session.ID, h.config.Auth.SessionTTL())
	if err != nil {
		h.log.Error().Err(err).Msg("failed to issue session token")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session_id": session.ID,
		"token":      token,
		"tax_year":   session.TaxYear(),
		"expires_at": expiresAt,
	})
}

func (h *Handler) getFleet(c *gin.Context) {
	state, err := h.dmvService.FleetState(sessionID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) addVehicle(c *gin.Context) {
	var v dmv.Vehicle
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	state, err := h.dmvService.AddVehicle(sessionID(c), v)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusCreated, successResponse(state))
}

func (h *Handler) updateVehicle(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid vehicle index"))
		return
	}
	var v dmv.Vehicle
	if err := c.ShouldBindJSON(&v); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	state, err := h.dmvService.UpdateVehicle(sessionID(c), index, v)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) removeVehicle(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("invalid vehicle index"))
		return
	}

	state, err := h.dmvService.RemoveVehicle(sessionID(c), index)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) ingestFleet(c *gin.Context) {
	var extract dmv.FleetExtract
	if err := c.ShouldBindJSON(&extract); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	state, err := h.dmvService.IngestFrom(c.Request.Context(), sessionID(c), staticFleetSource{extract})
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) setCompany(c *gin.Context) {
	var company dmv.Company
	if err := c.ShouldBindJSON(&company); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	state, err := h.dmvService.SetCompany(sessionID(c), company)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(state))
}

type setTaxYearRequest struct {
	TaxYear int `json:"tax_year"`
}

func (h *Handler) setTaxYear(c *gin.Context) {
	var req setTaxYearRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	state, err := h.dmvService.SetTaxYear(sessionID(c), req.TaxYear)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(state))
}

func (h *Handler) lookupCompany(c *gin.Context) {
	company, err := h.dmvService.LookupCompany(c.Request.Context(), c.Param("taxid"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, successResponse(company))
}

func (h *Handler) exportDeclaration(c *gin.Context) {
	filename, data, err := h.dmvService.Export(sessionID(c))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/xml; charset=utf-8", data)
}

func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrValidation):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func sessionID(c *gin.Context) string {
	return c.GetString(auth.SessionIDKey)
}

// staticFleetSource adapts an already-extracted JSON payload to the
// ingestion seam.
type staticFleetSource struct {
	extract dmv.FleetExtract
}

func (s staticFleetSource) ExtractFleet(_ context.Context) (dmv.FleetExtract, error) {
	return s.extract, nil
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}
