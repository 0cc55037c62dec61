package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/sirupsen/logrus"

	"estimmo/server/internal/database"
	"estimmo/server/internal/dvf"
	"estimmo/server/internal/estimation"
	"estimmo/server/internal/geocoding"
	"estimmo/server/internal/geometry"
	"estimmo/server/internal/models"
	"estimmo/server/internal/poi"
	"estimmo/server/internal/telegram"
)

type Handler struct {
	db              *database.Database
	logger          *logrus.Logger
	geocoder        *geocoding.Geocoder
	estimator       *estimation.Estimator
	catalog         *dvf.Catalog
	poiClient       *poi.Client
	telegramService *telegram.Service
	adminPassword   string
	poiRadiusMeters int
}

func NewHandler(
	db *database.Database,
	logger *logrus.Logger,
	geocoder *geocoding.Geocoder,
	estimator *estimation.Estimator,
	catalog *dvf.Catalog,
	poiClient *poi.Client,
	telegramService *telegram.Service,
	adminPassword string,
	poiRadiusMeters int,
) *Handler {
	return &Handler{
		db:              db,
		logger:          logger,
		geocoder:        geocoder,
		estimator:       estimator,
		catalog:         catalog,
		poiClient:       poiClient,
		telegramService: telegramService,
		adminPassword:   adminPassword,
		poiRadiusMeters: poiRadiusMeters,
	}
}

type EstimateRequest struct {
	Name         string  `json:"name"`
	Email        string  `json:"email"`
	Phone        string  `json:"phone"`
	Address      string  `json:"address" binding:"required"`
	PropertyType string  `json:"property_type" binding:"required,oneof=Appartement Maison"`
	Project      string  `json:"project"`
	Condition    string  `json:"condition"`
	Surface      float64 `json:"surface" binding:"required,gt=0"`
	AskingPrice  float64 `json:"asking_price"`
	Years        []int   `json:"years"`
	RadiusKm     float64 `json:"radius_km"`
	Callback     bool    `json:"callback_requested"`
}

type NotaryFees struct {
	Existing float64 `json:"existing"`
	NewBuild float64 `json:"new_build"`
}

type RentalProjection struct {
	MonthlyRent   float64 `json:"monthly_rent"`
	GrossYieldPct float64 `json:"gross_yield_pct"`
}

type EstimateResponse struct {
	Estimate        *estimation.Valuation      `json:"estimate"`
	PricePerSqm     *float64                   `json:"price_per_sqm"`
	SampleSize      int                        `json:"sample_size"`
	Evidence        []models.EvidenceRow       `json:"evidence"`
	EvidenceGeoJSON *geojson.FeatureCollection `json:"evidence_geojson"`
	Summary         *models.MarketSummary      `json:"summary"`
	Skips           models.SkipCounters        `json:"skips"`
	NotaryFees      *NotaryFees                `json:"notary_fees"`
	Rental          *RentalProjection          `json:"rental"`
	Message         string                     `json:"message,omitempty"`
}

// CreateEstimate runs a full estimation for a submitted form and captures
// the lead. The lead is stored on every submission, estimate or not.
func (h *Handler) CreateEstimate(c *gin.Context) {
	var req EstimateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.WithError(err).Error("Invalid estimate request")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Paramètres invalides"})
		return
	}

	if req.RadiusKm <= 0 {
		req.RadiusKm = 1.0
	}
	if len(req.Years) == 0 {
		req.Years = h.catalog.Years()
	}

	lead := &models.Lead{
		Name:              req.Name,
		Email:             req.Email,
		Phone:             req.Phone,
		Address:           req.Address,
		PropertyType:      req.PropertyType,
		Project:           req.Project,
		Condition:         req.Condition,
		Surface:           req.Surface,
		AskingPrice:       req.AskingPrice,
		CallbackRequested: req.Callback,
	}

	postalCode, target, ok := h.geocoder.ResolveWithPostalCode(c.Request.Context(), req.Address)
	if !ok || postalCode == "" {
		// The submission is still a lead even when the address is unusable
		h.saveLead(lead)
		c.JSON(http.StatusNotFound, gin.H{"error": "Adresse non trouvée"})
		return
	}

	result, err := h.estimator.Estimate(c.Request.Context(), estimation.Request{
		PostalCode:   postalCode,
		PropertyType: req.PropertyType,
		Years:        req.Years,
		Target:       target,
		RadiusKm:     req.RadiusKm,
	})
	if err != nil {
		h.logger.WithError(err).Error("Estimation failed")
		h.saveLead(lead)
		c.JSON(http.StatusNotFound, gin.H{"error": "Adresse non trouvée"})
		return
	}

	response := EstimateResponse{
		PricePerSqm:     result.PricePerSqm,
		SampleSize:      result.SampleSize,
		Evidence:        result.Evidence,
		EvidenceGeoJSON: geometry.EvidenceCollection(result.Evidence),
		Summary:         estimation.Summarize(result.Evidence),
		Skips:           result.Skips,
	}

	if result.PricePerSqm != nil {
		valuation := estimation.Valuate(req.Surface, *result.PricePerSqm, req.Condition)
		response.Estimate = &valuation
		lead.Estimate = &valuation.Estimate

		existing, newBuild := estimation.NotaryFees(valuation.Estimate)
		response.NotaryFees = &NotaryFees{Existing: existing, NewBuild: newBuild}

		if req.Project == "Louer" {
			rent, yield := estimation.RentalProjection(req.Surface, valuation.Estimate)
			response.Rental = &RentalProjection{MonthlyRent: rent, GrossYieldPct: yield}
		}
	} else {
		response.Message = "Aucune vente comparable trouvée"
	}

	h.saveLead(lead)

	c.JSON(http.StatusOK, response)
}

func (h *Handler) saveLead(lead *models.Lead) {
	if err := h.db.AppendLead(lead); err != nil {
		h.logger.WithError(err).Error("Failed to save lead")
		return
	}

	if lead.CallbackRequested {
		go func() {
			if err := h.telegramService.NotifyNewLead(lead); err != nil {
				h.logger.WithError(err).Warn("Failed to send lead notification")
			}
		}()
	}
}

// SuggestAddresses returns ranked address completions for a partial input.
func (h *Handler) SuggestAddresses(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		c.JSON(http.StatusOK, gin.H{"suggestions": []string{}})
		return
	}

	limit, err := strconv.Atoi(c.DefaultQuery("limit", "5"))
	if err != nil || limit <= 0 || limit > 10 {
		limit = 5
	}

	suggestions := h.geocoder.Suggest(c.Request.Context(), query, limit)
	if suggestions == nil {
		suggestions = []string{}
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": suggestions})
}

// GetAvailableYears lists the years with a DVF file on disk.
func (h *Handler) GetAvailableYears(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"years": h.catalog.Years()})
}

// GetNearbyPOIs returns amenities around a point with a proximity score.
func (h *Handler) GetNearbyPOIs(c *gin.Context) {
	lat, latErr := strconv.ParseFloat(c.Query("lat"), 64)
	lon, lonErr := strconv.ParseFloat(c.Query("lon"), 64)
	if latErr != nil || lonErr != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Coordonnées invalides"})
		return
	}

	radius, err := strconv.Atoi(c.DefaultQuery("radius", strconv.Itoa(h.poiRadiusMeters)))
	if err != nil || radius <= 0 {
		radius = h.poiRadiusMeters
	}

	pois := h.poiClient.Nearby(c.Request.Context(), orb.Point{lon, lat}, radius)
	c.JSON(http.StatusOK, gin.H{
		"pois":            pois,
		"proximity_score": poi.ProximityScore(pois),
	})
}

// requireAdmin gates the lead administration endpoints.
func (h *Handler) requireAdmin(c *gin.Context) {
	if c.GetHeader("X-Admin-Password") != h.adminPassword {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Mot de passe incorrect"})
		return
	}
	c.Next()
}

// GetLeads returns the captured leads, optionally filtered.
func (h *Handler) GetLeads(c *gin.Context) {
	var filter models.LeadFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		h.logger.WithError(err).Error("Failed to parse lead filter")
	}

	leads, err := h.db.GetLeads(filter)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get leads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get leads"})
		return
	}
	if leads == nil {
		leads = []models.Lead{}
	}

	c.JSON(http.StatusOK, leads)
}

// ExportLeads streams the lead table as a CSV download.
func (h *Handler) ExportLeads(c *gin.Context) {
	c.Header("Content-Type", "text/csv; charset=utf-8")
	c.Header("Content-Disposition", `attachment; filename="leads.csv"`)

	if err := h.db.ExportLeadsCSV(c.Writer); err != nil {
		h.logger.WithError(err).Error("Failed to export leads")
		c.Status(http.StatusInternalServerError)
	}
}

// DeleteLead removes one lead by its 1-based position in insertion order.
func (h *Handler) DeleteLead(c *gin.Context) {
	position, err := strconv.Atoi(c.Param("position"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Position invalide"})
		return
	}

	if err := h.db.DeleteLeadByPosition(position); err != nil {
		h.logger.WithError(err).Error("Failed to delete lead")
		c.JSON(http.StatusNotFound, gin.H{"error": "Position invalide"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "deleted"})
}

// ResetLeads deletes every captured lead.
func (h *Handler) ResetLeads(c *gin.Context) {
	if err := h.db.ResetLeads(); err != nil {
		h.logger.WithError(err).Error("Failed to reset leads")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to reset leads"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}
