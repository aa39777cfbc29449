package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/shamaqar/booking-backend/internal/database"
	"github.com/shamaqar/booking-backend/internal/middleware"
	"github.com/shamaqar/booking-backend/internal/models"
)

// CreatePropertyRequest is the payload for listing a property
type CreatePropertyRequest struct {
	TransactionKind string   `json:"transaction_kind" binding:"required,oneof=sale tourist_rental brokerage"`
	NightlyRate     *float64 `json:"nightly_rate,omitempty"`
	SalePrice       *float64 `json:"sale_price,omitempty"`
	Currency        string   `json:"currency" binding:"required,oneof=USD SYP"`
}

// PropertyHandler handles property listing HTTP requests
type PropertyHandler struct {
	properties *database.PropertyRepository
	logger     *logrus.Logger
}

// NewPropertyHandler creates a new property handler
func NewPropertyHandler(properties *database.PropertyRepository, logger *logrus.Logger) *PropertyHandler {
	return &PropertyHandler{
		properties: properties,
		logger:     logger,
	}
}

// CreateProperty lists a property for the authenticated owner
// @Summary Create property
// @Description Lists a property on the marketplace. Rentals require a nightly rate; sale and brokerage listings require a sale price.
// @Tags properties
// @Accept json
// @Produce json
// @Param request body CreatePropertyRequest true "Property details"
// @Success 201 {object} models.Property
// @Failure 400 {object} map[string]string "Invalid request"
// @Router /api/v1/properties [post]
// @Security BearerAuth
func (h *PropertyHandler) CreateProperty(c *gin.Context) {
	userCtx, exists := middleware.GetUserContext(c)
	if !exists {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User context not found"})
		return
	}

	var req CreatePropertyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request format", "details": err.Error()})
		return
	}

	kind := models.TransactionKind(req.TransactionKind)
	if kind == models.TransactionTouristRental && (req.NightlyRate == nil || *req.NightlyRate <= 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Rental listings require a positive nightly_rate"})
		return
	}
	if kind != models.TransactionTouristRental && (req.SalePrice == nil || *req.SalePrice <= 0) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Sale and brokerage listings require a positive sale_price"})
		return
	}

	property := &models.Property{
		OwnerID:         userCtx.UserID,
		TransactionKind: kind,
		NightlyRate:     req.NightlyRate,
		SalePrice:       req.SalePrice,
		Currency:        models.Currency(req.Currency),
	}

	if err := h.properties.Create(property); err != nil {
		h.logger.WithError(err).Error("Failed to create property")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create property"})
		return
	}

	h.logger.WithFields(logrus.Fields{
		"property_id": property.ID,
		"owner_id":    userCtx.UserID,
		"kind":        property.TransactionKind,
	}).Info("Property listed")

	c.JSON(http.StatusCreated, property)
}

// GetProperty returns a property listing
// @Summary Get property
// @Tags properties
// @Produce json
// @Param id path string true "Property ID"
// @Success 200 {object} models.Property
// @Failure 404 {object} map[string]string "Property not found"
// @Router /api/v1/properties/{id} [get]
func (h *PropertyHandler) GetProperty(c *gin.Context) {
	propertyID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid property ID format"})
		return
	}

	property, err := h.properties.GetByID(propertyID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to get property")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get property"})
		return
	}
	if property == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Property not found"})
		return
	}

	c.JSON(http.StatusOK, property)
}
