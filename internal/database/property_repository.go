package database

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shamaqar/booking-backend/internal/models"
)

// PropertyRepository handles property database operations
type PropertyRepository struct {
	db *sqlx.DB
}

// NewPropertyRepository creates a new PropertyRepository
func NewPropertyRepository(db *sqlx.DB) *PropertyRepository {
	return &PropertyRepository{db: db}
}

// Create persists a new property listing
func (r *PropertyRepository) Create(property *models.Property) error {
	if property.ID == uuid.Nil {
		property.ID = uuid.New()
	}
	property.CreatedAt = time.Now()
	property.UpdatedAt = time.Now()

	query := `
		INSERT INTO properties (
			id, owner_id, transaction_kind, nightly_rate, sale_price,
			currency, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.Exec(query,
		property.ID, property.OwnerID, property.TransactionKind,
		property.NightlyRate, property.SalePrice, property.Currency,
		property.CreatedAt, property.UpdatedAt,
	)
	return err
}

// GetByID retrieves a property by ID. Returns nil without error when no
// property exists.
func (r *PropertyRepository) GetByID(propertyID uuid.UUID) (*models.Property, error) {
	var property models.Property
	query := `
		SELECT id, owner_id, transaction_kind, nightly_rate, sale_price,
		       currency, created_at, updated_at
		FROM properties
		WHERE id = $1`

	err := r.db.Get(&property, query, propertyID)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &property, nil
}
