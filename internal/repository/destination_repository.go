package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// GormDestinationRepository reads the destination catalog from PostgreSQL.
// The catalog is owned by another service; this repository only looks
// destinations up.
type GormDestinationRepository struct {
	db *gorm.DB
}

// NewGormDestinationRepository creates a new GORM destination repository
func NewGormDestinationRepository(db *gorm.DB) *GormDestinationRepository {
	return &GormDestinationRepository{db: db}
}

// Destinations GORM model for database mapping
type Destinations struct {
	ID             string         `gorm:"column:id;primaryKey;size:64"`
	Name           string         `gorm:"column:name"`
	Code           string         `gorm:"column:code;uniqueIndex;size:8"`
	Country        string         `gorm:"column:country"`
	City           string         `gorm:"column:city"`
	Price          float64        `gorm:"column:price;type:numeric(12,2)"`
	FlightDuration string         `gorm:"column:flight_duration"`
	Image          string         `gorm:"column:image"`
	AirportCode    string         `gorm:"column:airport_code;size:8"`
	Active         bool           `gorm:"column:active;default:true"`
	DeletedAt      gorm.DeletedAt `gorm:"index"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName overrides the default table name
func (Destinations) TableName() string {
	return "destinations"
}

// Lookup returns the snapshot of a catalog destination.  Inactive rows
// are returned; soft-deleted rows are not.
func (r *GormDestinationRepository) Lookup(ctx context.Context, destinationID string) (*model.DestinationSnapshot, error) {
	var d Destinations
	result := r.db.WithContext(ctx).Where("id = ?", destinationID).First(&d)
	if errors.Is(result.Error, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if result.Error != nil {
		return nil, result.Error
	}

	return &model.DestinationSnapshot{
		ID:             d.ID,
		Name:           d.Name,
		Code:           d.Code,
		Country:        d.Country,
		City:           d.City,
		Price:          d.Price,
		FlightDuration: d.FlightDuration,
		Image:          d.Image,
		AirportCode:    d.AirportCode,
		Active:         d.Active,
	}, nil
}

// Migrate creates the destinations table in development databases.
func (r *GormDestinationRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Destinations{})
}
