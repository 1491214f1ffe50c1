package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// GormFlightRepository stores the flight inventory in PostgreSQL.
type GormFlightRepository struct {
	db *gorm.DB
}

// NewGormFlightRepository creates a new GORM flight repository
func NewGormFlightRepository(db *gorm.DB) *GormFlightRepository {
	return &GormFlightRepository{db: db}
}

// Flights GORM model for database mapping
type Flights struct {
	ID             uint      `gorm:"primaryKey"`
	FlightNumber   string    `gorm:"column:flight_number;uniqueIndex;size:16"`
	Airline        string    `gorm:"column:airline"`
	OriginID       string    `gorm:"column:origin_id;size:64"`
	DestinationID  string    `gorm:"column:destination_id;index;size:64"`
	DepartureAt    time.Time `gorm:"column:departure_at;index"`
	ArrivalAt      time.Time `gorm:"column:arrival_at"`
	Duration       string    `gorm:"column:duration"`
	SeatsAvailable int       `gorm:"column:seats_available"`
	PriceEconomy   float64   `gorm:"column:price_economy;type:numeric(12,2)"`
	PriceBusiness  float64   `gorm:"column:price_business;type:numeric(12,2)"`
	PriceFirst     float64   `gorm:"column:price_first;type:numeric(12,2)"`
	Active         bool      `gorm:"column:active"`
	CabinBaggage   string    `gorm:"column:cabin_baggage"`
	HoldBaggage    string    `gorm:"column:hold_baggage"`
	MealIncluded   bool      `gorm:"column:meal_included"`
	WiFi           bool      `gorm:"column:wifi"`
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TableName overrides the default table name
func (Flights) TableName() string {
	return "flights"
}

// Migrate creates or updates the flights table.
func (r *GormFlightRepository) Migrate(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&Flights{})
}

// Create inserts a flight.  A flight number that already exists yields
// ErrConflict.
func (r *GormFlightRepository) Create(ctx context.Context, f *model.ScheduledFlight) error {
	row := toFlightRow(f)
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrConflict
		}
		return err
	}
	f.ID = row.ID
	f.CreatedAt = row.CreatedAt.UTC()
	f.UpdatedAt = row.UpdatedAt.UTC()
	return nil
}

// List returns one page of flights ordered by departure, plus the total
// number of matching flights.
func (r *GormFlightRepository) List(ctx context.Context, q FlightQuery) ([]model.ScheduledFlight, int64, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}

	tx := r.db.WithContext(ctx).Model(&Flights{})
	if q.DestinationID != "" {
		tx = tx.Where("destination_id = ?", q.DestinationID)
	}
	if q.ActiveOnly {
		tx = tx.Where("active = ?", true)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []Flights
	err := tx.Order("departure_at ASC").Order("id ASC").
		Offset((q.Page - 1) * q.PageSize).
		Limit(q.PageSize).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	flights := make([]model.ScheduledFlight, 0, len(rows))
	for _, row := range rows {
		flights = append(flights, fromFlightRow(row))
	}
	return flights, total, nil
}

func toFlightRow(f *model.ScheduledFlight) Flights {
	return Flights{
		FlightNumber:   f.FlightNumber,
		Airline:        f.Airline,
		OriginID:       f.OriginID,
		DestinationID:  f.DestinationID,
		DepartureAt:    f.DepartureAt,
		ArrivalAt:      f.ArrivalAt,
		Duration:       f.Duration,
		SeatsAvailable: f.SeatsAvailable,
		PriceEconomy:   f.Prices.Economy,
		PriceBusiness:  f.Prices.Business,
		PriceFirst:     f.Prices.First,
		Active:         f.Active,
		CabinBaggage:   f.CabinBaggage,
		HoldBaggage:    f.HoldBaggage,
		MealIncluded:   f.MealIncluded,
		WiFi:           f.WiFi,
	}
}

func fromFlightRow(row Flights) model.ScheduledFlight {
	return model.ScheduledFlight{
		ID:             row.ID,
		FlightNumber:   row.FlightNumber,
		Airline:        row.Airline,
		OriginID:       row.OriginID,
		DestinationID:  row.DestinationID,
		DepartureAt:    row.DepartureAt.UTC(),
		ArrivalAt:      row.ArrivalAt.UTC(),
		Duration:       row.Duration,
		SeatsAvailable: row.SeatsAvailable,
		Prices: model.FlightPrices{
			Economy:  row.PriceEconomy,
			Business: row.PriceBusiness,
			First:    row.PriceFirst,
		},
		Active:       row.Active,
		CabinBaggage: row.CabinBaggage,
		HoldBaggage:  row.HoldBaggage,
		MealIncluded: row.MealIncluded,
		WiFi:         row.WiFi,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
	}
}
