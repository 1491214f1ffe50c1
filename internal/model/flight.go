package model

import "time"

// ScheduledFlight is an entry of the flight inventory managed by
// administrators.  Reservations do not decrement SeatsAvailable.
//
// Fields:
//
//	ID                  – catalog primary key.
//	FlightNumber        – unique, upper-cased flight number.
//	Airline             – operating airline.
//	OriginID            – destination id of departure.
//	DestinationID       – destination id of arrival.
//	DepartureAt         – scheduled departure (UTC).
//	ArrivalAt           – scheduled arrival (UTC), after DepartureAt.
//	Duration            – "<h>h <m>m", derived from the two times.
//	SeatsAvailable      – informational seat count.
//	Prices              – per class fare.
//	Active              – whether the flight is offered.
//	Baggage/Meal/WiFi   – onboard information.
type ScheduledFlight struct {
	ID             uint         `json:"id"`
	FlightNumber   string       `json:"flightNumber"`
	Airline        string       `json:"airline"`
	OriginID       string       `json:"originId"`
	DestinationID  string       `json:"destinationId"`
	DepartureAt    time.Time    `json:"departureAt"`
	ArrivalAt      time.Time    `json:"arrivalAt"`
	Duration       string       `json:"duration"`
	SeatsAvailable int          `json:"seatsAvailable"`
	Prices         FlightPrices `json:"prices"`
	Active         bool         `json:"active"`
	CabinBaggage   string       `json:"cabinBaggage"`
	HoldBaggage    string       `json:"holdBaggage"`
	MealIncluded   bool         `json:"mealIncluded"`
	WiFi           bool         `json:"wifi"`
	CreatedAt      time.Time    `json:"createdAt"`
	UpdatedAt      time.Time    `json:"updatedAt"`
}

// FlightPrices lists the fare of each travel class.
type FlightPrices struct {
	Economy  float64 `json:"economy"`
	Business float64 `json:"business"`
	First    float64 `json:"first"`
}

// IsFull reports whether no seat is left.
func (f ScheduledFlight) IsFull() bool {
	return f.SeatsAvailable == 0
}
