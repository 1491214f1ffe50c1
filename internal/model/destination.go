package model

// DestinationSnapshot is the copy of destination display fields embedded
// in a reservation when it is booked.  It is never refreshed afterwards:
// reservations show the name and price as they were at booking time.
type DestinationSnapshot struct {
	ID             string  `json:"id" bson:"id"`
	Name           string  `json:"name" bson:"name"`
	Code           string  `json:"code" bson:"code"`
	Country        string  `json:"country" bson:"country"`
	City           string  `json:"city" bson:"city"`
	Price          float64 `json:"price" bson:"price"`
	FlightDuration string  `json:"flightDuration,omitempty" bson:"flightDuration,omitempty"`
	Image          string  `json:"image,omitempty" bson:"image,omitempty"`
	AirportCode    string  `json:"airportCode,omitempty" bson:"airportCode,omitempty"`
	Active         bool    `json:"active" bson:"active"`
}

// DisplayName returns "City, Country (CODE)".
func (d DestinationSnapshot) DisplayName() string {
	return d.City + ", " + d.Country + " (" + d.Code + ")"
}
