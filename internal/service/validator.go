package service

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// CreateReservationRequest is the booking request as received from the API.
type CreateReservationRequest struct {
	DepartureLocation string           `json:"departureLocation"`
	DestinationID     string           `json:"destinationId"`
	Flight            *FlightInput     `json:"flight"`
	Passengers        []PassengerInput `json:"passengers"`
	TotalPrice        *float64         `json:"totalPrice,omitempty"`
	PaymentMethod     string           `json:"paymentMethod,omitempty"`
	UserID            string           `json:"userId,omitempty"`
}

// FlightInput is the raw flight block.  Dates are RFC 3339 or YYYY-MM-DD.
type FlightInput struct {
	FlightNumber string `json:"flightNumber,omitempty"`
	DepartureAt  string `json:"departureAt"`
	ReturnAt     string `json:"returnAt,omitempty"`
	TravelClass  string `json:"travelClass,omitempty"`
}

// PassengerInput is one raw passenger entry.
type PassengerInput struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	BirthDate      string `json:"birthDate"`
	PassportNumber string `json:"passportNumber"`
	Nationality    string `json:"nationality,omitempty"`
	Phone          string `json:"phone,omitempty"`
	Email          string `json:"email,omitempty"`
}

// ValidatedReservation is a request that passed validation, with every
// field normalized and every date parsed.
type ValidatedReservation struct {
	DepartureLocation string
	DestinationID     string
	Flight            model.Flight
	Passengers        []model.Passenger
	TotalPrice        *float64
	PaymentMethod     model.PaymentMethod
	UserID            string
}

// ReservationPatch lists the fields an administrator may edit.  Nil
// fields are left unchanged; Flight replaces the whole flight block.
type ReservationPatch struct {
	DepartureLocation *string          `json:"departureLocation,omitempty"`
	DestinationID     *string          `json:"destinationId,omitempty"`
	Flight            *FlightInput     `json:"flight,omitempty"`
	Passengers        []PassengerInput `json:"passengers,omitempty"`
	PaymentMethod     *string          `json:"paymentMethod,omitempty"`
	TotalPrice        *float64         `json:"totalPrice,omitempty"`
}

// ValidatedPatch is a ReservationPatch after validation.
type ValidatedPatch struct {
	DepartureLocation *string
	DestinationID     *string
	Flight            *model.Flight
	Passengers        []model.Passenger
	PaymentMethod     *model.PaymentMethod
	TotalPrice        *float64
}

// Validator checks booking requests.  It does no I/O and its zero value
// is ready to use.
type Validator struct{}

type fieldErrors []FieldError

func (fe *fieldErrors) add(field, format string, args ...any) {
	*fe = append(*fe, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate checks req against now and returns either the normalized
// reservation or a validation *Error listing every offending field.
func (Validator) Validate(req CreateReservationRequest, now time.Time) (*ValidatedReservation, error) {
	var errs fieldErrors
	out := &ValidatedReservation{
		DepartureLocation: strings.TrimSpace(req.DepartureLocation),
		DestinationID:     strings.TrimSpace(req.DestinationID),
		UserID:            strings.TrimSpace(req.UserID),
	}

	if out.DepartureLocation == "" {
		errs.add("departureLocation", "is required")
	}
	if out.DestinationID == "" {
		errs.add("destinationId", "is required")
	}
	if req.Flight == nil {
		errs.add("flight", "is required")
	}
	if req.Passengers == nil {
		errs.add("passengers", "is required")
	}

	out.Passengers = validatePassengers(req.Passengers, now, &errs)

	if req.Flight != nil {
		if f, ok := validateFlight(*req.Flight, &errs); ok {
			out.Flight = f
		}
	}

	out.PaymentMethod = model.PaymentMethodUndefined
	if m := strings.TrimSpace(req.PaymentMethod); m != "" {
		pm := model.PaymentMethod(strings.ToLower(m))
		if !pm.IsValid() {
			errs.add("paymentMethod", "must be one of undefined, card, mobile_money, bank_transfer, cash")
		} else {
			out.PaymentMethod = pm
		}
	}

	if req.TotalPrice != nil {
		if validatePrice("totalPrice", *req.TotalPrice, &errs) {
			p := roundCents(*req.TotalPrice)
			out.TotalPrice = &p
		}
	}

	if len(errs) > 0 {
		return nil, validationError(errs)
	}
	return out, nil
}

// ValidatePatch checks the fields present in p.
func (Validator) ValidatePatch(p ReservationPatch, now time.Time) (*ValidatedPatch, error) {
	var errs fieldErrors
	out := &ValidatedPatch{}

	if p.DepartureLocation != nil {
		v := strings.TrimSpace(*p.DepartureLocation)
		if v == "" {
			errs.add("departureLocation", "must not be empty")
		}
		out.DepartureLocation = &v
	}
	if p.DestinationID != nil {
		v := strings.TrimSpace(*p.DestinationID)
		if v == "" {
			errs.add("destinationId", "must not be empty")
		}
		out.DestinationID = &v
	}
	if p.Flight != nil {
		if f, ok := validateFlight(*p.Flight, &errs); ok {
			out.Flight = &f
		}
	}
	if p.Passengers != nil {
		out.Passengers = validatePassengers(p.Passengers, now, &errs)
	}
	if p.PaymentMethod != nil {
		pm := model.PaymentMethod(strings.ToLower(strings.TrimSpace(*p.PaymentMethod)))
		if !pm.IsValid() {
			errs.add("paymentMethod", "must be one of undefined, card, mobile_money, bank_transfer, cash")
		}
		out.PaymentMethod = &pm
	}
	if p.TotalPrice != nil {
		if validatePrice("totalPrice", *p.TotalPrice, &errs) {
			v := roundCents(*p.TotalPrice)
			out.TotalPrice = &v
		}
	}

	if len(errs) > 0 {
		return nil, validationError(errs)
	}
	return out, nil
}

func validatePassengers(in []PassengerInput, now time.Time, errs *fieldErrors) []model.Passenger {
	if in != nil && len(in) == 0 {
		errs.add("passengers", "must contain at least one passenger")
		return nil
	}
	out := make([]model.Passenger, 0, len(in))
	for i, p := range in {
		path := fmt.Sprintf("passengers[%d]", i)
		ps := model.Passenger{
			FirstName:      strings.TrimSpace(p.FirstName),
			LastName:       strings.TrimSpace(p.LastName),
			PassportNumber: strings.ToUpper(strings.TrimSpace(p.PassportNumber)),
			Nationality:    strings.TrimSpace(p.Nationality),
			Phone:          strings.TrimSpace(p.Phone),
			Email:          strings.ToLower(strings.TrimSpace(p.Email)),
		}
		if ps.FirstName == "" {
			errs.add(path+".firstName", "is required")
		}
		if ps.LastName == "" {
			errs.add(path+".lastName", "is required")
		}
		if ps.PassportNumber == "" {
			errs.add(path+".passportNumber", "is required")
		}
		if strings.TrimSpace(p.BirthDate) == "" {
			errs.add(path+".birthDate", "is required")
		} else if bd, err := ParseTime(p.BirthDate); err != nil {
			errs.add(path+".birthDate", "is not a valid date")
		} else if !bd.Before(now) {
			errs.add(path+".birthDate", "must be in the past")
		} else {
			ps.BirthDate = bd
		}
		if ps.Email != "" && !strings.Contains(ps.Email, "@") {
			errs.add(path+".email", "is not a valid e-mail address")
		}
		out = append(out, ps)
	}
	return out
}

func validateFlight(in FlightInput, errs *fieldErrors) (model.Flight, bool) {
	before := len(*errs)
	f := model.Flight{
		FlightNumber: strings.ToUpper(strings.TrimSpace(in.FlightNumber)),
		TravelClass:  model.ClassEconomy,
	}

	if strings.TrimSpace(in.DepartureAt) == "" {
		errs.add("flight.departureAt", "is required")
	} else if dep, err := ParseTime(in.DepartureAt); err != nil {
		errs.add("flight.departureAt", "is not a valid date")
	} else {
		f.DepartureAt = dep
	}

	if strings.TrimSpace(in.ReturnAt) != "" {
		ret, err := ParseTime(in.ReturnAt)
		switch {
		case err != nil:
			errs.add("flight.returnAt", "is not a valid date")
		case !f.DepartureAt.IsZero() && !ret.After(f.DepartureAt):
			errs.add("flight.returnAt", "must be after flight.departureAt")
		default:
			f.ReturnAt = &ret
		}
	}

	if c := strings.TrimSpace(in.TravelClass); c != "" {
		tc := model.TravelClass(strings.ToLower(c))
		if !tc.IsValid() {
			errs.add("flight.travelClass", "must be one of economy, business, first")
		} else {
			f.TravelClass = tc
		}
	}
	return f, len(*errs) == before
}

func validatePrice(field string, v float64, errs *fieldErrors) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		errs.add(field, "must be a finite number")
		return false
	}
	if v < 0 {
		errs.add(field, "must not be negative")
		return false
	}
	return true
}

// ParseTime accepts RFC 3339 timestamps (fractional seconds optional) and
// plain YYYY-MM-DD dates.  The result is UTC with millisecond precision.
func ParseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC().Truncate(time.Millisecond), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized date %q", raw)
}
