package service

import (
	"math"

	"github.com/achtaA-a/projet-de-fin/internal/model"
)

// classMultipliers are the fare factors applied to the destination base price.
var classMultipliers = map[model.TravelClass]float64{
	model.ClassEconomy:  1.0,
	model.ClassBusiness: 1.5,
	model.ClassFirst:    2.0,
}

// ClassMultiplier returns the fare factor of class, or 1 for an unknown class.
func ClassMultiplier(class model.TravelClass) float64 {
	if m, ok := classMultipliers[class]; ok {
		return m
	}
	return 1.0
}

// Price computes base * passengers * class multiplier, rounded to cents.
func Price(base float64, passengers int, class model.TravelClass) float64 {
	return roundCents(base * float64(passengers) * ClassMultiplier(class))
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
