package service_test

import (
	"testing"

	"github.com/achtaA-a/projet-de-fin/internal/model"
	"github.com/achtaA-a/projet-de-fin/internal/service"
)

func TestPrice(t *testing.T) {
	tests := []struct {
		base       float64
		passengers int
		class      model.TravelClass
		want       float64
	}{
		{100, 2, model.ClassEconomy, 200},
		{100, 2, model.ClassBusiness, 300},
		{100, 2, model.ClassFirst, 400},
		{250.5, 1, model.ClassBusiness, 375.75},
		{99.99, 3, model.ClassFirst, 599.94},
		{33.333, 1, model.ClassEconomy, 33.33},
		{0, 4, model.ClassFirst, 0},
	}
	for _, tt := range tests {
		got := service.Price(tt.base, tt.passengers, tt.class)
		if got != tt.want {
			t.Errorf("Price(%v, %d, %s) = %v, want %v", tt.base, tt.passengers, tt.class, got, tt.want)
		}
	}
}
