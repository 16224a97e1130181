// Package calc holds the pure arithmetic behind distances, body metrics and
// daily nutrition progress.
package calc

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusKm is the mean Earth radius used by Haversine.
const EarthRadiusKm = 6371.0

// ErrInvalidMeasurement is returned for non-positive body measurements.
var ErrInvalidMeasurement = errors.New("measurement must be positive")

// LatLng is a WGS84 coordinate in decimal degrees.
type LatLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Haversine returns the great-circle distance between a and b in kilometres.
func Haversine(a, b LatLng) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLng := toRadians(b.Lng - a.Lng)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// FormatDistance renders km for display: metres below 1 km, one decimal below
// 10 km and whole kilometres beyond. The unit is chosen after rounding.
func FormatDistance(km float64) string {
	if metres := math.Round(km * 1000); metres < 1000 {
		return fmt.Sprintf("%d m", int(metres))
	}
	if tenths := Round(km, 1); tenths < 10 {
		return fmt.Sprintf("%.1f km", tenths)
	}
	return fmt.Sprintf("%d km", int(math.Round(km)))
}

// Round rounds v to the given number of decimal places.
func Round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}

// BMI computes body-mass index rounded to one decimal.
func BMI(weightKg, heightCm float64) (float64, error) {
	if weightKg <= 0 || heightCm <= 0 {
		return 0, ErrInvalidMeasurement
	}
	m := heightCm / 100
	return Round(weightKg/(m*m), 1), nil
}

// BMI categories.
const (
	BMIUnderweight = "underweight"
	BMINormal      = "normal"
	BMIOverweight  = "overweight"
	BMIObese       = "obese"
)

// BMICategory classifies a BMI value.
func BMICategory(bmi float64) string {
	switch {
	case bmi < 18.5:
		return BMIUnderweight
	case bmi < 25:
		return BMINormal
	case bmi < 30:
		return BMIOverweight
	default:
		return BMIObese
	}
}

// PercentOfTarget returns value as a percentage of target clamped to [0, 100].
// A non-positive target yields 0.
func PercentOfTarget(value, target float64) float64 {
	if target <= 0 {
		return 0
	}
	pct := value / target * 100
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// NetCalories is consumed minus burned; the result may be negative.
func NetCalories(consumed, burned float64) float64 {
	return consumed - burned
}

// Ring is one progress ring of the daily summary.
type Ring struct {
	Value  float64
	Target float64
	Weight float64
}

// ProgressRings returns the weighted mean of each ring's clamped percentage.
// Zero weights count as 1.
func ProgressRings(rings []Ring) float64 {
	if len(rings) == 0 {
		return 0
	}
	var sum, weights float64
	for _, r := range rings {
		w := r.Weight
		if w <= 0 {
			w = 1
		}
		sum += PercentOfTarget(r.Value, r.Target) * w
		weights += w
	}
	return sum / weights
}

// CaloriesBurned applies the MET formula: kcal = MET * kg * hours.
func CaloriesBurned(met, weightKg, minutes float64) float64 {
	if met <= 0 || weightKg <= 0 || minutes <= 0 {
		return 0
	}
	return met * weightKg * minutes / 60
}
