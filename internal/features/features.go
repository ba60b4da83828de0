// Package features turns raw census-block measurements into the engineered
// feature vector the housing models are trained on. The 8 raw inputs are
// extended with 3 derived ratios, giving the fixed 11-column layout shared
// by the trainer and every serving path.
package features

import "fmt"

// RawCount is the number of raw input features.
const RawCount = 8

// EngineeredCount is the number of columns after feature engineering.
const EngineeredCount = 11

// RawFeatures describes a single housing block. Field order matters when
// the features arrive as an array: [MedInc, HouseAge, AveRooms, AveBedrms,
// Population, AveOccup, Latitude, Longitude].
type RawFeatures struct {
	MedInc     float64 `json:"MedInc"`
	HouseAge   float64 `json:"HouseAge"`
	AveRooms   float64 `json:"AveRooms"`
	AveBedrms  float64 `json:"AveBedrms"`
	Population float64 `json:"Population"`
	AveOccup   float64 `json:"AveOccup"`
	Latitude   float64 `json:"Latitude"`
	Longitude  float64 `json:"Longitude"`
}

// ErrBadArity is returned when an ordered input does not carry exactly
// RawCount values.
type ErrBadArity struct {
	Got int
}

func (e ErrBadArity) Error() string {
	return fmt.Sprintf("features: expected %d values, got %d", RawCount, e.Got)
}

// FromVector builds RawFeatures from an ordered 8-element slice.
func FromVector(v []float64) (RawFeatures, error) {
	if len(v) != RawCount {
		return RawFeatures{}, ErrBadArity{Got: len(v)}
	}
	return RawFeatures{
		MedInc:     v[0],
		HouseAge:   v[1],
		AveRooms:   v[2],
		AveBedrms:  v[3],
		Population: v[4],
		AveOccup:   v[5],
		Latitude:   v[6],
		Longitude:  v[7],
	}, nil
}

// RawVector returns the 8 raw values in canonical order.
func (r RawFeatures) RawVector() []float64 {
	return []float64{
		r.MedInc, r.HouseAge, r.AveRooms, r.AveBedrms,
		r.Population, r.AveOccup, r.Latitude, r.Longitude,
	}
}

// Vector returns the engineered 11-column vector: the 8 raw values followed
// by rooms_per_household, bedrooms_per_room and population_per_household.
// A zero denominator yields 0 for the affected ratio rather than NaN or Inf;
// the models were trained on data engineered the same way, so inference must
// match.
func (r RawFeatures) Vector() []float64 {
	v := make([]float64, 0, EngineeredCount)
	v = append(v, r.RawVector()...)
	v = append(v,
		safeRatio(r.AveRooms, r.AveOccup),
		safeRatio(r.AveBedrms, r.AveRooms),
		safeRatio(r.Population, r.AveOccup),
	)
	return v
}

// Names returns the engineered column names in vector order.
func Names() []string {
	return []string{
		"MedInc", "HouseAge", "AveRooms", "AveBedrms",
		"Population", "AveOccup", "Latitude", "Longitude",
		"rooms_per_household", "bedrooms_per_room", "population_per_household",
	}
}

func safeRatio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
