// Package calibration converts spot signals into percentages using spots of
// known composition on the same plate.
package calibration

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ErrSingularFit is returned when the reference spots do not determine a
// line, for example when every reference has the same signal.
var ErrSingularFit = errors.New("reference fit is singular")

// Model maps an integrated signal linearly onto a percentage.
type Model struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// Fit regresses the reference percentages on the signals of the same spots by
// ordinary least squares. Every reference id must have a signal and at least
// two references are needed.
func Fit(signals, references map[int]float64) (Model, error) {
	if len(references) < 2 {
		return Model{}, fmt.Errorf("need at least 2 references, got %d", len(references))
	}

	ids := make([]int, 0, len(references))
	for id := range references {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	xs := make([]float64, len(ids))
	ys := make([]float64, len(ids))
	for i, id := range ids {
		s, ok := signals[id]
		if !ok {
			return Model{}, fmt.Errorf("reference spot %d has no signal", id)
		}
		xs[i], ys[i] = s, references[id]
	}

	if v := stat.Variance(xs, nil); v == 0 || math.IsNaN(v) {
		return Model{}, fmt.Errorf("%w: reference signals do not vary", ErrSingularFit)
	}

	intercept, slope := stat.LinearRegression(xs, ys, nil, false)
	if math.IsNaN(slope) || math.IsInf(slope, 0) || math.IsNaN(intercept) || math.IsInf(intercept, 0) {
		return Model{}, fmt.Errorf("%w: non-finite parameters", ErrSingularFit)
	}
	return Model{Slope: slope, Intercept: intercept}, nil
}

// Percent returns the percentage predicted for one signal.
func (m Model) Percent(signal float64) float64 {
	return m.Intercept + m.Slope*signal
}

// Evaluate predicts a percentage for every spot, references included.
func (m Model) Evaluate(signals map[int]float64) map[int]float64 {
	out := make(map[int]float64, len(signals))
	for id, s := range signals {
		out[id] = m.Percent(s)
	}
	return out
}
