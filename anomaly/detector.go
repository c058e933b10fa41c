// Package anomaly flags unusually large invoice amounts.
package anomaly

import "gonum.org/v1/gonum/stat"

// Sigma is the number of standard deviations above the mean that counts as anomalous
const Sigma = 2.0

// Point is one amount to analyse
type Point struct {
	ID     uint    `json:"id"`
	Amount float64 `json:"amount"`
}

// Result describes a detection run
type Result struct {
	Count     int     `json:"count"`
	Mean      float64 `json:"mean"`
	StdDev    float64 `json:"std_dev"`
	Threshold float64 `json:"threshold"`
	Flagged   []uint  `json:"flagged"`
}

// Detect flags points whose amount exceeds mean + 2 sample standard deviations.
// Non-positive amounts are ignored; fewer than two points flag nothing.
func Detect(points []Point) Result {
	valid := make([]Point, 0, len(points))
	for _, p := range points {
		if p.Amount > 0 {
			valid = append(valid, p)
		}
	}

	result := Result{Count: len(valid), Flagged: []uint{}}
	if len(valid) < 2 {
		return result
	}

	amounts := make([]float64, len(valid))
	for i, p := range valid {
		amounts[i] = p.Amount
	}
	mean, stddev := stat.MeanStdDev(amounts, nil)

	result.Mean = mean
	result.StdDev = stddev
	result.Threshold = mean + Sigma*stddev

	for _, p := range valid {
		if p.Amount > result.Threshold {
			result.Flagged = append(result.Flagged, p.ID)
		}
	}
	return result
}
