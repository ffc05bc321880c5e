package offline

import (
	"math"

	"tensortrace/internal/trace"
)

// OutlierKind classifies a heatmap entry's deviation from its peers.
type OutlierKind string

const (
	OutlierHot  OutlierKind = "hot"
	OutlierCold OutlierKind = "cold"
)

// Outlier is one tensor flagged by DetectOutliers.
type Outlier struct {
	Name   string      `json:"name"`
	Kind   OutlierKind `json:"kind"`
	ZScore float64     `json:"z_score"`
	Count  int64       `json:"total_accesses"`
}

// outlierZThreshold is the z-score magnitude beyond which a tensor's
// access count is reported as a hot or cold outlier. Grounded on the
// teacher's pkg/anomaly.Detector statistical-threshold approach,
// narrowed from a multi-metric detector to a single access-count
// z-score over one population.
const outlierZThreshold = 2.0

// DetectOutliers flags tensors whose total access count is a
// statistical outlier against the full heatmap population (spec.md
// §4.11's "hot/cold analysis" goal). Populations smaller than 3
// entries never produce an outlier — a z-score needs a meaningful
// sample to mean anything.
func DetectOutliers(entries []trace.HeatmapEntry) []Outlier {
	if len(entries) < 3 {
		return nil
	}

	var sum, sumSq float64
	for _, e := range entries {
		v := float64(e.TotalAccesses)
		sum += v
		sumSq += v * v
	}
	n := float64(len(entries))
	mean := sum / n
	variance := sumSq/n - mean*mean
	if variance < 0 {
		variance = 0
	}
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return nil
	}

	var outliers []Outlier
	for _, e := range entries {
		z := (float64(e.TotalAccesses) - mean) / stddev
		switch {
		case z >= outlierZThreshold:
			outliers = append(outliers, Outlier{Name: e.Name, Kind: OutlierHot, ZScore: z, Count: e.TotalAccesses})
		case z <= -outlierZThreshold:
			outliers = append(outliers, Outlier{Name: e.Name, Kind: OutlierCold, ZScore: z, Count: e.TotalAccesses})
		}
	}
	return outliers
}
