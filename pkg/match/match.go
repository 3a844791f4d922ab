// Package match aligns query peaks against library peaks and narrows the
// library to candidates by precursor m/z.
package match

import (
	"math"
	"strconv"

	"github.com/ChrisMcGann/DIMA/pkg/core"
)

// DefaultPrecursorWindow is the absolute precursor window in Da.
const DefaultPrecursorWindow = 0.1

// Tolerance returns the absolute tolerance in m/z units for mz at ppm parts per million.
func Tolerance(mz, ppm float64) float64 {
	return mz * ppm / 1e6
}

// Within reports whether b lies within ppm of a. The tolerance is anchored on a,
// so Within(a, b, ppm) and Within(b, a, ppm) can disagree near the boundary.
func Within(a, b, ppm float64) bool {
	return math.Abs(a-b) <= Tolerance(a, ppm)
}

// Match pairs each query peak with the first target peak, in target order,
// that lies within ppm of the query m/z. Each query peak yields at most one
// pair; query peaks without an in-tolerance target yield none.
func Match(query, target []core.Peak, ppm float64) []core.MatchedPeak {
	var matches []core.MatchedPeak
	for _, q := range query {
		for _, t := range target {
			if !Within(q.MZ, t.MZ, ppm) {
				continue
			}
			matches = append(matches, core.MatchedPeak{
				QueryMZ:         q.MZ,
				QueryIntensity:  q.Intensity,
				QueryLabel:      q.Label,
				TargetMZ:        t.MZ,
				TargetIntensity: t.Intensity,
				TargetLabel:     t.Label,
			})
			break
		}
	}
	return matches
}

// Pool concatenates the peaks of all candidates, labelling each peak with the
// index of its candidate so matches can be grouped back afterwards.
func Pool(candidates []*core.LibrarySpectrum) []core.Peak {
	n := 0
	for _, c := range candidates {
		n += c.NumPeaks()
	}

	pool := make([]core.Peak, 0, n)
	for i, c := range candidates {
		pool = append(pool, c.Peaks(CandidateLabel(i))...)
	}
	return pool
}

// CandidateLabel is the peak label used for the i-th candidate of a pool.
func CandidateLabel(i int) string {
	return strconv.Itoa(i)
}

// CandidateIndex resolves a pool label back to a candidate index.
func CandidateIndex(label string) (int, bool) {
	i, err := strconv.Atoi(label)
	if err != nil || i < 0 {
		return 0, false
	}
	return i, true
}
