// Package score turns matched peaks into ranked, scored library candidates.
package score

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/ChrisMcGann/DIMA/pkg/core"
	"github.com/ChrisMcGann/DIMA/pkg/match"
)

// ErrDegenerateVector is returned when cosine similarity is undefined for the inputs.
var ErrDegenerateVector = errors.New("degenerate intensity vector")

// IonCountPrecision is the number of decimals kept for the summed query intensity.
const IonCountPrecision = 3

// maccHalfSaturation is the matched-peak count at which the MACC count factor reaches 0.5.
const maccHalfSaturation = 2.0

// Cosine returns the cosine similarity of two equal-length, non-zero vectors.
func Cosine(a, b []float64) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("%w: empty vector", ErrDegenerateVector)
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: lengths differ (%d != %d)", ErrDegenerateVector, len(a), len(b))
	}

	dot, aNorm, bNorm := 0.0, 0.0, 0.0
	for i := range a {
		dot += a[i] * b[i]
		aNorm += a[i] * a[i]
		bNorm += b[i] * b[i]
	}

	if aNorm == 0 || bNorm == 0 {
		return 0, fmt.Errorf("%w: zero norm", ErrDegenerateVector)
	}

	sim := dot / (math.Sqrt(aNorm) * math.Sqrt(bNorm))
	if math.IsNaN(sim) || math.IsInf(sim, 0) {
		return 0, fmt.Errorf("%w: non-finite similarity", ErrDegenerateVector)
	}
	return math.Max(-1, math.Min(1, sim)), nil
}

// GroupByTarget splits matches by target label. Groups appear in the order their
// label is first seen and keep the input order within each group.
func GroupByTarget(matches []core.MatchedPeak) [][]core.MatchedPeak {
	index := make(map[string]int)
	var groups [][]core.MatchedPeak
	for _, m := range matches {
		i, ok := index[m.TargetLabel]
		if !ok {
			i = len(groups)
			index[m.TargetLabel] = i
			groups = append(groups, nil)
		}
		groups[i] = append(groups[i], m)
	}
	return groups
}

type peakKey struct {
	mz, intensity float64
	label         string
}

// OneToOne drops pairs that reuse a query peak or a target peak already paired
// earlier in the group.
func OneToOne(group []core.MatchedPeak) []core.MatchedPeak {
	usedQuery := make(map[peakKey]bool, len(group))
	usedTarget := make(map[peakKey]bool, len(group))
	out := make([]core.MatchedPeak, 0, len(group))
	for _, m := range group {
		q := peakKey{m.QueryMZ, m.QueryIntensity, m.QueryLabel}
		t := peakKey{m.TargetMZ, m.TargetIntensity, m.TargetLabel}
		if usedQuery[q] || usedTarget[t] {
			continue
		}
		usedQuery[q] = true
		usedTarget[t] = true
		out = append(out, m)
	}
	return out
}

// Candidates groups matches by candidate, keeps one-to-one pairs, drops groups
// with fewer than minMatched pairs and scores the rest. Groups whose cosine is
// undefined are left out.
func Candidates(matches []core.MatchedPeak, minMatched int) []core.Candidate {
	var out []core.Candidate
	for _, group := range GroupByTarget(matches) {
		pairs := OneToOne(group)
		if len(pairs) < minMatched {
			continue
		}

		q := make([]float64, len(pairs))
		t := make([]float64, len(pairs))
		for i, p := range pairs {
			q[i] = p.QueryIntensity
			t[i] = p.TargetIntensity
		}

		cos, err := Cosine(q, t)
		if err != nil {
			continue
		}
		out = append(out, core.Candidate{
			Label:   pairs[0].TargetLabel,
			Cosine:  cos,
			Matches: pairs,
		})
	}
	return out
}

// Best returns the top candidate: highest cosine, then most matched peaks,
// then lowest candidate index.
func Best(cands []core.Candidate) (core.Candidate, bool) {
	if len(cands) == 0 {
		return core.Candidate{}, false
	}
	ranked := append([]core.Candidate(nil), cands...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[j], ranked[i])
	})
	return ranked[0], true
}

// less reports whether a ranks below b.
func less(a, b core.Candidate) bool {
	if a.Cosine != b.Cosine {
		return a.Cosine < b.Cosine
	}
	if a.MatchedCount() != b.MatchedCount() {
		return a.MatchedCount() < b.MatchedCount()
	}
	ai, aok := match.CandidateIndex(a.Label)
	bi, bok := match.CandidateIndex(b.Label)
	if aok && bok {
		return ai > bi
	}
	return a.Label > b.Label
}

// Score selects the best candidate for one scan's matched peaks.
func Score(matches []core.MatchedPeak, minMatched int) (core.Candidate, bool) {
	if len(matches) == 0 {
		return core.Candidate{}, false
	}
	return Best(Candidates(matches, minMatched))
}

// MACC combines matched-peak count and cosine into a confidence in [0, 100).
// It grows with both inputs: cosine scales the score linearly and the count
// factor n/(n+2) saturates towards 1.
func MACC(matched int, cosine float64) float64 {
	if matched <= 0 || cosine <= 0 {
		return 0
	}
	n := float64(matched)
	return 100 * math.Min(cosine, 1) * n / (n + maccHalfSaturation)
}

// IonCount sums the query intensities of a candidate's matches.
func IonCount(c core.Candidate) float64 {
	sum := 0.0
	for _, m := range c.Matches {
		sum += m.QueryIntensity
	}
	return core.RoundFloat(sum, IonCountPrecision)
}
