// Package search drives precursor filtering, peak matching and scoring over a
// range of query scans and collects one best identification per scan.
package search

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/ChrisMcGann/DIMA/pkg/core"
	"github.com/ChrisMcGann/DIMA/pkg/match"
	"github.com/ChrisMcGann/DIMA/pkg/score"
)

var (
	// ErrInvalidConfig means a matching parameter is out of range.
	ErrInvalidConfig = errors.New("invalid search configuration")
	// ErrEmptyLibrary means the library holds no usable records.
	ErrEmptyLibrary = errors.New("library has no usable spectra")
	// ErrInvalidScanRange means the requested scan range is not a valid half-open range.
	ErrInvalidScanRange = errors.New("invalid scan range")
)

// Scan is one query acquisition as seen by the matcher.
type Scan struct {
	Index               int
	PrecursorMZ         float64
	CompensationVoltage *float64
	Peaks               []core.Peak
}

// ScanSource gives read access to query scans by index. Implementations must be
// safe for concurrent use when Params.Workers > 1.
type ScanSource interface {
	Scan(index int) (Scan, error)
}

// Params are the matching parameters of a run.
type Params struct {
	PPMTolerance    float64
	PrecursorWindow float64
	MinMatchedPeaks int
	Workers         int
}

// Validate reports parameters that make a run meaningless.
func (p Params) Validate() error {
	var errs []string
	if p.PPMTolerance <= 0 {
		errs = append(errs, "ppm tolerance must be positive")
	}
	if p.PrecursorWindow <= 0 {
		errs = append(errs, "precursor window must be positive")
	}
	if p.MinMatchedPeaks < 1 {
		errs = append(errs, "minimum matched peaks must be at least 1")
	}
	if p.Workers < 0 {
		errs = append(errs, "workers must not be negative")
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfig, strings.Join(errs, "; "))
	}
	return nil
}

// Stats counts how the scans of the last Process call ended.
type Stats struct {
	Scanned     int64
	Identified  int64
	NoCandidate int64
	Failed      int64
}

// Processor runs the per-scan pipeline over a library and a scan source.
type Processor struct {
	lib    *core.Library
	src    ScanSource
	params Params
	logger *slog.Logger

	scanned     atomic.Int64
	identified  atomic.Int64
	noCandidate atomic.Int64
	failed      atomic.Int64
}

// NewProcessor validates the configuration and returns a Processor.
// A nil logger uses slog.Default().
func NewProcessor(lib *core.Library, src ScanSource, params Params, logger *slog.Logger) (*Processor, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	if lib.Len() == 0 {
		return nil, ErrEmptyLibrary
	}
	if src == nil {
		return nil, fmt.Errorf("%w: no scan source", ErrInvalidConfig)
	}
	if params.Workers == 0 {
		params.Workers = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Processor{
		lib:    lib,
		src:    src,
		params: params,
		logger: logger,
	}, nil
}

// Process matches scans lo..hi-1 and returns the identified scans ordered by
// scan index. A scan that fails is logged and skipped. Cancelling ctx stops
// new scans from starting; the results collected so far are returned with
// ctx.Err().
func (p *Processor) Process(ctx context.Context, lo, hi int) (*core.ResultSet, error) {
	if lo < 0 || hi < lo {
		return nil, fmt.Errorf("%w: [%d, %d)", ErrInvalidScanRange, lo, hi)
	}
	p.resetStats()

	slots := make([]*core.Result, hi-lo)

	g := new(errgroup.Group)
	g.SetLimit(p.params.Workers)

	var cancelErr error
	for idx := lo; idx < hi; idx++ {
		if err := ctx.Err(); err != nil {
			cancelErr = err
			break
		}
		idx := idx
		g.Go(func() error {
			res, err := p.processScan(idx)
			p.scanned.Add(1)
			switch {
			case err != nil:
				p.failed.Add(1)
				p.logger.Warn("scan failed", slog.Int("scan", idx), slog.String("err", err.Error()))
			case res == nil:
				p.noCandidate.Add(1)
			default:
				p.identified.Add(1)
				slots[idx-lo] = res
			}
			return nil
		})
	}
	_ = g.Wait()

	rs := &core.ResultSet{}
	for _, r := range slots {
		if r != nil {
			rs.Records = append(rs.Records, *r)
		}
	}

	p.logger.Info("scan range processed",
		slog.Int("from", lo),
		slog.Int("to", hi),
		slog.Int64("scanned", p.scanned.Load()),
		slog.Int64("identified", p.identified.Load()),
		slog.Int64("failed", p.failed.Load()))

	return rs, cancelErr
}

// Stats returns the counters of the most recent Process call.
func (p *Processor) Stats() Stats {
	return Stats{
		Scanned:     p.scanned.Load(),
		Identified:  p.identified.Load(),
		NoCandidate: p.noCandidate.Load(),
		Failed:      p.failed.Load(),
	}
}

func (p *Processor) resetStats() {
	p.scanned.Store(0)
	p.identified.Store(0)
	p.noCandidate.Store(0)
	p.failed.Store(0)
}

// processScan returns nil, nil when the scan has no candidate above threshold.
func (p *Processor) processScan(idx int) (res *core.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			res, err = nil, fmt.Errorf("scan %d: panic: %v", idx, r)
		}
	}()

	scan, err := p.src.Scan(idx)
	if err != nil {
		return nil, fmt.Errorf("reading scan %d: %w", idx, err)
	}
	if len(scan.Peaks) == 0 {
		return nil, nil
	}

	candidates := match.FilterPrecursor(scan.PrecursorMZ, p.lib, p.params.PrecursorWindow)
	if len(candidates) == 0 {
		return nil, nil
	}

	matches := match.Match(scan.Peaks, match.Pool(candidates), p.params.PPMTolerance)
	best, ok := score.Score(matches, p.params.MinMatchedPeaks)
	if !ok {
		return nil, nil
	}

	r := &core.Result{
		ScanID:              idx,
		PrecursorMZ:         scan.PrecursorMZ,
		CompensationVoltage: scan.CompensationVoltage,
		CosineScore:         best.Cosine,
		IonCount:            score.IonCount(best),
		MACCScore:           score.MACC(best.MatchedCount(), best.Cosine),
		MatchedPeaks:        best.MatchedCount(),
	}

	if !resolveMetadata(r, best.Label, candidates) {
		p.logger.Warn("could not resolve candidate metadata",
			slog.Int("scan", idx),
			slog.String("label", best.Label))
	}

	return r, nil
}

// resolveMetadata copies compound metadata of the candidate named by label
// into r. It reports false and leaves the fields empty when label does not
// index into candidates.
func resolveMetadata(r *core.Result, label string, candidates []*core.LibrarySpectrum) bool {
	i, ok := match.CandidateIndex(label)
	if !ok || i >= len(candidates) {
		return false
	}

	info := candidates[i]
	r.Compound = info.Get(core.KeyName)
	r.CompoundMZ = info.Get(core.KeyPrecursorMZ)
	r.Adduct = strings.ToUpper(info.Get(core.KeyPrecursorType))
	r.Formula = strings.ToUpper(info.Get(core.KeyFormula))
	return true
}
