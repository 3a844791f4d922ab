package core

import (
	"strconv"
)

// MatchedPeak pairs a query peak with the library peak it was matched to.
type MatchedPeak struct {
	QueryMZ         float64
	QueryIntensity  float64
	QueryLabel      string
	TargetMZ        float64
	TargetIntensity float64
	TargetLabel     string // Candidate grouping key
}

// Candidate is a library spectrum that survived scoring for one scan.
type Candidate struct {
	Label   string
	Cosine  float64
	Matches []MatchedPeak
}

// MatchedCount returns the number of one-to-one matched peaks.
func (c Candidate) MatchedCount() int {
	return len(c.Matches)
}

// Result is the best identification for one query scan.
type Result struct {
	ScanID              int
	PrecursorMZ         float64
	CompensationVoltage *float64
	CosineScore         float64
	IonCount            float64
	Compound            string
	CompoundMZ          string
	Adduct              string
	Formula             string
	MACCScore           float64
	MatchedPeaks        int
}

// Result set column names, in output order.
const (
	ColPrecursorMZ         = "PrecursorMZ"
	ColCompensationVoltage = "Compensation Voltage"
	ColCosineScore         = "Cosine_score"
	ColIonCount            = "Ion_count"
	ColScan                = "Scan"
	ColCompound            = "Compound"
	ColCompoundMZ          = "CompoundMZ"
	ColAdduct              = "Adduct"
	ColFormula             = "Formula"
	ColMACCScore           = "Macc_score"
	ColMatchedPeaks        = "Matched_peaks"
)

var resultColumns = []string{
	ColPrecursorMZ,
	ColCompensationVoltage,
	ColCosineScore,
	ColIonCount,
	ColScan,
	ColCompound,
	ColCompoundMZ,
	ColAdduct,
	ColFormula,
	ColMACCScore,
	ColMatchedPeaks,
}

// ResultSet is the tabular output of a run, one record per identified scan,
// ordered by scan id.
type ResultSet struct {
	Records []Result
}

// Columns returns the column names of the result table.
func (rs *ResultSet) Columns() []string {
	return append([]string(nil), resultColumns...)
}

// Len returns the number of records.
func (rs *ResultSet) Len() int {
	if rs == nil {
		return 0
	}
	return len(rs.Records)
}

// Rows renders every record as strings in Columns() order.
func (rs *ResultSet) Rows() [][]string {
	if rs == nil {
		return nil
	}
	rows := make([][]string, 0, rs.Len())
	for _, r := range rs.Records {
		rows = append(rows, r.Row())
	}
	return rows
}

// Row renders the record in Columns() order.
func (r Result) Row() []string {
	cv := ""
	if r.CompensationVoltage != nil {
		cv = formatFloat(*r.CompensationVoltage)
	}
	return []string{
		formatFloat(r.PrecursorMZ),
		cv,
		formatFloat(r.CosineScore),
		formatFloat(r.IonCount),
		strconv.Itoa(r.ScanID),
		r.Compound,
		r.CompoundMZ,
		r.Adduct,
		r.Formula,
		formatFloat(r.MACCScore),
		strconv.Itoa(r.MatchedPeaks),
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
