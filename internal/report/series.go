package report

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"FlowSpectra/internal/filter"
	"FlowSpectra/internal/table"
)

const (
	ColFlowEnd        = "flowEndMilliseconds"
	ColOctets         = "octetDeltaCount"
	ColReverseOctets  = "reverseOctetDeltaCount"
	ColPackets        = "packetDeltaCount"
	ColReversePackets = "reversePacketDeltaCount"
	binTimeLayout     = "2006-01-02 15:04:05"
)

// RatePoint is the data and packet rate of one time bin.
type RatePoint struct {
	Start time.Time
	BPS   float64
	PPS   float64
}

// LossPoint is the observation loss of one time bin.
type LossPoint struct {
	Start time.Time
	Total int
	Lossy int
}

// Rate returns the lossy share of the bin, 0 for an empty bin.
func (p LossPoint) Rate() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Lossy) / float64(p.Total)
}

// timeOf reads a timestamp cell. Numeric cells are milliseconds since the epoch.
func timeOf(v any) (time.Time, bool) {
	if ts, ok := v.(time.Time); ok {
		return ts, true
	}
	ms, ok := table.Float(v)
	if !ok || math.IsNaN(ms) {
		return time.Time{}, false
	}
	return time.UnixMilli(int64(ms)), true
}

// binner maps timestamps onto contiguous epoch-aligned bins.
type binner struct {
	size        time.Duration
	first, last int64
	seen        bool
}

func (b *binner) index(ts time.Time) int64 {
	i := ts.UnixNano() / int64(b.size)
	if ts.UnixNano() < 0 && ts.UnixNano()%int64(b.size) != 0 {
		i--
	}
	if !b.seen || i < b.first {
		b.first = i
	}
	if !b.seen || i > b.last {
		b.last = i
	}
	b.seen = true
	return i
}

func (b *binner) start(i int64) time.Time {
	return time.Unix(0, i*int64(b.size)).UTC()
}

func (b *binner) count() int {
	if !b.seen {
		return 0
	}
	return int(b.last-b.first) + 1
}

func sumColumns(t *table.Table, row int, cols ...string) float64 {
	var s float64
	for _, c := range cols {
		if v, ok := t.Value(c, row); ok {
			f, _ := table.Float(v)
			s += f
		}
	}
	return s
}

// Throughput resamples flows into bins of the given size by flow end time. Each
// flow adds its octets (times 8) and packets, forward plus reverse where present,
// divided by the bin length. Empty bins between the first and the last are zero.
func Throughput(t *table.Table, bin time.Duration) ([]RatePoint, bool, error) {
	if bin <= 0 {
		return nil, false, fmt.Errorf("bin size must be positive, got %s", bin)
	}
	if !t.Has(ColFlowEnd, ColOctets, ColPackets) {
		return nil, false, nil
	}
	octets := []string{ColOctets}
	if t.Has(ColReverseOctets) {
		octets = append(octets, ColReverseOctets)
	}
	packets := []string{ColPackets}
	if t.Has(ColReversePackets) {
		packets = append(packets, ColReversePackets)
	}

	ends, _ := t.Column(ColFlowEnd)
	b := &binner{size: bin}
	idx := make([]int64, len(ends))
	valid := make([]bool, len(ends))
	for r, v := range ends {
		ts, ok := timeOf(v)
		if !ok {
			continue
		}
		idx[r] = b.index(ts)
		valid[r] = true
	}

	secs := bin.Seconds()
	points := make([]RatePoint, b.count())
	for i := range points {
		points[i].Start = b.start(b.first + int64(i))
	}
	for r := range ends {
		if !valid[r] {
			continue
		}
		p := &points[idx[r]-b.first]
		p.BPS += sumColumns(t, r, octets...) * 8 / secs
		p.PPS += sumColumns(t, r, packets...) / secs
	}
	return points, true, nil
}

// LossSeries counts flows and lossy flows per bin by flow end time.
func LossSeries(t *table.Table, bin time.Duration) ([]LossPoint, bool, error) {
	if bin <= 0 {
		return nil, false, fmt.Errorf("bin size must be positive, got %s", bin)
	}
	lossy, ok := filter.Lossy(t)
	if !ok || !t.Has(ColFlowEnd) {
		return nil, false, nil
	}
	ends, _ := t.Column(ColFlowEnd)
	b := &binner{size: bin}
	idx := make([]int64, len(ends))
	valid := make([]bool, len(ends))
	for r, v := range ends {
		ts, ok := timeOf(v)
		if !ok {
			continue
		}
		idx[r] = b.index(ts)
		valid[r] = true
	}

	points := make([]LossPoint, b.count())
	for i := range points {
		points[i].Start = b.start(b.first + int64(i))
	}
	for r := range ends {
		if !valid[r] {
			continue
		}
		p := &points[idx[r]-b.first]
		p.Total++
		if lossy[r] {
			p.Lossy++
		}
	}
	return points, true, nil
}

// WriteThroughputCSV writes one line per bin: start, bps, pps.
func WriteThroughputCSV(w io.Writer, points []RatePoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{ColFlowEnd, "bps", "pps"}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			p.Start.Format(binTimeLayout),
			strconv.FormatFloat(p.BPS, 'f', -1, 64),
			strconv.FormatFloat(p.PPS, 'f', -1, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteLossCSV writes one line per bin: start, total, lossy, rate.
func WriteLossCSV(w io.Writer, points []LossPoint) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"start", "total", "lossy", "rate"}); err != nil {
		return err
	}
	for _, p := range points {
		rec := []string{
			p.Start.Format(binTimeLayout),
			strconv.Itoa(p.Total),
			strconv.Itoa(p.Lossy),
			strconv.FormatFloat(p.Rate(), 'f', 5, 64),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// LossSummary is the total and lossy flow count of a table.
type LossSummary struct {
	Total int
	Lossy int
}

// SummarizeLoss counts lossy flows. ok is false when the loss columns are absent.
func SummarizeLoss(t *table.Table) (LossSummary, bool) {
	lossy, ok := filter.Lossy(t)
	if !ok {
		return LossSummary{Total: t.Len()}, false
	}
	s := LossSummary{Total: len(lossy)}
	for _, l := range lossy {
		if l {
			s.Lossy++
		}
	}
	return s, true
}

// Add merges the counts of another chunk.
func (s *LossSummary) Add(o LossSummary) {
	s.Total += o.Total
	s.Lossy += o.Lossy
}

func (s LossSummary) String() string {
	if s.Total == 0 {
		return "Total flows:      0\n  of which lossy: not observed"
	}
	return fmt.Sprintf("Total flows:      %d\n  of which lossy: %d %.2f", s.Total, s.Lossy, float64(s.Lossy)*100/float64(s.Total))
}
