// Package filter removes low-quality flows from a table in place.
package filter

import (
	"FlowSpectra/internal/derive"
	"FlowSpectra/internal/table"
)

const (
	ColSequenceLoss        = "tcpSequenceLossCount"
	ColReverseSequenceLoss = "reverseTcpSequenceLossCount"
	ColEndReason           = "flowEndReason"
)

// Lossy reports, per row, whether the meter lost sequence space in either
// direction. ok is false when the loss columns are absent.
func Lossy(t *table.Table) (lossy []bool, ok bool) {
	fwd, ok1 := t.Column(ColSequenceLoss)
	rev, ok2 := t.Column(ColReverseSequenceLoss)
	if !ok1 || !ok2 {
		return nil, false
	}
	lossy = make([]bool, len(fwd))
	for i := range fwd {
		f, _ := table.Uint(fwd[i])
		r, _ := table.Uint(rev[i])
		lossy[i] = f+r > 0
	}
	return lossy, true
}

// DropLossy removes flows with observation loss and returns how many were removed.
func DropLossy(t *table.Table) int {
	lossy, ok := Lossy(t)
	if !ok {
		return 0
	}
	return t.Filter(func(r int) bool { return !lossy[r] })
}

// Complete reports, per row, whether the flow saw a SYN in both directions and
// ended by FIN.
func Complete(t *table.Table) ([]bool, bool) {
	fwd, ok1 := t.Column(derive.ColInitialFlags)
	rev, ok2 := t.Column(derive.ColReverseInitialFlags)
	end, ok3 := t.Column(ColEndReason)
	if !ok1 || !ok2 || !ok3 {
		return nil, false
	}
	out := make([]bool, len(fwd))
	for i := range fwd {
		f, _ := table.Uint(fwd[i])
		r, _ := table.Uint(rev[i])
		e, _ := table.Uint(end[i])
		out[i] = f&derive.TCPSyn != 0 && r&derive.TCPSyn != 0 && e == derive.EndReasonClosed
	}
	return out, true
}

// DropIncomplete keeps only complete flows and returns how many were removed.
func DropIncomplete(t *table.Table) int {
	complete, ok := Complete(t)
	if !ok {
		return 0
	}
	return t.Filter(func(r int) bool { return complete[r] })
}
