package report

import (
	"bytes"
	"fmt"
	"io"

	"FlowSpectra/internal/derive"
	"FlowSpectra/internal/filter"
	"FlowSpectra/internal/table"
)

// TCPOptions writes the ECN and TCP option usage report of t. Lossy and
// incomplete flows are removed from t before the proportions are computed.
func TCPOptions(w io.Writer, t *table.Table) error {
	var b bytes.Buffer
	fmt.Fprintf(&b, "Total flows:         %d\n", t.Len())
	filter.DropLossy(t)
	fmt.Fprintf(&b, "  of which lossless: %d\n", t.Len())
	filter.DropIncomplete(t)
	fmt.Fprintf(&b, "  of which complete: %d\n", t.Len())

	nego, _ := derive.ECNNegotiated(t)
	ect0, _ := derive.Characteristic(t, derive.QofECT0)
	ect1, _ := derive.Characteristic(t, derive.QofECT1)
	ce, _ := derive.Characteristic(t, derive.QofCE)
	_ = Fprintln(&b,
		NewProportion("ECN nego", nego),
		NewProportion("ECT0", ect0),
		NewProportion("ECT1", ect1),
		NewProportion("nego->ECT0", And(nego, ect0)),
		NewProportion("nego->ECT1", And(nego, ect1)),
		NewProportion("CE", ce),
	)
	b.WriteByte('\n')
	_ = Fprintln(&b,
		NewProportion("ECT0+ECT1", And(ect0, ect1)),
		NewProportion("ECT0+CE", And(ce, ect0)),
		NewProportion("ECT1+CE", And(ce, ect1)),
		NewProportion("any ECx", Or(Or(ce, ect0), ect1)),
		NewProportion("all ECx", And(And(ce, ect0), ect1)),
	)
	b.WriteByte('\n')

	options := []struct {
		label string
		flag  uint64
	}{
		{"WS", derive.QofWS},
		{"TS", derive.QofTS},
		{"SACK", derive.QofSACK},
	}
	for _, o := range options {
		s, _ := derive.Characteristic(t, o.flag)
		_ = Fprintln(&b, NewProportion(o.label, s))
	}
	b.WriteByte('\n')

	all, _ := AllSources(t)
	for _, o := range options {
		fwd, rev, _ := derive.CharacteristicDirections(t, o.flag)
		n, _ := SourcesGiven(t, fwd, rev)
		_ = Fprintln(&b, SourceShare{Label: o.label, Verb: "observed from", Count: n, Total: all})
	}
	n, _ := SourcesGiven(t, nego, nego)
	_ = Fprintln(&b, SourceShare{Label: "ECN nego", Verb: "involved", Count: n, Total: all})

	_, err := w.Write(b.Bytes())
	return err
}
