// Package derive adds computed columns to flow tables. A deriver whose input
// columns are absent leaves the table untouched and reports false.
package derive

import (
	"net/netip"
	"strconv"
	"strings"
	"time"

	"github.com/google/gopacket/layers"

	"FlowSpectra/internal/table"
)

const (
	ColFlowStart = "flowStartMilliseconds"
	ColFlowEnd   = "flowEndMilliseconds"
	ColDuration  = "duration"
	ColProtocol  = "protocolIdentifier"

	ColInitialFlags           = "initialTCPFlags"
	ColReverseInitialFlags    = "reverseInitialTCPFlags"
	ColCharacteristics        = "qofTcpCharacteristics"
	ColReverseCharacteristics = "reverseQofTcpCharacteristics"
)

// FlagColumns are the TCP flag columns FlagStrings renders.
var FlagColumns = []string{
	"tcpControlBits",
	ColInitialFlags, ColReverseInitialFlags,
	"unionTCPFlags", "reverseUnionTCPFlags",
	"lastSynTcpFlags", "reverseLastSynTcpFlags",
}

// CharacteristicColumns are the QoF characteristics columns CharacteristicStrings renders.
var CharacteristicColumns = []string{ColCharacteristics, ColReverseCharacteristics}

// Options controls the network prefix lengths used by Network.
type Options struct {
	IPv4PrefixLen int
	IPv6PrefixLen int
}

// DefaultOptions aggregates IPv4 addresses to /16 and IPv6 to /64.
var DefaultOptions = Options{IPv4PrefixLen: 16, IPv6PrefixLen: 64}

// Apply runs every deriver on t and returns the names of the columns added.
func Apply(t *table.Table, opts Options) []string {
	before := len(t.Columns())
	Duration(t)
	Networks(t, opts)
	FlagStrings(t)
	CharacteristicStrings(t)
	ProtocolName(t)
	return t.Columns()[before:]
}

// Duration adds duration = flowEnd - flowStart in seconds.
func Duration(t *table.Table) bool {
	start, ok1 := t.Column(ColFlowStart)
	end, ok2 := t.Column(ColFlowEnd)
	if !ok1 || !ok2 {
		return false
	}
	out := make([]any, len(start))
	for i := range start {
		out[i] = seconds(start[i], end[i])
	}
	_ = t.SetColumn(ColDuration, out)
	return true
}

func seconds(start, end any) any {
	if s, ok := start.(time.Time); ok {
		if e, ok := end.(time.Time); ok {
			return e.Sub(s).Seconds()
		}
		return nil
	}
	// raw millisecond counters
	s, ok1 := table.Float(start)
	e, ok2 := table.Float(end)
	if !ok1 || !ok2 {
		return nil
	}
	return (e - s) / 1000
}

// NetworkColumn returns the name of the network column derived from an address column.
func NetworkColumn(col string) string {
	return strings.TrimSuffix(col, "Address") + "Network"
}

// Network adds the containing network of each address in col. Host bits are
// masked off rather than rejected.
func Network(t *table.Table, col string, opts Options) bool {
	addrs, ok := t.Column(col)
	if !ok || !strings.HasSuffix(col, "Address") {
		return false
	}
	out := make([]any, len(addrs))
	for i, v := range addrs {
		a, ok := v.(netip.Addr)
		if !ok {
			continue
		}
		a = a.Unmap()
		bits := opts.IPv6PrefixLen
		if a.Is4() {
			bits = opts.IPv4PrefixLen
		}
		if p, err := a.Prefix(bits); err == nil {
			out[i] = p
		}
	}
	_ = t.SetColumn(NetworkColumn(col), out)
	return true
}

// Networks applies Network to every address column of t.
func Networks(t *table.Table, opts Options) int {
	n := 0
	for _, col := range t.Columns() {
		if !isAddressColumn(t, col) {
			continue
		}
		if Network(t, col, opts) {
			n++
		}
	}
	return n
}

func isAddressColumn(t *table.Table, col string) bool {
	if !strings.HasSuffix(col, "Address") {
		return false
	}
	vals, _ := t.Column(col)
	for _, v := range vals {
		if v == nil {
			continue
		}
		_, ok := v.(netip.Addr)
		return ok
	}
	return false
}

func maskColumn(t *table.Table, col string, render func(uint64) string) bool {
	vals, ok := t.Column(col)
	if !ok {
		return false
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		if m, ok := table.Uint(v); ok {
			out[i] = render(m)
		}
	}
	_ = t.SetColumn(col+"String", out)
	return true
}

// FlagStringColumn adds <col>String rendering the TCP flags in col.
func FlagStringColumn(t *table.Table, col string) bool {
	return maskColumn(t, col, FlagString)
}

// FlagStrings renders every present TCP flag column.
func FlagStrings(t *table.Table) int {
	n := 0
	for _, col := range FlagColumns {
		if FlagStringColumn(t, col) {
			n++
		}
	}
	return n
}

// CharacteristicStringColumn adds <col>String rendering the QoF characteristics in col.
func CharacteristicStringColumn(t *table.Table, col string) bool {
	return maskColumn(t, col, CharacteristicString)
}

// CharacteristicStrings renders every present characteristics column.
func CharacteristicStrings(t *table.Table) int {
	n := 0
	for _, col := range CharacteristicColumns {
		if CharacteristicStringColumn(t, col) {
			n++
		}
	}
	return n
}

// ProtocolName adds protocolName from protocolIdentifier.
func ProtocolName(t *table.Table) bool {
	vals, ok := t.Column(ColProtocol)
	if !ok {
		return false
	}
	out := make([]any, len(vals))
	for i, v := range vals {
		p, ok := table.Uint(v)
		if !ok || p > 255 {
			continue
		}
		name := layers.IPProtocol(p).String()
		if strings.HasPrefix(name, "Unknown") {
			name = strconv.FormatUint(p, 10)
		}
		out[i] = name
	}
	_ = t.SetColumn("protocolName", out)
	return true
}

func maskSeries(t *table.Table, col string) ([]uint64, bool) {
	vals, ok := t.Column(col)
	if !ok {
		return nil, false
	}
	out := make([]uint64, len(vals))
	for i, v := range vals {
		out[i], _ = table.Uint(v)
	}
	return out, true
}

// Characteristic reports, per row, whether flag is set in the forward or the
// reverse characteristics.
func Characteristic(t *table.Table, flag uint64) ([]bool, bool) {
	fwd, ok1 := maskSeries(t, ColCharacteristics)
	rev, ok2 := maskSeries(t, ColReverseCharacteristics)
	if !ok1 || !ok2 {
		return nil, false
	}
	out := make([]bool, len(fwd))
	for i := range fwd {
		out[i] = fwd[i]&flag == flag || rev[i]&flag == flag
	}
	return out, true
}

// CharacteristicDirections is Characteristic split by direction.
func CharacteristicDirections(t *table.Table, flag uint64) (fwd, rev []bool, ok bool) {
	f, ok1 := maskSeries(t, ColCharacteristics)
	r, ok2 := maskSeries(t, ColReverseCharacteristics)
	if !ok1 || !ok2 {
		return nil, nil, false
	}
	fwd = make([]bool, len(f))
	rev = make([]bool, len(r))
	for i := range f {
		fwd[i] = f[i]&flag == flag
		rev[i] = r[i]&flag == flag
	}
	return fwd, rev, true
}

// ECNNegotiated reports, per row, whether the handshake negotiated ECN: the
// initiator's SYN carried ECE and CWR without ACK, and the responder's SYN+ACK carried ECE.
func ECNNegotiated(t *table.Table) ([]bool, bool) {
	fwd, ok1 := maskSeries(t, ColInitialFlags)
	rev, ok2 := maskSeries(t, ColReverseInitialFlags)
	if !ok1 || !ok2 {
		return nil, false
	}
	const (
		ecnSyn  = TCPSyn | TCPEce | TCPCwr
		ecnAck  = TCPSyn | TCPAck | TCPEce
		ecnMask = ecnSyn | ecnAck
	)
	out := make([]bool, len(fwd))
	for i := range fwd {
		out[i] = fwd[i]&ecnMask == ecnSyn && rev[i]&ecnAck == ecnAck
	}
	return out, true
}
