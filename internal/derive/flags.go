package derive

import "strings"

// TCP control bits as carried in initialTCPFlags and unionTCPFlags.
const (
	TCPFin uint64 = 0x01
	TCPSyn uint64 = 0x02
	TCPRst uint64 = 0x04
	TCPPsh uint64 = 0x08
	TCPAck uint64 = 0x10
	TCPUrg uint64 = 0x20
	TCPEce uint64 = 0x40
	TCPCwr uint64 = 0x80
)

// QoF TCP characteristics bits as carried in qofTcpCharacteristics.
// Bits at and above 0x100 describe the last SYN and have no code.
const (
	QofECT0 uint64 = 0x01
	QofECT1 uint64 = 0x02
	QofCE   uint64 = 0x04
	QofTS   uint64 = 0x10
	QofSACK uint64 = 0x20
	QofWS   uint64 = 0x40
)

// EndReasonClosed is the flowEndReason of a flow ended by FIN.
const EndReasonClosed uint64 = 3

type bitCode struct {
	bit  uint64
	code string
}

// most significant named bit first
var tcpFlagCodes = []bitCode{
	{TCPCwr, "C"},
	{TCPEce, "E"},
	{TCPUrg, "U"},
	{TCPAck, "A"},
	{TCPPsh, "P"},
	{TCPRst, "R"},
	{TCPSyn, "S"},
	{TCPFin, "F"},
}

var characteristicCodes = []bitCode{
	{QofWS, "W"},
	{QofSACK, "S"},
	{QofTS, "T"},
	{QofCE, "CE"},
	{QofECT1, "E1"},
	{QofECT0, "E0"},
}

func maskString(mask uint64, codes []bitCode) string {
	var b strings.Builder
	for _, c := range codes {
		if mask&c.bit != 0 {
			b.WriteString(c.code)
		}
	}
	return b.String()
}

// FlagString renders a TCP flags mask, e.g. 0x12 -> "AS".
func FlagString(mask uint64) string {
	return maskString(mask, tcpFlagCodes)
}

// CharacteristicString renders a QoF characteristics mask, e.g. 0x51 -> "WTE0".
func CharacteristicString(mask uint64) string {
	return maskString(mask, characteristicCodes)
}
