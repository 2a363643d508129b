package derive

// Column selections used by the reports. Each list is a load schema for table.Load.
var (
	CountColumns = []string{
		"octetDeltaCount", "packetDeltaCount",
		"initiatorOctets", "initiatorPackets",
		"tcpSequenceCount", "tcpSequenceLossCount",
	}
	RTTColumns = []string{"meanTcpRttMilliseconds", "minTcpRttMilliseconds"}
	RtxColumns = []string{"tcpRetransmitCount", "tcpRtxBurstCount"}

	ReverseCountColumns = []string{
		"reverseOctetDeltaCount", "reversePacketDeltaCount",
		"responderOctets", "responderPackets",
		"reverseTcpSequenceCount", "reverseTcpSequenceLossCount",
	}
	ReverseRTTColumns = []string{"reverseMeanTcpRttMilliseconds", "reverseMinTcpRttMilliseconds"}
	ReverseRtxColumns = []string{"reverseTcpRetransmitCount", "reverseTcpRtxBurstCount"}
)

// TCPOptionsColumns is the schema of the TCP options report.
var TCPOptionsColumns = []string{
	ColInitialFlags, ColReverseInitialFlags,
	"unionTCPFlags", "reverseUnionTCPFlags",
	ColCharacteristics, ColReverseCharacteristics,
	"tcpSequenceLossCount", "reverseTcpSequenceLossCount",
	"packetDeltaCount", "reversePacketDeltaCount",
	"sourceIPv4Address", "destinationIPv4Address",
	"flowEndReason",
}

// ObsLossColumns is the schema of the observation loss report.
var ObsLossColumns = []string{
	ColFlowStart, ColFlowEnd,
	"packetDeltaCount", "reversePacketDeltaCount",
	"transportPacketDeltaCount", "reverseTransportPacketDeltaCount",
	"octetDeltaCount", "reverseOctetDeltaCount",
	"transportOctetDeltaCount", "reverseTransportOctetDeltaCount",
	"tcpSequenceCount", "reverseTcpSequenceCount",
	"tcpSequenceLossCount", "reverseTcpSequenceLossCount",
}

// RTTSpectrumColumns is the schema of the RTT spectrum plots.
var RTTSpectrumColumns = []string{
	"sourceIPv4Address", "destinationIPv4Address",
	"minTcpRttMilliseconds", "tcpRttSampleCount",
	"transportPacketDeltaCount", "reverseTransportPacketDeltaCount",
}

// RateColumns is the schema of the throughput series.
func RateColumns(uniflow, sequence, obsloss bool) []string {
	cols := []string{
		ColFlowStart, ColFlowEnd,
		"packetDeltaCount", "transportPacketDeltaCount",
		"octetDeltaCount", "transportOctetDeltaCount",
	}
	if !uniflow {
		cols = append(cols,
			"reversePacketDeltaCount", "reverseTransportPacketDeltaCount",
			"reverseOctetDeltaCount", "reverseTransportOctetDeltaCount")
	}
	if sequence {
		cols = append(cols, "tcpSequenceCount")
		if !uniflow {
			cols = append(cols, "reverseTcpSequenceCount")
		}
	}
	if obsloss {
		cols = append(cols, "tcpSequenceLossCount")
		if !uniflow {
			cols = append(cols, "reverseTcpSequenceLossCount")
		}
	}
	return cols
}
