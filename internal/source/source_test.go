package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"net"
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func quietLogger() logrus.FieldLogger {
	l, _ := test.NewNullLogger()
	return l
}

// buildMessage assembles an IPFIX message from raw set payloads.
func buildMessage(seq uint32, sets ...[]byte) []byte {
	var body bytes.Buffer
	for _, s := range sets {
		body.Write(s)
	}
	var msg bytes.Buffer
	binary.Write(&msg, binary.BigEndian, uint16(10))
	binary.Write(&msg, binary.BigEndian, uint16(16+body.Len()))
	binary.Write(&msg, binary.BigEndian, uint32(1700000000))
	binary.Write(&msg, binary.BigEndian, seq)
	binary.Write(&msg, binary.BigEndian, uint32(0))
	msg.Write(body.Bytes())
	return msg.Bytes()
}

func buildSet(id uint16, payload []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, id)
	binary.Write(&b, binary.BigEndian, uint16(4+len(payload)))
	b.Write(payload)
	return b.Bytes()
}

// templateSet describes octetDeltaCount, sourceIPv4Address, the QoF minimum RTT
// and the RFC 5103 reverse octetDeltaCount.
func templateSet() []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, uint16(256)) // template id
	binary.Write(&b, binary.BigEndian, uint16(4))   // field count
	binary.Write(&b, binary.BigEndian, []uint16{1, 8})
	binary.Write(&b, binary.BigEndian, []uint16{8, 4})
	binary.Write(&b, binary.BigEndian, []uint16{0x8000 | 1029, 4})
	binary.Write(&b, binary.BigEndian, uint32(35566))
	binary.Write(&b, binary.BigEndian, []uint16{0x8000 | 1, 8})
	binary.Write(&b, binary.BigEndian, uint32(29305))
	return buildSet(2, b.Bytes())
}

func dataSet(octets uint64, src string, rtt uint32, revOctets uint64) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.BigEndian, octets)
	b.Write(netip.MustParseAddr(src).AsSlice())
	binary.Write(&b, binary.BigEndian, rtt)
	binary.Write(&b, binary.BigEndian, revOctets)
	return buildSet(256, b.Bytes())
}

func TestReadMessage(t *testing.T) {
	msg := buildMessage(1, dataSet(1, "10.0.0.1", 2, 3))
	r := bytes.NewReader(append(msg, msg...))

	for i := 0; i < 2; i++ {
		got, err := ReadMessage(r)
		if err != nil {
			t.Fatalf("Message %d: unexpected error %v", i, err)
		}
		if !bytes.Equal(got, msg) {
			t.Fatalf("Message %d: framing mismatch", i)
		}
	}
	if _, err := ReadMessage(r); !errors.Is(err, io.EOF) {
		t.Errorf("Expected io.EOF at message boundary, got %v", err)
	}
}

func TestReadMessage_Malformed(t *testing.T) {
	msg := buildMessage(1, dataSet(1, "10.0.0.1", 2, 3))

	tests := []struct {
		name  string
		input []byte
	}{
		{"truncated header", msg[:3]},
		{"truncated body", msg[:len(msg)-1]},
		{"wrong version", append([]byte{0, 9}, msg[2:]...)},
		{"short length", []byte{0, 10, 0, 8, 0, 0, 0, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadMessage(bytes.NewReader(tt.input))
			if !errors.Is(err, ErrBadMessage) {
				t.Errorf("Expected ErrBadMessage, got %v", err)
			}
		})
	}
}

func TestReader_DecodesRecords(t *testing.T) {
	dict, err := NewDictionary()
	if err != nil {
		t.Fatalf("NewDictionary failed: %v", err)
	}

	stream := append(
		buildMessage(1, templateSet(), dataSet(1500, "10.0.0.1", 42, 900)),
		buildMessage(2, dataSet(60, "192.168.1.7", 7, 0))...,
	)
	rd, err := NewReader(context.Background(), bytes.NewReader(stream), dict, false, quietLogger())
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}

	var recs []map[string]any
	for {
		rec, err := rd.Read(context.Background())
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		recs = append(recs, rec)
	}
	if len(recs) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(recs))
	}

	first := recs[0]
	if first["octetDeltaCount"] != uint64(1500) {
		t.Errorf("octetDeltaCount = %v", first["octetDeltaCount"])
	}
	if first["minTcpRttMilliseconds"] != uint64(42) {
		t.Errorf("minTcpRttMilliseconds = %v", first["minTcpRttMilliseconds"])
	}
	if first["reverseOctetDeltaCount"] != uint64(900) {
		t.Errorf("reverse octets should be canonicalized, record = %v", first)
	}
	if first["sourceIPv4Address"] != netip.MustParseAddr("10.0.0.1") {
		t.Errorf("sourceIPv4Address = %v", first["sourceIPv4Address"])
	}
	if rd.Messages() != 2 {
		t.Errorf("Expected 2 messages, got %d", rd.Messages())
	}
}

func TestReader_SkipsUnknownTemplate(t *testing.T) {
	dict, err := NewDictionary()
	if err != nil {
		t.Fatalf("NewDictionary failed: %v", err)
	}
	stream := append(
		buildMessage(1, dataSet(1, "10.0.0.1", 1, 1)),
		buildMessage(2, templateSet(), dataSet(2, "10.0.0.2", 2, 2))...,
	)
	rd, err := NewReader(context.Background(), bytes.NewReader(stream), dict, false, quietLogger())
	if err != nil {
		t.Fatalf("NewReader failed: %v", err)
	}
	rec, err := rd.Read(context.Background())
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if rec["octetDeltaCount"] != uint64(2) {
		t.Errorf("Expected record from second message, got %v", rec)
	}
}

func TestParseIESpec(t *testing.T) {
	ie, err := ParseIESpec("tcpSequenceLossCount(35566/1035)<unsigned64>[8]")
	if err != nil {
		t.Fatalf("ParseIESpec failed: %v", err)
	}
	if ie.Name != "tcpSequenceLossCount" || ie.EnterpriseId != 35566 || ie.Id != 1035 {
		t.Errorf("Unexpected element %+v", ie)
	}
	if ie.Constructor == nil || *ie.Type != "unsigned64" {
		t.Error("Expected unsigned64 constructor")
	}

	ie, err = ParseIESpec("flowEndReason(136)<unsigned8>")
	if err != nil {
		t.Fatalf("ParseIESpec failed: %v", err)
	}
	if ie.EnterpriseId != 0 || ie.Id != 136 {
		t.Errorf("Expected IANA element, got %+v", ie)
	}

	for _, bad := range []string{"noNumber<unsigned8>", "badType(1)<float128>", "(1)<unsigned8>"} {
		if _, err := ParseIESpec(bad); err == nil {
			t.Errorf("Expected error for %q", bad)
		}
	}
}

func TestReadSpecFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "extra.iespec")
	content := "# local elements\n\nmyCounter(12345/1)<unsigned32>[4]\nmyName(12345/2)<string>[v]\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	ies, err := ReadSpecFile(path)
	if err != nil {
		t.Fatalf("ReadSpecFile failed: %v", err)
	}
	if len(ies) != 2 {
		t.Fatalf("Expected 2 elements, got %d", len(ies))
	}

	dict, err := NewDictionary(path)
	if err != nil {
		t.Fatalf("NewDictionary failed: %v", err)
	}
	if ie, ok := dict.Lookup(12345, 2); !ok || ie.Name != "myName" {
		t.Errorf("Spec file element not found in dictionary")
	}
	if ie, ok := dict.Lookup(6871, 14); !ok || ie.Name != "initialTCPFlags" {
		t.Errorf("Built-in element not found in dictionary")
	}
}

func TestCanonicalName(t *testing.T) {
	tests := map[string]string{
		"reversedOctetDeltaCount":     "reverseOctetDeltaCount",
		"reverseTcpSequenceLossCount": "reverseTcpSequenceLossCount",
		"reversed":                    "reversed",
		"reversedness":                "reversedness",
		"octetDeltaCount":             "octetDeltaCount",
	}
	for in, want := range tests {
		if got := CanonicalName(in); got != want {
			t.Errorf("CanonicalName(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCollector_HandlesConnectionsSequentially(t *testing.T) {
	c, err := Listen("tcp", "127.0.0.1:0", quietLogger())
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 2)
	done := make(chan error, 1)
	go func() {
		done <- c.Serve(ctx, func(ctx context.Context, conn io.Reader) error {
			b, err := io.ReadAll(conn)
			got <- string(b)
			return err
		})
	}()

	for _, payload := range []string{"first", "second"} {
		conn, err := net.Dial("tcp", c.Addr().String())
		if err != nil {
			t.Fatalf("Dial failed: %v", err)
		}
		conn.Write([]byte(payload))
		conn.Close()

		select {
		case s := <-got:
			if s != payload {
				t.Errorf("Expected %q, got %q", payload, s)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("Timed out waiting for connection %q", payload)
		}
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve returned error after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not stop after cancel")
	}
}

func TestListen_RejectsNonTCP(t *testing.T) {
	if _, err := Listen("udp", "127.0.0.1:0", quietLogger()); err == nil {
		t.Error("Expected error for udp collector")
	}
}

func TestOpen_Stdin(t *testing.T) {
	rc, err := Open("-", false)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := rc.Close(); err != nil {
		t.Errorf("Close on stdin wrapper should be a no-op, got %v", err)
	}
}
