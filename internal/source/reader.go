package source

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/zoomoid/go-ipfix"

	"FlowSpectra/internal/metrics"
	"FlowSpectra/internal/table"
)

const (
	ipfixVersion      = 10
	messageHeaderSize = 16
)

// ErrBadMessage is returned when the framing of an IPFIX stream is invalid.
var ErrBadMessage = errors.New("malformed IPFIX message")

// ReadMessage reads exactly one IPFIX message from r, header included.
// It returns io.EOF only when r is exhausted at a message boundary.
func ReadMessage(r io.Reader) ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated header", ErrBadMessage)
		}
		return nil, err
	}
	version := binary.BigEndian.Uint16(hdr[0:2])
	length := binary.BigEndian.Uint16(hdr[2:4])
	if version != ipfixVersion {
		return nil, fmt.Errorf("%w: version %d", ErrBadMessage, version)
	}
	if length < messageHeaderSize {
		return nil, fmt.Errorf("%w: length %d shorter than header", ErrBadMessage, length)
	}

	msg := make([]byte, length)
	copy(msg, hdr[:])
	if _, err := io.ReadFull(r, msg[4:]); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("%w: truncated message of length %d", ErrBadMessage, length)
		}
		return nil, err
	}
	return msg, nil
}

// Reader decodes an IPFIX stream into flow records. Each Reader owns its own
// template state, so one Reader corresponds to one transport session.
type Reader struct {
	r       io.Reader
	decoder *ipfix.Decoder
	log     logrus.FieldLogger
	pending []table.Record

	messages int
}

// NewReader creates a reader over r using the elements of dict.
func NewReader(ctx context.Context, r io.Reader, dict *Dictionary, omitRFC5610 bool, log logrus.FieldLogger) (*Reader, error) {
	templates := ipfix.NewDefaultEphemeralCache()
	fields, err := dict.FieldCache(ctx, templates)
	if err != nil {
		return nil, err
	}
	return &Reader{
		r:       r,
		decoder: ipfix.NewDecoder(templates, fields, ipfix.DecoderOptions{OmitRFC5610Records: omitRFC5610}),
		log:     log,
	}, nil
}

// Messages returns the number of messages read so far.
func (rd *Reader) Messages() int {
	return rd.messages
}

// Read returns the next flow record, implementing table.RecordSource.
// Messages referring to a template not yet seen are skipped.
func (rd *Reader) Read(ctx context.Context) (table.Record, error) {
	for len(rd.pending) == 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw, err := ReadMessage(rd.r)
		if err != nil {
			return nil, err
		}
		rd.messages++

		msg, err := rd.decoder.Decode(ctx, bytes.NewBuffer(raw))
		if err != nil {
			if errors.Is(err, ipfix.ErrTemplateNotFound) {
				metrics.MessagesSkipped.WithLabelValues("template_not_found").Inc()
				rd.log.WithFields(logrus.Fields{"message": rd.messages, "error": err}).Warn("Skipping message with unknown template")
				continue
			}
			return nil, fmt.Errorf("failed to decode IPFIX message %d: %w", rd.messages, err)
		}
		rd.pending = appendRecords(rd.pending, msg)
	}

	rec := rd.pending[0]
	rd.pending[0] = nil
	rd.pending = rd.pending[1:]
	return rec, nil
}

// appendRecords converts the data records of msg. Template and options template
// sets only update decoder state and produce no records.
func appendRecords(dst []table.Record, msg *ipfix.Message) []table.Record {
	if msg == nil {
		return dst
	}
	for _, set := range msg.Sets {
		ds, ok := set.Set.(*ipfix.DataSet)
		if !ok {
			continue
		}
		for _, dr := range ds.Records {
			dst = append(dst, convertRecord(dr))
			metrics.RecordsDecoded.Inc()
		}
	}
	return dst
}

func convertRecord(dr ipfix.DataRecord) table.Record {
	rec := make(table.Record, len(dr.Fields))
	for _, f := range dr.Fields {
		name := f.Name()
		if name == "" || name == "unassigned" {
			continue
		}
		v := f.Value()
		if v == nil {
			continue
		}
		rec[CanonicalName(name)] = table.Normalize(v.Value())
	}
	return rec
}
