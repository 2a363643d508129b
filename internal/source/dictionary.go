package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"github.com/zoomoid/go-ipfix"
)

// ieSpecRegexp matches a single information element specifier of the form
// name(pen/id)<type>[length]. PEN, type and length are optional.
var ieSpecRegexp = regexp.MustCompile(`^([^\s\[\<\(]+)?(\(((\d+)\/)?(\d+)\))?(\<(\S+)\>)?(\[(\S+)\])?`)

// builtinSpecs covers the CERT and QoF enterprise elements emitted by the meters
// these tools are written against.
const builtinSpecs = `initialTCPFlags(6871/14)<unsigned8>[1]
unionTCPFlags(6871/15)<unsigned8>[1]
reverseFlowDeltaMilliseconds(6871/21)<signed32>[4]
reverseInitialTCPFlags(6871/16398)<unsigned8>[1]
reverseUnionTCPFlags(6871/16399)<unsigned8>[1]
expiredFragmentCount(6871/100)<unsigned32>[4]
assembledFragmentCount(6871/101)<unsigned32>[4]
meanFlowRate(6871/102)<unsigned32>[4]
meanPacketRate(6871/103)<unsigned32>[4]
flowTableFlushEventCount(6871/104)<unsigned32>[4]
flowTablePeakCount(6871/105)<unsigned32>[4]
tcpSequenceCount(35566/1024)<unsigned64>[8]
tcpRetransmitCount(35566/1025)<unsigned64>[8]
maxTcpSequenceJump(35566/1026)<unsigned32>[4]
minTcpRttMilliseconds(35566/1029)<unsigned32>[4]
lastTcpRttMilliseconds(35566/1030)<unsigned32>[4]
ectMarkCount(35566/1031)<unsigned64>[8]
ceMarkCount(35566/1032)<unsigned64>[8]
declaredTcpMss(35566/1033)<unsigned16>[2]
observedTcpMss(35566/1034)<unsigned16>[2]
tcpSequenceLossCount(35566/1035)<unsigned64>[8]
tcpSequenceJumpCount(35566/1036)<unsigned64>[8]
tcpLossEventCount(35566/1038)<unsigned64>[8]
qofTcpCharacteristics(35566/1039)<unsigned32>[4]
tcpDupAckCount(35566/1040)<unsigned64>[8]
tcpSelAckCount(35566/1041)<unsigned64>[8]
minTcpRwin(35566/1042)<unsigned32>[4]
meanTcpRwin(35566/1043)<unsigned32>[4]
maxTcpRwin(35566/1044)<unsigned32>[4]
tcpReceiverStallCount(35566/1045)<unsigned32>[4]
tcpRttSampleCount(35566/1046)<unsigned32>[4]
tcpTimestampFrequency(35566/1047)<unsigned32>[4]
minTcpChirpMilliseconds(35566/1048)<signed16>[2]
maxTcpChirpMilliseconds(35566/1049)<signed16>[2]
minTcpIOTMilliseconds(35566/1050)<unsigned32>[4]
maxTcpIOTMilliseconds(35566/1051)<unsigned32>[4]
meanTcpChirpMilliseconds(35566/1052)<signed16>[2]
lastSynTcpFlags(35566/1053)<unsigned8>[1]
reverseTcpSequenceCount(35566/17408)<unsigned64>[8]
reverseTcpRetransmitCount(35566/17409)<unsigned64>[8]
reverseMaxTcpSequenceJump(35566/17410)<unsigned32>[4]
reverseMinTcpRttMilliseconds(35566/17413)<unsigned32>[4]
reverseLastTcpRttMilliseconds(35566/17414)<unsigned32>[4]
reverseEctMarkCount(35566/17415)<unsigned64>[8]
reverseCeMarkCount(35566/17416)<unsigned64>[8]
reverseDeclaredTcpMss(35566/17417)<unsigned16>[2]
reverseObservedTcpMss(35566/17418)<unsigned16>[2]
reverseTcpSequenceLossCount(35566/17419)<unsigned64>[8]
reverseTcpSequenceJumpCount(35566/17420)<unsigned64>[8]
reverseTcpLossEventCount(35566/17422)<unsigned64>[8]
reverseQofTcpCharacteristics(35566/17423)<unsigned32>[4]
reverseTcpDupAckCount(35566/17424)<unsigned64>[8]
reverseTcpSelAckCount(35566/17425)<unsigned64>[8]
reverseMinTcpRwin(35566/17426)<unsigned32>[4]
reverseMeanTcpRwin(35566/17427)<unsigned32>[4]
reverseMaxTcpRwin(35566/17428)<unsigned32>[4]
reverseTcpReceiverStallCount(35566/17429)<unsigned32>[4]
reverseTcpRttSampleCount(35566/17430)<unsigned32>[4]
reverseTcpTimestampFrequency(35566/17431)<unsigned32>[4]
reverseMinTcpChirpMilliseconds(35566/17432)<signed16>[2]
reverseMaxTcpChirpMilliseconds(35566/17433)<signed16>[2]
reverseMinTcpIOTMilliseconds(35566/17434)<unsigned32>[4]
reverseMaxTcpIOTMilliseconds(35566/17435)<unsigned32>[4]
reverseMeanTcpChirpMilliseconds(35566/17436)<signed16>[2]
reverseLastSynTcpFlags(35566/17437)<unsigned8>[1]
`

// Dictionary is the set of information elements a reader knows how to decode.
// It is built once per process and seeds a fresh field cache for each stream.
type Dictionary struct {
	elements []ipfix.InformationElement
}

// NewDictionary returns a dictionary holding the IANA registry, the built-in
// enterprise elements and every element from the given spec files. Later
// definitions override earlier ones with the same (PEN, ID).
func NewDictionary(specFiles ...string) (*Dictionary, error) {
	d := &Dictionary{}
	for _, ie := range ipfix.IANA() {
		if ie.Constructor == nil {
			continue
		}
		d.elements = append(d.elements, ie)
	}

	builtin, err := ParseIESpecs(strings.NewReader(builtinSpecs))
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in IE specs: %w", err)
	}
	d.elements = append(d.elements, builtin...)

	for _, path := range specFiles {
		ies, err := ReadSpecFile(path)
		if err != nil {
			return nil, err
		}
		d.elements = append(d.elements, ies...)
	}
	return d, nil
}

// Len returns the number of element definitions, including overridden ones.
func (d *Dictionary) Len() int {
	return len(d.elements)
}

// Lookup returns the last definition registered for (pen, id).
func (d *Dictionary) Lookup(pen uint32, id uint16) (ipfix.InformationElement, bool) {
	for i := len(d.elements) - 1; i >= 0; i-- {
		ie := d.elements[i]
		if ie.EnterpriseId == pen && ie.Id == id {
			return ie, true
		}
	}
	return ipfix.InformationElement{}, false
}

// FieldCache creates a field cache bound to templates, populated with the dictionary.
func (d *Dictionary) FieldCache(ctx context.Context, templates ipfix.TemplateCache) (ipfix.FieldCache, error) {
	fc := ipfix.NewEphemeralFieldCache(templates)
	for _, ie := range d.elements {
		if err := fc.Add(ctx, ie); err != nil {
			return nil, fmt.Errorf("failed to add IE %s(%d/%d) to field cache: %w", ie.Name, ie.EnterpriseId, ie.Id, err)
		}
	}
	return fc, nil
}

// ReadSpecFile loads element definitions from a file. The format follows the
// extension: .yaml/.yml, .csv and .xml use the registry formats, anything else
// is read as one iespec per line.
func ReadSpecFile(path string) ([]ipfix.InformationElement, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open IE spec file: %w", err)
	}
	defer f.Close()

	var ies []ipfix.InformationElement
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		m, err := ipfix.ReadYAML(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read YAML IE spec %s: %w", path, err)
		}
		for _, ie := range m {
			if ie.Type == nil {
				return nil, fmt.Errorf("IE %s in %s has no type", ie.Name, path)
			}
			c, err := lookupConstructor(*ie.Type)
			if err != nil {
				return nil, fmt.Errorf("IE %s in %s: %w", ie.Name, path, err)
			}
			ie.Constructor = c
			ies = append(ies, ie)
		}
	case ".csv":
		m, err := readRegistry(f, ipfix.ReadCSV)
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV IE spec %s: %w", path, err)
		}
		ies = m
	case ".xml":
		m, err := readRegistry(f, ipfix.ReadXML)
		if err != nil {
			return nil, fmt.Errorf("failed to read XML IE spec %s: %w", path, err)
		}
		ies = m
	default:
		ies, err = ParseIESpecs(f)
		if err != nil {
			return nil, fmt.Errorf("failed to read IE spec %s: %w", path, err)
		}
	}
	return ies, nil
}

// readRegistry guards the registry readers, which panic on unknown data types.
func readRegistry(r io.Reader, read func(io.Reader) (map[uint16]ipfix.InformationElement, error)) (ies []ipfix.InformationElement, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("invalid registry: %v", p)
		}
	}()
	m, err := read(r)
	if err != nil {
		return nil, err
	}
	for _, ie := range m {
		if ie.Constructor == nil {
			continue
		}
		ies = append(ies, ie)
	}
	return ies, nil
}

// ParseIESpecs parses one iespec per line. Blank lines and lines starting with # are ignored.
func ParseIESpecs(r io.Reader) ([]ipfix.InformationElement, error) {
	var ies []ipfix.InformationElement
	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		ie, err := ParseIESpec(text)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		ies = append(ies, ie)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return ies, nil
}

// ParseIESpec parses a single name(pen/id)<type>[length] specifier. The length
// is informational only; the template carries the encoded length.
func ParseIESpec(spec string) (ipfix.InformationElement, error) {
	m := ieSpecRegexp.FindStringSubmatch(spec)
	if m == nil || m[1] == "" {
		return ipfix.InformationElement{}, fmt.Errorf("cannot parse iespec %s", spec)
	}

	var pen uint64
	if m[4] != "" {
		var err error
		pen, err = strconv.ParseUint(m[4], 10, 32)
		if err != nil {
			return ipfix.InformationElement{}, fmt.Errorf("bad PEN in %s: %w", spec, err)
		}
	}

	if m[5] == "" {
		return ipfix.InformationElement{}, fmt.Errorf("missing IE number in %s", spec)
	}
	id, err := strconv.ParseUint(m[5], 10, 16)
	if err != nil {
		return ipfix.InformationElement{}, fmt.Errorf("bad IE number in %s: %w", spec, err)
	}

	typ := m[7]
	if typ == "" {
		typ = "octetArray"
	}
	c, err := lookupConstructor(typ)
	if err != nil {
		return ipfix.InformationElement{}, fmt.Errorf("bad IE type in %s: %w", spec, err)
	}

	return ipfix.InformationElement{
		Id:           uint16(id),
		Name:         m[1],
		EnterpriseId: uint32(pen),
		Type:         &typ,
		Constructor:  c,
	}, nil
}

func lookupConstructor(typ string) (c ipfix.DataTypeConstructor, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("unknown data type %q", typ)
		}
	}()
	return ipfix.LookupConstructor(typ), nil
}

// CanonicalName maps the decoder's RFC 5103 reverse names ("reversedOctetDeltaCount")
// onto the "reverse" prefix used by enterprise elements and by the analysis code.
func CanonicalName(name string) string {
	const decoded = "reversed"
	if len(name) > len(decoded) && strings.HasPrefix(name, decoded) && unicode.IsUpper(rune(name[len(decoded)])) {
		return "reverse" + name[len(decoded):]
	}
	return name
}
