package wire

// Header is the 12-octet DNS message header (RFC 1035 §4.1.1).
type Header struct {
	ID      uint16
	Flags   Flags
	QDCount uint16
	ANCount uint16
	NSCount uint16
	ARCount uint16
}

// Flags is the 16-bit flags word, MSB first:
// qr(1) opcode(4) aa(1) tc(1) rd(1) ra(1) z(1) ad(1) cd(1) rcode(4).
type Flags uint16

const (
	flagQR = 1 << 15
	flagAA = 1 << 10
	flagTC = 1 << 9
	flagRD = 1 << 8
	flagRA = 1 << 7
	flagZ  = 1 << 6
	flagAD = 1 << 5
	flagCD = 1 << 4

	opcodeShift = 11
	opcodeMask  = 0xF
	rcodeMask   = 0xF
)

func (f Flags) QR() bool        { return f&flagQR != 0 }
func (f Flags) Opcode() uint8   { return uint8(f>>opcodeShift) & opcodeMask }
func (f Flags) AA() bool        { return f&flagAA != 0 }
func (f Flags) TC() bool        { return f&flagTC != 0 }
func (f Flags) RD() bool        { return f&flagRD != 0 }
func (f Flags) RA() bool        { return f&flagRA != 0 }
func (f Flags) AD() bool        { return f&flagAD != 0 }
func (f Flags) CD() bool        { return f&flagCD != 0 }
func (f Flags) Rcode() uint8    { return uint8(f) & rcodeMask }

func (f Flags) With(set bool, bit Flags) Flags {
	if set {
		return f | bit
	}

	return f &^ bit
}

func (f Flags) WithQR(v bool) Flags     { return f.With(v, flagQR) }
func (f Flags) WithAA(v bool) Flags     { return f.With(v, flagAA) }
func (f Flags) WithTC(v bool) Flags     { return f.With(v, flagTC) }
func (f Flags) WithRD(v bool) Flags     { return f.With(v, flagRD) }
func (f Flags) WithRA(v bool) Flags     { return f.With(v, flagRA) }
func (f Flags) WithAD(v bool) Flags     { return f.With(v, flagAD) }
func (f Flags) WithCD(v bool) Flags     { return f.With(v, flagCD) }

func (f Flags) WithOpcode(op uint8) Flags {
	return (f &^ (opcodeMask << opcodeShift)) | Flags(op&opcodeMask)<<opcodeShift
}

func (f Flags) WithRcode(rc uint8) Flags {
	return (f &^ rcodeMask) | Flags(rc&rcodeMask)
}

// Opcode values (RFC 1035 §4.1.1).
const (
	OpcodeQuery = 0
)

// Rcode values used by the resolver (spec.md §7).
const (
	RcodeNoError  = 0
	RcodeFormErr  = 1
	RcodeServFail = 2
	RcodeNXDomain = 3
	RcodeNotImp   = 4
	RcodeRefused  = 5
)

// Question is one entry of the question section.
type Question struct {
	Name  DomainName
	Type  RecordType
	Class Class
}

// Message is a fully parsed DNS message (spec.md §3).
type Message struct {
	Header     Header
	Questions  []Question
	Answers    []ResourceRecord
	Authority  []ResourceRecord
	Additional []ResourceRecord
}

// Decode parses buf into a Message. All section counts are validated
// against the actual number of records read; a mismatch or any malformed
// component yields a wrapped wire error (FORMERR at the resolver).
func Decode(buf []byte) (*Message, error) {
	if len(buf) < 12 {
		return nil, ErrMalformedHeader
	}

	r := &reader{msg: buf}

	id, _ := r.readUint16()
	flags, _ := r.readUint16()
	qd, _ := r.readUint16()
	an, _ := r.readUint16()
	ns, _ := r.readUint16()
	ar, _ := r.readUint16()

	m := &Message{Header: Header{
		ID: id, Flags: Flags(flags),
		QDCount: qd, ANCount: an, NSCount: ns, ARCount: ar,
	}}

	for i := uint16(0); i < qd; i++ {
		name, err := r.readName()
		if err != nil {
			return nil, err
		}

		typ, err := r.readUint16()
		if err != nil {
			return nil, err
		}

		class, err := r.readUint16()
		if err != nil {
			return nil, err
		}

		m.Questions = append(m.Questions, Question{Name: name, Type: RecordType(typ), Class: Class(class)})
	}

	var err error

	if m.Answers, err = readRRs(r, an); err != nil {
		return nil, err
	}

	if m.Authority, err = readRRs(r, ns); err != nil {
		return nil, err
	}

	if m.Additional, err = readRRs(r, ar); err != nil {
		return nil, err
	}

	return m, nil
}

func readRRs(r *reader, count uint16) ([]ResourceRecord, error) {
	rrs := make([]ResourceRecord, 0, count)

	for i := uint16(0); i < count; i++ {
		rr, err := r.readRR()
		if err != nil {
			return nil, err
		}

		rrs = append(rrs, rr)
	}

	return rrs, nil
}

// Encode serializes m to wire format, compressing names across the whole
// message (RFC 1035 §4.1.4). It does not truncate; callers enforce
// spec.md §4.2's truncation policy before calling Encode, or inspect the
// returned length against their size ceiling.
func (m *Message) Encode() ([]byte, error) {
	m.Header.QDCount = uint16(len(m.Questions))
	m.Header.ANCount = uint16(len(m.Answers))
	m.Header.NSCount = uint16(len(m.Authority))
	m.Header.ARCount = uint16(len(m.Additional))

	w := newNameWriter(make([]byte, 0, 512))

	w.WriteUint16(m.Header.ID)
	w.WriteUint16(uint16(m.Header.Flags))
	w.WriteUint16(m.Header.QDCount)
	w.WriteUint16(m.Header.ANCount)
	w.WriteUint16(m.Header.NSCount)
	w.WriteUint16(m.Header.ARCount)

	for _, q := range m.Questions {
		if err := w.WriteName(q.Name); err != nil {
			return nil, err
		}

		w.WriteUint16(uint16(q.Type))
		w.WriteUint16(uint16(q.Class))
	}

	for _, section := range [][]ResourceRecord{m.Answers, m.Authority, m.Additional} {
		for _, rr := range section {
			if err := packRR(w, rr); err != nil {
				return nil, err
			}
		}
	}

	return w.Bytes(), nil
}

// QuestionOnly returns a copy of m with every section but Questions
// cleared — the shape of a truncated (TC=1) UDP response (spec.md §4.2).
func (m *Message) QuestionOnly() *Message {
	return &Message{
		Header:    m.Header,
		Questions: m.Questions,
	}
}
