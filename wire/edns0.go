package wire

// EDNS0 OPT pseudo-RR support (RFC 6891). The OPT record repurposes the
// CLASS and TTL fields of a normal RR (spec.md §4.1): CLASS carries the
// requester's UDP payload size, and TTL is split into extended-rcode,
// version and flags (of which only DO, the DNSSEC-OK bit, matters here).

const (
	// DefaultUDPSize is used when no OPT record is present.
	DefaultUDPSize = 512

	doBit uint32 = 1 << 15
)

// OPTRdata is the RDATA of an OPT record: a sequence of {code, data}
// options. None of the option codes themselves are interpreted by this
// codec; DO is carried in the owning RR's TTL field, not here.
type OPTRdata struct {
	Options []EDNS0Option
}

// EDNS0Option is one TLV entry in an OPT RDATA.
type EDNS0Option struct {
	Code uint16
	Data []byte
}

func (OPTRdata) RRType() RecordType { return TypeOPT }

func (o OPTRdata) Pack(w *nameWriter) error {
	for _, opt := range o.Options {
		w.WriteUint16(opt.Code)
		w.WriteUint16(uint16(len(opt.Data)))
		w.Write(opt.Data)
	}

	return nil
}

func (o OPTRdata) Canonical() []byte {
	var buf []byte

	for _, opt := range o.Options {
		buf = appendUint16(buf, opt.Code)
		buf = appendUint16(buf, uint16(len(opt.Data)))
		buf = append(buf, opt.Data...)
	}

	return buf
}

func decodeOPT(r *reader, rdlen int) (Rdata, error) {
	end := r.pos + rdlen

	var opts []EDNS0Option

	for r.pos < end {
		code, err := r.readUint16()
		if err != nil {
			return nil, err
		}

		l, err := r.readUint16()
		if err != nil {
			return nil, err
		}

		data, err := r.readBytes(int(l))
		if err != nil {
			return nil, err
		}

		cp := make([]byte, len(data))
		copy(cp, data)

		opts = append(opts, EDNS0Option{Code: code, Data: cp})
	}

	return OPTRdata{Options: opts}, nil
}

// NewOPT builds the additional-section OPT record a server includes to
// advertise its own UDP payload size and, optionally, the DO bit.
func NewOPT(udpSize uint16, do bool) ResourceRecord {
	var ttl uint32
	if do {
		ttl = doBit
	}

	return ResourceRecord{
		Name:  Root,
		Type:  TypeOPT,
		Class: Class(udpSize),
		TTL:   ttl,
		Rdata: OPTRdata{},
	}
}

// FindOPT returns the OPT record in additional, if any.
func FindOPT(additional []ResourceRecord) *ResourceRecord {
	for i := range additional {
		if additional[i].Type == TypeOPT {
			return &additional[i]
		}
	}

	return nil
}

// UDPSize returns the requester's advertised UDP payload size.
func (rr ResourceRecord) UDPSize() uint16 { return uint16(rr.Class) }

// DO reports whether the DNSSEC-OK bit is set.
func (rr ResourceRecord) DO() bool { return rr.TTL&doBit != 0 }

// EffectiveMaxSize resolves the response size ceiling per spec.md §4.1:
// min(advertised, serverMax) when OPT advertises >= 512, else the
// classic 512-octet ceiling.
func EffectiveMaxSize(opt *ResourceRecord, serverMax uint16) int {
	if opt == nil {
		return DefaultUDPSize
	}

	advertised := opt.UDPSize()
	if advertised < DefaultUDPSize {
		return DefaultUDPSize
	}

	if serverMax > 0 && serverMax < advertised {
		return int(serverMax)
	}

	return int(advertised)
}
