package wire

// RecordType is the 16-bit RR TYPE field (RFC 1035 §3.2.2, RFC 4034).
type RecordType uint16

const (
	TypeA      RecordType = 1
	TypeNS     RecordType = 2
	TypeCNAME  RecordType = 5
	TypeSOA    RecordType = 6
	TypePTR    RecordType = 12
	TypeMX     RecordType = 15
	TypeTXT    RecordType = 16
	TypeAAAA   RecordType = 28
	TypeOPT    RecordType = 41
	TypeDS     RecordType = 43
	TypeRRSIG  RecordType = 46
	TypeDNSKEY RecordType = 48
	TypeANY    RecordType = 255
)

var typeNames = map[RecordType]string{
	TypeA:      "A",
	TypeNS:     "NS",
	TypeCNAME:  "CNAME",
	TypeSOA:    "SOA",
	TypePTR:    "PTR",
	TypeMX:     "MX",
	TypeTXT:    "TXT",
	TypeAAAA:   "AAAA",
	TypeOPT:    "OPT",
	TypeDS:     "DS",
	TypeRRSIG:  "RRSIG",
	TypeDNSKEY: "DNSKEY",
	TypeANY:    "ANY",
}

func (t RecordType) String() string {
	if n, ok := typeNames[t]; ok {
		return n
	}

	return "TYPE" + itoa(uint16(t))
}

func itoa(v uint16) string {
	if v == 0 {
		return "0"
	}

	var buf [5]byte

	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}

	return string(buf[i:])
}

// compressibleTypes names carried in RDATA that the decoder/encoder may
// compress, per spec.md §4.1 ("well-known compressible types").
var compressibleTypes = map[RecordType]bool{
	TypeNS:    true,
	TypeCNAME: true,
	TypePTR:   true,
	TypeMX:    true,
	TypeSOA:   true,
}

// Class is the 16-bit CLASS field. Only IN is recognized by the resolver;
// the decoder keeps any other value as-is and resolver.Classify refuses it
// (UnsupportedClass, REFUSED).
type Class uint16

const ClassIN Class = 1

// ResourceRecord is a single parsed resource record (spec.md §3). The
// invariant that Rdata's concrete type matches Type is maintained by the
// decoder and by every constructor in this package.
type ResourceRecord struct {
	Name  DomainName
	Type  RecordType
	Class Class
	TTL   uint32
	Rdata Rdata
}

// Rdata is the discriminated union of parsed RDATA payloads.
type Rdata interface {
	// RRType returns the RR type this payload is valid for.
	RRType() RecordType
	// Pack serializes the RDATA (with name compression for the
	// well-known compressible types) into w.
	Pack(w *nameWriter) error
	// Canonical returns the uncompressed, lowercase wire form used for
	// DNSSEC signing (RFC 4034 §6.2).
	Canonical() []byte
}

// packRR writes name | type | class | ttl | rdlength | rdata, using
// compression for the owner name and, where applicable, for names
// embedded in RDATA.
func packRR(w *nameWriter, rr ResourceRecord) error {
	if err := w.WriteName(rr.Name); err != nil {
		return err
	}

	w.WriteUint16(uint16(rr.Type))
	w.WriteUint16(uint16(rr.Class))
	w.WriteUint32(rr.TTL)

	lenPos := w.Len()
	w.WriteUint16(0) // placeholder, patched below

	start := w.Len()
	if err := rr.Rdata.Pack(w); err != nil {
		return err
	}

	rdlen := w.Len() - start
	buf := w.Bytes()
	buf[lenPos] = byte(rdlen >> 8)
	buf[lenPos+1] = byte(rdlen)

	return nil
}

func (r *reader) readRR() (ResourceRecord, error) {
	name, err := r.readName()
	if err != nil {
		return ResourceRecord{}, err
	}

	typ, err := r.readUint16()
	if err != nil {
		return ResourceRecord{}, err
	}

	class, err := r.readUint16()
	if err != nil {
		return ResourceRecord{}, err
	}

	ttl, err := r.readUint32()
	if err != nil {
		return ResourceRecord{}, err
	}

	rdlen, err := r.readUint16()
	if err != nil {
		return ResourceRecord{}, err
	}

	if r.remaining() < int(rdlen) {
		return ResourceRecord{}, ErrTruncatedRdata
	}

	rdataEnd := r.pos + int(rdlen)

	rtype := RecordType(typ)

	rdata, err := decodeRdata(r, rtype, int(rdlen))
	if err != nil {
		return ResourceRecord{}, err
	}

	// Enforce rdlength exactly, regardless of what the type-specific
	// decoder consumed (opaque fallback for unknown types relies on this).
	r.pos = rdataEnd

	return ResourceRecord{
		Name:  name,
		Type:  rtype,
		Class: Class(class),
		TTL:   ttl,
		Rdata: rdata,
	}, nil
}
