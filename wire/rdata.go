package wire

import (
	"bytes"
	"net"
)

func decodeRdata(r *reader, rtype RecordType, rdlen int) (Rdata, error) {
	switch rtype {
	case TypeA:
		return decodeA(r)
	case TypeAAAA:
		return decodeAAAA(r)
	case TypeNS:
		name, err := r.readName()
		return NSRdata{Name: name}, err
	case TypeCNAME:
		name, err := r.readName()
		return CNAMERdata{Name: name}, err
	case TypePTR:
		name, err := r.readName()
		return PTRRdata{Name: name}, err
	case TypeMX:
		return decodeMX(r)
	case TypeSOA:
		return decodeSOA(r)
	case TypeTXT:
		return decodeTXT(r, rdlen)
	case TypeOPT:
		return decodeOPT(r, rdlen)
	case TypeDS:
		return decodeDS(r, rdlen)
	case TypeRRSIG:
		return decodeRRSIG(r, rdlen)
	case TypeDNSKEY:
		return decodeDNSKEY(r, rdlen)
	default:
		raw, err := r.readBytes(rdlen)
		if err != nil {
			return nil, err
		}

		cp := make([]byte, len(raw))
		copy(cp, raw)

		return UnknownRdata{RType: rtype, Raw: cp}, nil
	}
}

// ARdata is the RDATA of an A record: a 4-octet IPv4 address.
type ARdata struct{ IP net.IP }

func (ARdata) RRType() RecordType { return TypeA }

func (a ARdata) Pack(w *nameWriter) error {
	ip4 := a.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}

	w.Write(ip4)

	return nil
}

func (a ARdata) Canonical() []byte {
	ip4 := a.IP.To4()
	if ip4 == nil {
		ip4 = net.IPv4zero.To4()
	}

	return append([]byte{}, ip4...)
}

func decodeA(r *reader) (Rdata, error) {
	b, err := r.readBytes(4)
	if err != nil {
		return nil, err
	}

	ip := make(net.IP, 4)
	copy(ip, b)

	return ARdata{IP: ip}, nil
}

// AAAARdata is the RDATA of an AAAA record: a 16-octet IPv6 address.
type AAAARdata struct{ IP net.IP }

func (AAAARdata) RRType() RecordType { return TypeAAAA }

func (a AAAARdata) Pack(w *nameWriter) error {
	ip16 := a.IP.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}

	w.Write(ip16)

	return nil
}

func (a AAAARdata) Canonical() []byte {
	ip16 := a.IP.To16()
	if ip16 == nil {
		ip16 = net.IPv6zero
	}

	return append([]byte{}, ip16...)
}

func decodeAAAA(r *reader) (Rdata, error) {
	b, err := r.readBytes(16)
	if err != nil {
		return nil, err
	}

	ip := make(net.IP, 16)
	copy(ip, b)

	return AAAARdata{IP: ip}, nil
}

// NSRdata is the RDATA of an NS record.
type NSRdata struct{ Name DomainName }

func (NSRdata) RRType() RecordType      { return TypeNS }
func (n NSRdata) Pack(w *nameWriter) error { return w.WriteName(n.Name) }
func (n NSRdata) Canonical() []byte        { return WriteNameUncompressed(nil, n.Name) }

// CNAMERdata is the RDATA of a CNAME record.
type CNAMERdata struct{ Name DomainName }

func (CNAMERdata) RRType() RecordType         { return TypeCNAME }
func (c CNAMERdata) Pack(w *nameWriter) error { return w.WriteName(c.Name) }
func (c CNAMERdata) Canonical() []byte        { return WriteNameUncompressed(nil, c.Name) }

// PTRRdata is the RDATA of a PTR record.
type PTRRdata struct{ Name DomainName }

func (PTRRdata) RRType() RecordType       { return TypePTR }
func (p PTRRdata) Pack(w *nameWriter) error { return w.WriteName(p.Name) }
func (p PTRRdata) Canonical() []byte        { return WriteNameUncompressed(nil, p.Name) }

// MXRdata is the RDATA of an MX record.
type MXRdata struct {
	Pref     uint16
	Exchange DomainName
}

func (MXRdata) RRType() RecordType { return TypeMX }

func (m MXRdata) Pack(w *nameWriter) error {
	w.WriteUint16(m.Pref)
	return w.WriteName(m.Exchange)
}

func (m MXRdata) Canonical() []byte {
	buf := []byte{byte(m.Pref >> 8), byte(m.Pref)}
	return WriteNameUncompressed(buf, m.Exchange)
}

func decodeMX(r *reader) (Rdata, error) {
	pref, err := r.readUint16()
	if err != nil {
		return nil, err
	}

	name, err := r.readName()
	if err != nil {
		return nil, err
	}

	return MXRdata{Pref: pref, Exchange: name}, nil
}

// SOARdata is the RDATA of a SOA record.
type SOARdata struct {
	MName, RName                          DomainName
	Serial, Refresh, Retry, Expire, Minimum uint32
}

func (SOARdata) RRType() RecordType { return TypeSOA }

func (s SOARdata) Pack(w *nameWriter) error {
	if err := w.WriteName(s.MName); err != nil {
		return err
	}

	if err := w.WriteName(s.RName); err != nil {
		return err
	}

	w.WriteUint32(s.Serial)
	w.WriteUint32(s.Refresh)
	w.WriteUint32(s.Retry)
	w.WriteUint32(s.Expire)
	w.WriteUint32(s.Minimum)

	return nil
}

func (s SOARdata) Canonical() []byte {
	buf := WriteNameUncompressed(nil, s.MName)
	buf = WriteNameUncompressed(buf, s.RName)
	buf = appendUint32(buf, s.Serial)
	buf = appendUint32(buf, s.Refresh)
	buf = appendUint32(buf, s.Retry)
	buf = appendUint32(buf, s.Expire)
	buf = appendUint32(buf, s.Minimum)

	return buf
}

func decodeSOA(r *reader) (Rdata, error) {
	mname, err := r.readName()
	if err != nil {
		return nil, err
	}

	rname, err := r.readName()
	if err != nil {
		return nil, err
	}

	var vals [5]uint32
	for i := range vals {
		vals[i], err = r.readUint32()
		if err != nil {
			return nil, err
		}
	}

	return SOARdata{
		MName: mname, RName: rname,
		Serial: vals[0], Refresh: vals[1], Retry: vals[2], Expire: vals[3], Minimum: vals[4],
	}, nil
}

// TXTRdata is the RDATA of a TXT record: one or more character-strings.
type TXTRdata struct{ Segments [][]byte }

func (TXTRdata) RRType() RecordType { return TypeTXT }

func (t TXTRdata) Pack(w *nameWriter) error {
	for _, seg := range t.Segments {
		w.WriteByte(byte(len(seg)))
		w.Write(seg)
	}

	return nil
}

func (t TXTRdata) Canonical() []byte {
	var buf bytes.Buffer

	for _, seg := range t.Segments {
		buf.WriteByte(byte(len(seg)))
		buf.Write(seg)
	}

	return buf.Bytes()
}

func decodeTXT(r *reader, rdlen int) (Rdata, error) {
	end := r.pos + rdlen

	var segs [][]byte

	for r.pos < end {
		l, err := r.readByte()
		if err != nil {
			return nil, err
		}

		seg, err := r.readBytes(int(l))
		if err != nil {
			return nil, err
		}

		cp := make([]byte, len(seg))
		copy(cp, seg)
		segs = append(segs, cp)
	}

	return TXTRdata{Segments: segs}, nil
}

// UnknownRdata preserves the raw RDATA bytes of any type not specially
// recognized by this codec (spec.md §3: "Unknown types are encoded/decoded
// opaquely").
type UnknownRdata struct {
	RType RecordType
	Raw   []byte
}

func (u UnknownRdata) RRType() RecordType { return u.RType }
func (u UnknownRdata) Pack(w *nameWriter) error {
	w.Write(u.Raw)
	return nil
}
func (u UnknownRdata) Canonical() []byte { return append([]byte{}, u.Raw...) }

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
