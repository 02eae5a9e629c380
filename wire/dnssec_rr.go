package wire

// DNSSEC resource record wire forms (RFC 4034).

// DSRdata is the RDATA of a DS record (RFC 4034 §5).
type DSRdata struct {
	KeyTag     uint16
	Algorithm  uint8
	DigestType uint8
	Digest     []byte
}

func (DSRdata) RRType() RecordType { return TypeDS }

func (d DSRdata) Pack(w *nameWriter) error {
	w.WriteUint16(d.KeyTag)
	w.WriteByte(d.Algorithm)
	w.WriteByte(d.DigestType)
	w.Write(d.Digest)

	return nil
}

func (d DSRdata) Canonical() []byte {
	buf := appendUint16(nil, d.KeyTag)
	buf = append(buf, d.Algorithm, d.DigestType)

	return append(buf, d.Digest...)
}

func decodeDS(r *reader, rdlen int) (Rdata, error) {
	keyTag, err := r.readUint16()
	if err != nil {
		return nil, err
	}

	alg, err := r.readByte()
	if err != nil {
		return nil, err
	}

	digestType, err := r.readByte()
	if err != nil {
		return nil, err
	}

	digest, err := r.readBytes(rdlen - 4)
	if err != nil {
		return nil, err
	}

	cp := make([]byte, len(digest))
	copy(cp, digest)

	return DSRdata{KeyTag: keyTag, Algorithm: alg, DigestType: digestType, Digest: cp}, nil
}

// RRSIGRdata is the RDATA of an RRSIG record (RFC 4034 §3). SignerName is
// never compressed on the wire (RFC 4034 §3.1.7 forbids it).
type RRSIGRdata struct {
	TypeCovered RecordType
	Algorithm   uint8
	Labels      uint8
	OriginalTTL uint32
	Expiration  uint32
	Inception   uint32
	KeyTag      uint16
	SignerName  DomainName
	Signature   []byte
}

func (RRSIGRdata) RRType() RecordType { return TypeRRSIG }

// PrefixBytes returns the RRSIG RDATA fields preceding the signature,
// uncompressed, as used both on the wire and as the signed-data prefix
// (spec.md §4.4 step 2).
func (s RRSIGRdata) PrefixBytes() []byte {
	buf := appendUint16(nil, uint16(s.TypeCovered))
	buf = append(buf, s.Algorithm, s.Labels)
	buf = appendUint32(buf, s.OriginalTTL)
	buf = appendUint32(buf, s.Expiration)
	buf = appendUint32(buf, s.Inception)
	buf = appendUint16(buf, s.KeyTag)
	buf = WriteNameUncompressed(buf, s.SignerName)

	return buf
}

func (s RRSIGRdata) Pack(w *nameWriter) error {
	w.Write(s.PrefixBytes())
	w.Write(s.Signature)

	return nil
}

func (s RRSIGRdata) Canonical() []byte {
	return append(s.PrefixBytes(), s.Signature...)
}

func decodeRRSIG(r *reader, rdlen int) (Rdata, error) {
	start := r.pos

	typeCovered, err := r.readUint16()
	if err != nil {
		return nil, err
	}

	alg, err := r.readByte()
	if err != nil {
		return nil, err
	}

	labels, err := r.readByte()
	if err != nil {
		return nil, err
	}

	origTTL, err := r.readUint32()
	if err != nil {
		return nil, err
	}

	expiration, err := r.readUint32()
	if err != nil {
		return nil, err
	}

	inception, err := r.readUint32()
	if err != nil {
		return nil, err
	}

	keyTag, err := r.readUint16()
	if err != nil {
		return nil, err
	}

	signer, err := r.readName()
	if err != nil {
		return nil, err
	}

	consumed := r.pos - start
	sigLen := rdlen - consumed

	if sigLen < 0 {
		return nil, ErrTruncatedRdata
	}

	sig, err := r.readBytes(sigLen)
	if err != nil {
		return nil, err
	}

	cp := make([]byte, len(sig))
	copy(cp, sig)

	return RRSIGRdata{
		TypeCovered: RecordType(typeCovered),
		Algorithm:   alg,
		Labels:      labels,
		OriginalTTL: origTTL,
		Expiration:  expiration,
		Inception:   inception,
		KeyTag:      keyTag,
		SignerName:  signer,
		Signature:   cp,
	}, nil
}

// DNSKEYRdata is the RDATA of a DNSKEY record (RFC 4034 §2).
type DNSKEYRdata struct {
	Flags     uint16
	Protocol  uint8
	Algorithm uint8
	PublicKey []byte
}

func (DNSKEYRdata) RRType() RecordType { return TypeDNSKEY }

func (k DNSKEYRdata) Pack(w *nameWriter) error {
	w.Write(k.Canonical())
	return nil
}

func (k DNSKEYRdata) Canonical() []byte {
	buf := appendUint16(nil, k.Flags)
	buf = append(buf, k.Protocol, k.Algorithm)

	return append(buf, k.PublicKey...)
}

func decodeDNSKEY(r *reader, rdlen int) (Rdata, error) {
	flags, err := r.readUint16()
	if err != nil {
		return nil, err
	}

	protocol, err := r.readByte()
	if err != nil {
		return nil, err
	}

	alg, err := r.readByte()
	if err != nil {
		return nil, err
	}

	key, err := r.readBytes(rdlen - 4)
	if err != nil {
		return nil, err
	}

	cp := make([]byte, len(key))
	copy(cp, key)

	return DNSKEYRdata{Flags: flags, Protocol: protocol, Algorithm: alg, PublicKey: cp}, nil
}
