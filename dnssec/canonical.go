package dnssec

import (
	"bytes"
	"sort"

	"authdns/wire"
)

// Canonicalize puts an RRset into the form RFC 4034 §6 requires before
// signing: the owner name lowercased, and records sorted by the
// lexicographic order of their canonical (uncompressed, lowercase) RDATA
// octets. Two permutations of the same RRset always canonicalize to the
// same byte sequence (spec.md Testable Property 5).
func Canonicalize(set wire.RRset) wire.RRset {
	canon := wire.RRset{
		Name:  wire.NewDomainName(string(set.Name)),
		Type:  set.Type,
		Class: set.Class,
		TTL:   set.TTL,
	}

	canon.Records = append(canon.Records, set.Records...)

	sort.Slice(canon.Records, func(i, j int) bool {
		return bytes.Compare(canon.Records[i].Canonical(), canon.Records[j].Canonical()) < 0
	})

	return canon
}

// SignedData composes the bytes that get hashed and signed for an RRSIG
// over set (spec.md §4.4 step 3): the RRSIG RDATA prefix, followed by
// each canonically ordered RR's full wire form (owner | type | class |
// original_ttl | rdlength | rdata), all uncompressed.
func SignedData(prefix []byte, set wire.RRset) []byte {
	canon := Canonicalize(set)

	buf := append([]byte{}, prefix...)

	owner := wire.WriteNameUncompressed(nil, canon.Name)

	for _, rd := range canon.Records {
		rdata := rd.Canonical()

		buf = append(buf, owner...)
		buf = appendUint16(buf, uint16(canon.Type))
		buf = appendUint16(buf, uint16(canon.Class))
		buf = appendUint32(buf, canon.TTL)
		buf = appendUint16(buf, uint16(len(rdata)))
		buf = append(buf, rdata...)
	}

	return buf
}

func appendUint16(buf []byte, v uint16) []byte {
	return append(buf, byte(v>>8), byte(v))
}

func appendUint32(buf []byte, v uint32) []byte {
	return append(buf, byte(v>>24), byte(v>>16), byte(v>>8), byte(v))
}
