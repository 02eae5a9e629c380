package zonestore

import (
	"encoding/hex"
	"fmt"
	"net"
	"strconv"
	"strings"

	"authdns/wire"
)

// ToRdata parses a record's stored text-form value into wire-ready Rdata
// for the given type. The text form mirrors BIND zone-file field order
// without the owner name, class or TTL (spec.md §6).
func ToRdata(rtype wire.RecordType, value string) (wire.Rdata, error) {
	switch rtype {
	case wire.TypeA:
		ip := net.ParseIP(value).To4()
		if ip == nil {
			return nil, fmt.Errorf("zonestore: invalid A value %q", value)
		}

		return wire.ARdata{IP: ip}, nil
	case wire.TypeAAAA:
		ip := net.ParseIP(value).To16()
		if ip == nil || net.ParseIP(value).To4() != nil {
			return nil, fmt.Errorf("zonestore: invalid AAAA value %q", value)
		}

		return wire.AAAARdata{IP: ip}, nil
	case wire.TypeNS:
		return wire.NSRdata{Name: wire.NewDomainName(value)}, nil
	case wire.TypeCNAME:
		return wire.CNAMERdata{Name: wire.NewDomainName(value)}, nil
	case wire.TypePTR:
		return wire.PTRRdata{Name: wire.NewDomainName(value)}, nil
	case wire.TypeMX:
		fields := strings.Fields(value)
		if len(fields) != 2 {
			return nil, fmt.Errorf("zonestore: invalid MX value %q, want \"<pref> <exchange>\"", value)
		}

		pref, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("zonestore: invalid MX preference in %q: %w", value, err)
		}

		return wire.MXRdata{Pref: uint16(pref), Exchange: wire.NewDomainName(fields[1])}, nil
	case wire.TypeSOA:
		fields := strings.Fields(value)
		if len(fields) != 7 {
			return nil, fmt.Errorf(
				"zonestore: invalid SOA value %q, want \"<mname> <rname> <serial> <refresh> <retry> <expire> <minimum>\"",
				value,
			)
		}

		nums := make([]uint32, 5)

		for i, f := range fields[2:] {
			n, err := strconv.ParseUint(f, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("zonestore: invalid SOA numeric field in %q: %w", value, err)
			}

			nums[i] = uint32(n)
		}

		return wire.SOARdata{
			MName: wire.NewDomainName(fields[0]), RName: wire.NewDomainName(fields[1]),
			Serial: nums[0], Refresh: nums[1], Retry: nums[2], Expire: nums[3], Minimum: nums[4],
		}, nil
	case wire.TypeTXT:
		return wire.TXTRdata{Segments: splitTXT(value)}, nil
	case wire.TypeDS:
		fields := strings.Fields(value)
		if len(fields) != 4 {
			return nil, fmt.Errorf(
				"zonestore: invalid DS value %q, want \"<key_tag> <algorithm> <digest_type> <digest_hex>\"",
				value,
			)
		}

		keyTag, err := strconv.ParseUint(fields[0], 10, 16)
		if err != nil {
			return nil, fmt.Errorf("zonestore: invalid DS key tag in %q: %w", value, err)
		}

		algorithm, err := strconv.ParseUint(fields[1], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("zonestore: invalid DS algorithm in %q: %w", value, err)
		}

		digestType, err := strconv.ParseUint(fields[2], 10, 8)
		if err != nil {
			return nil, fmt.Errorf("zonestore: invalid DS digest type in %q: %w", value, err)
		}

		digest, err := hex.DecodeString(fields[3])
		if err != nil {
			return nil, fmt.Errorf("zonestore: invalid DS digest in %q: %w", value, err)
		}

		return wire.DSRdata{
			KeyTag: uint16(keyTag), Algorithm: uint8(algorithm), DigestType: uint8(digestType), Digest: digest,
		}, nil
	default:
		return nil, fmt.Errorf("zonestore: unsupported record type %s for text value %q", rtype, value)
	}
}

// splitTXT breaks a TXT value into 255-octet character-string segments,
// the maximum a single TXT character-string may hold on the wire.
func splitTXT(value string) [][]byte {
	b := []byte(value)
	if len(b) == 0 {
		return [][]byte{{}}
	}

	var segments [][]byte

	for len(b) > 255 {
		segments = append(segments, append([]byte{}, b[:255]...))
		b = b[255:]
	}

	return append(segments, append([]byte{}, b...))
}
