package resolver

import (
	"authdns/dnssec"
	"authdns/evt"
	"authdns/wire"

	"github.com/sirupsen/logrus"
)

// signSection signs every RRset present in rrs (grouped by contiguous
// runs sharing name/type/class — the shape every response assembler in
// this package already produces) and returns rrs with an RRSIG appended
// immediately after each signed set (spec.md §4.2 "RRSIGs are appended
// immediately after each signed RRset"). A set the signer fails on is
// left unsigned; spec.md §7 SigningFailure is not itself an error the
// caller needs to surface, the answer is simply returned without an
// RRSIG for that set.
func signSection(rrs []wire.ResourceRecord, apex wire.DomainName, signer *dnssec.Signer, log *logrus.Entry) []wire.ResourceRecord {
	if signer == nil || len(rrs) == 0 {
		return rrs
	}

	out := make([]wire.ResourceRecord, 0, len(rrs))

	for i := 0; i < len(rrs); {
		j := i + 1
		for j < len(rrs) && sameSet(rrs[i], rrs[j]) {
			j++
		}

		group := rrs[i:j]
		out = append(out, group...)

		set := wire.NewRRset(group)

		sig, err := signer.Sign(set, apex)
		if err != nil {
			log.WithError(err).WithField("rrset", string(set.Name)).Warn("signing failed, serving unsigned")
			evt.Bus().Publish(evt.DnssecSignFailed, string(set.Name))
		} else {
			out = append(out, wire.ResourceRecord{
				Name: set.Name, Type: wire.TypeRRSIG, Class: set.Class, TTL: set.TTL, Rdata: sig,
			})
			evt.Bus().Publish(evt.DnssecSigned, string(set.Name))
		}

		i = j
	}

	return out
}

func sameSet(a, b wire.ResourceRecord) bool {
	return a.Name == b.Name && a.Type == b.Type && a.Class == b.Class
}

// dnskeyRRset builds the owner's DNSKEY RRset (a single key in this
// server, spec.md §3 DnssecKey) for apex DNSKEY queries and for the
// additional-section DNSKEY spec.md §4.2 requires when DO=1 and the
// question was DNSKEY.
func dnskeyRRset(apex wire.DomainName, signer *dnssec.Signer) []wire.ResourceRecord {
	if signer == nil {
		return nil
	}

	return []wire.ResourceRecord{
		{Name: apex, Type: wire.TypeDNSKEY, Class: wire.ClassIN, TTL: dnskeyTTL, Rdata: signer.Key.DNSKEY()},
	}
}

const dnskeyTTL = 3600
