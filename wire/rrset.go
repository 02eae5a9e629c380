package wire

// RRset groups resource records that share an owner name, type and class
// (spec.md §3, GLOSSARY). TTL is the minimum of the TTLs of the records
// it was built from.
type RRset struct {
	Name    DomainName
	Type    RecordType
	Class   Class
	TTL     uint32
	Records []Rdata
}

// NewRRset builds an RRset from a non-empty slice of records that all
// share the same owner, type and class. The caller is responsible for
// that invariant; NewRRset enforces only the TTL-minimum rule.
func NewRRset(rrs []ResourceRecord) RRset {
	if len(rrs) == 0 {
		return RRset{}
	}

	set := RRset{Name: rrs[0].Name, Type: rrs[0].Type, Class: rrs[0].Class, TTL: rrs[0].TTL}

	for _, rr := range rrs {
		if rr.TTL < set.TTL {
			set.TTL = rr.TTL
		}

		set.Records = append(set.Records, rr.Rdata)
	}

	return set
}

// ResourceRecords expands the RRset back into individual records, all
// sharing the set's TTL.
func (s RRset) ResourceRecords() []ResourceRecord {
	rrs := make([]ResourceRecord, 0, len(s.Records))

	for _, rd := range s.Records {
		rrs = append(rrs, ResourceRecord{Name: s.Name, Type: s.Type, Class: s.Class, TTL: s.TTL, Rdata: rd})
	}

	return rrs
}
