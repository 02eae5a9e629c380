package resolver

import (
	"context"
	"errors"
	"fmt"

	"authdns/util"
	"authdns/wire"
	"authdns/zonestore"

	"github.com/sirupsen/logrus"
)

// maxCNAMEHops bounds CNAME chasing within the zone (spec.md §4.2).
const maxCNAMEHops = 8

// ZoneResolver answers queries against the persistent zone store. A zone
// miss for an in-apex name yields an authoritative NXDOMAIN when the
// server is configured as authoritative; any other miss is delegated to
// the next resolver in the chain (the upstream forwarder).
type ZoneResolver struct {
	NextResolver
	store         zonestore.Store
	apex          wire.DomainName
	authoritative bool
	enableIPv6    bool
}

// NewZoneResolver creates a resolver instance answering for apex from store.
// enableIPv6 gates whether AAAA queries are ever answered from the store;
// false means every AAAA query within the apex is REFUSED outright.
func NewZoneResolver(store zonestore.Store, apex wire.DomainName, authoritative, enableIPv6 bool) ChainedResolver {
	return &ZoneResolver{store: store, apex: apex, authoritative: authoritative, enableIPv6: enableIPv6}
}

// Configuration returns a current resolver configuration
func (r *ZoneResolver) Configuration() []string {
	return []string{
		fmt.Sprintf("apex = %s", r.apex),
		fmt.Sprintf("authoritative = %t", r.authoritative),
		fmt.Sprintf("enable_ipv6 = %t", r.enableIPv6),
	}
}

// Resolve classifies the question against the configured apex and either
// answers from the zone store or delegates to the next resolver.
func (r *ZoneResolver) Resolve(req *Request) (*Response, error) {
	logger := withPrefix(req.Log, "zone_resolver")

	q := req.Query.Questions[0]
	name := wire.NewDomainName(string(q.Name))

	if !name.IsSubdomainOf(r.apex) {
		logger.WithField("next_resolver", Name(r.GetNext())).Debug("outside apex, delegating")

		return r.GetNext().Resolve(req)
	}

	if q.Type == wire.TypeAAAA && !r.enableIPv6 {
		logger.Debug("AAAA query refused, ipv6 disabled")

		return &Response{
			Res: newResponse(req, wire.RcodeRefused, r.authoritative, nil), RType: REFUSED, Reason: "IPV6_DISABLED",
		}, nil
	}

	return r.resolveInZone(req, name, q.Type, logger)
}

func (r *ZoneResolver) resolveInZone(
	req *Request, name wire.DomainName, qtype wire.RecordType, logger *logrus.Entry,
) (*Response, error) {
	ctx := context.Background()

	answers, rcode, err := r.collectAnswers(ctx, name, qtype, 0)
	if err != nil {
		logger.WithError(err).Error("zone store query failed")

		return &Response{
			Res: newResponse(req, wire.RcodeServFail, r.authoritative, nil), RType: AUTHORITATIVE, Reason: "ZONESTORE_ERROR",
		}, nil
	}

	if rcode == wire.RcodeNXDomain {
		if !r.authoritative {
			logger.WithField("next_resolver", Name(r.GetNext())).Debug("zone miss, forwarding")

			return r.GetNext().Resolve(req)
		}

		return r.nxdomainResponse(ctx, req)
	}

	msg := newResponse(req, uint8(rcode), r.authoritative, answers)
	msg.Authority = r.apexNSRecords(ctx)
	msg.Additional = r.glueRecords(ctx, msg.Answers, msg.Authority)

	return &Response{Res: msg, RType: AUTHORITATIVE, Reason: "ZONE"}, nil
}

// collectAnswers resolves (name, qtype) against the store, chasing CNAMEs
// up to maxCNAMEHops. It returns the built answer RRs and the rcode the
// caller should use (NOERROR, NXDOMAIN, or SERVFAIL on chain overflow).
func (r *ZoneResolver) collectAnswers(
	ctx context.Context, name wire.DomainName, qtype wire.RecordType, hop int,
) ([]wire.ResourceRecord, uint8, error) {
	if qtype == wire.TypeANY {
		rows, err := r.store.GetAll(ctx, string(name))
		if err != nil {
			return nil, 0, err
		}

		if len(rows) == 0 {
			return nil, wire.RcodeNXDomain, nil
		}

		return rowsToAllRRs(name, rows), wire.RcodeNoError, nil
	}

	rows, err := r.store.Get(ctx, string(name), qtype)
	if err != nil {
		return nil, 0, err
	}

	if len(rows) > 0 {
		rrs, err := rowsToRRs(name, qtype, rows)
		if err != nil {
			return nil, 0, err
		}

		return rrs, wire.RcodeNoError, nil
	}

	if qtype == wire.TypeCNAME {
		return nil, wire.RcodeNXDomain, nil
	}

	cnameRows, err := r.store.Get(ctx, string(name), wire.TypeCNAME)
	if err != nil {
		return nil, 0, err
	}

	if len(cnameRows) == 0 {
		return nil, wire.RcodeNXDomain, nil
	}

	cnameRR, err := rowsToRRs(name, wire.TypeCNAME, cnameRows[:1])
	if err != nil {
		return nil, 0, err
	}

	if hop >= maxCNAMEHops {
		return cnameRR, wire.RcodeServFail, nil
	}

	target := cnameRR[0].Rdata.(wire.CNAMERdata).Name

	rest, rcode, err := r.collectAnswers(ctx, target, qtype, hop+1)
	if err != nil {
		return nil, 0, err
	}

	return append(cnameRR, rest...), rcode, nil
}

func (r *ZoneResolver) nxdomainResponse(ctx context.Context, req *Request) (*Response, error) {
	soaRows, err := r.store.Get(ctx, string(r.apex), wire.TypeSOA)
	if err != nil || len(soaRows) == 0 {
		return &Response{
			Res: newResponse(req, wire.RcodeServFail, true, nil), RType: AUTHORITATIVE, Reason: "NO_SOA",
		}, nil
	}

	soaRR, err := rowsToRRs(r.apex, wire.TypeSOA, soaRows[:1])
	if err != nil {
		return &Response{
			Res: newResponse(req, wire.RcodeServFail, true, nil), RType: AUTHORITATIVE, Reason: "BAD_SOA",
		}, nil
	}

	soa, ok := soaRR[0].Rdata.(wire.SOARdata)
	if !ok {
		return nil, errors.New("resolver: apex SOA row decoded to an unexpected type")
	}

	soaRR[0].TTL = soa.Minimum

	msg := newResponse(req, wire.RcodeNXDomain, true, nil)
	msg.Authority = soaRR

	return &Response{Res: msg, RType: AUTHORITATIVE, Reason: "NXDOMAIN"}, nil
}

func (r *ZoneResolver) apexNSRecords(ctx context.Context) []wire.ResourceRecord {
	rows, err := r.store.Get(ctx, string(r.apex), wire.TypeNS)
	if err != nil {
		return nil
	}

	rrs, err := rowsToRRs(r.apex, wire.TypeNS, rows)
	if err != nil {
		return nil
	}

	return rrs
}

// glueRecords returns A/AAAA records for every in-zone NS target named in
// the given sections, as required for the additional section of a
// positive authoritative answer (spec.md §4.2).
func (r *ZoneResolver) glueRecords(ctx context.Context, sections ...[]wire.ResourceRecord) []wire.ResourceRecord {
	var glue []wire.ResourceRecord

	seen := map[wire.DomainName]bool{}

	for _, rrs := range sections {
		nsTargets := util.ConvertEach(filterNS(rrs), func(rr wire.ResourceRecord) wire.DomainName {
			return rr.Rdata.(wire.NSRdata).Name
		})

		for _, target := range nsTargets {
			if !target.IsSubdomainOf(r.apex) || seen[target] {
				continue
			}

			seen[target] = true

			for _, t := range []wire.RecordType{wire.TypeA, wire.TypeAAAA} {
				rows, err := r.store.Get(ctx, string(target), t)
				if err != nil || len(rows) == 0 {
					continue
				}

				rrset, err := rowsToRRs(target, t, rows)
				if err == nil {
					glue = util.ConcatSlices(glue, rrset)
				}
			}
		}
	}

	return glue
}

func filterNS(rrs []wire.ResourceRecord) []wire.ResourceRecord {
	var ns []wire.ResourceRecord

	for _, rr := range rrs {
		if rr.Type == wire.TypeNS {
			ns = append(ns, rr)
		}
	}

	return ns
}

func rowsToRRs(name wire.DomainName, qtype wire.RecordType, rows []zonestore.Row) ([]wire.ResourceRecord, error) {
	rrs := make([]wire.ResourceRecord, 0, len(rows))

	for _, row := range rows {
		rd, err := zonestore.ToRdata(qtype, row.Value)
		if err != nil {
			return nil, err
		}

		rrs = append(rrs, wire.ResourceRecord{Name: name, Type: qtype, Class: wire.ClassIN, TTL: row.TTL, Rdata: rd})
	}

	return rrs, nil
}

func rowsToAllRRs(name wire.DomainName, rows []zonestore.Row) []wire.ResourceRecord {
	rrs := make([]wire.ResourceRecord, 0, len(rows))

	for _, row := range rows {
		rd, err := zonestore.ToRdata(row.Type, row.Value)
		if err != nil {
			continue
		}

		rrs = append(rrs, wire.ResourceRecord{Name: name, Type: row.Type, Class: wire.ClassIN, TTL: row.TTL, Rdata: rd})
	}

	return rrs
}
