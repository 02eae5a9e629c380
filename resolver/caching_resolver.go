package resolver

import (
	"fmt"
	"sync"
	"time"

	"authdns/cache/expirationcache"
	"authdns/config"
	"authdns/dnssec"
	"authdns/evt"
	"authdns/wire"

	"github.com/hako/durafmt"
	"github.com/sirupsen/logrus"
)

const cleanUpInterval = 5 * time.Minute

// cachedAnswer is what CachingResolver actually stores: the response
// sections built by the zone/forward chain, already signed if DO was
// requested. The 16-bit transaction id and question are NOT part of it —
// those belong to whichever request is being served right now (spec.md
// §8 Testable Property 7: answers are byte-identical modulo id).
type cachedAnswer struct {
	Rcode      uint8
	AA         bool
	Answers    []wire.ResourceRecord
	Authority  []wire.ResourceRecord
	Additional []wire.ResourceRecord
}

// sfCall is one in-flight resolution shared by every concurrent miss on
// the same CacheKey (spec.md §4.3 concurrency invariant).
type sfCall struct {
	done chan struct{}
	val  cachedAnswer
	ttl  time.Duration
	err  error
}

// CachingResolver is the outer stage of the pipeline: it consults the
// response cache, signs the RRsets of whatever the rest of the chain
// produces, and caches the signed result keyed by (qname, qtype, do)
// (spec.md §3 CacheKey, §4.4).
type CachingResolver struct {
	NextResolver
	cache    *expirationcache.ExpiringLRUCache[cachedAnswer]
	maxTTL   time.Duration
	apex     wire.DomainName
	signer   *dnssec.Signer
	maxSize  uint16
	mu       sync.Mutex
	inflight map[string]*sfCall
}

// NewCachingResolver builds the caching+signing stage for apex. signer
// may be nil, which disables signing entirely (spec.md §3 Config:
// dnssec_key_file absent).
func NewCachingResolver(cfg config.CachingConfig, apex wire.DomainName, signer *dnssec.Signer, maxPacketSize uint16) ChainedResolver {
	opts := []expirationcache.CacheOption[cachedAnswer]{
		expirationcache.WithCleanUpInterval[cachedAnswer](cleanUpInterval),
		expirationcache.WithOnExpiredFn[cachedAnswer](func(key string) (*cachedAnswer, time.Duration) {
			evt.Bus().Publish(evt.CacheEvicted, key)

			return nil, 0
		}),
	}

	if cfg.MaxItemsCount > 0 {
		opts = append(opts, expirationcache.WithMaxSize[cachedAnswer](uint(cfg.MaxItemsCount)))
	}

	return &CachingResolver{
		cache:    expirationcache.NewCache(opts...),
		maxTTL:   cfg.MaxCachingTime.ToDuration(),
		apex:     apex,
		signer:   signer,
		maxSize:  maxPacketSize,
		inflight: map[string]*sfCall{},
	}
}

// PinNSRecords installs the zone apex's NS RRset into the cache as a
// pinned, never-expiring entry (spec.md §4.3): it is available even
// before the zone store answers its first query and survives every
// eviction sweep.
func (r *CachingResolver) PinNSRecords(records []config.NSRecord) {
	if len(records) == 0 {
		return
	}

	var ns []wire.ResourceRecord

	for _, rec := range records {
		ns = append(ns, wire.ResourceRecord{
			Name: r.apex, Type: wire.TypeNS, Class: wire.ClassIN, TTL: rec.TTL,
			Rdata: wire.NSRdata{Name: wire.NewDomainName(rec.Target)},
		})
	}

	val := cachedAnswer{Rcode: wire.RcodeNoError, AA: true, Answers: ns}
	r.cache.Pin(cacheKey(r.apex, wire.TypeNS, false), &val)
}

// Configuration returns a current resolver configuration.
func (r *CachingResolver) Configuration() []string {
	result := []string{
		fmt.Sprintf("maxCacheTimeSec = %s", durafmt.Parse(r.maxTTL)),
		fmt.Sprintf("cache items count = %d", r.cache.TotalCount()),
	}

	if r.signer == nil {
		result = append(result, "dnssec signing disabled")
	} else {
		result = append(result, fmt.Sprintf("dnssec signing enabled, key tag = %d", r.signer.Key.KeyTag))
	}

	return result
}

func cacheKey(name wire.DomainName, qtype wire.RecordType, do bool) string {
	return fmt.Sprintf("%s|%d|%t", wire.NewDomainName(string(name)), qtype, do)
}

// Resolve implements the cache lookup / single-flight / sign / insert
// cycle described in spec.md §4.2 and §4.3.
func (r *CachingResolver) Resolve(req *Request) (*Response, error) {
	logger := withPrefix(req.Log, "caching_resolver")

	q := req.Query.Questions[0]
	name := wire.NewDomainName(string(q.Name))
	do := requestDO(req.Query)

	if dnskeyAnswer, ok := r.apexDNSKEYAnswer(name, q.Type, do); ok {
		return r.finalize(req, dnskeyAnswer, do, CACHED, "DNSKEY"), nil
	}

	key := cacheKey(name, q.Type, do)

	if val, ttl := r.cache.Get(key); val != nil {
		logger.Debug("cache hit")
		evt.Bus().Publish(evt.CacheHit, key)

		return r.finalize(req, decrementTTLs(*val, ttl), do, CACHED, "CACHED"), nil
	}

	logger.Debug("cache miss")
	evt.Bus().Publish(evt.CacheMiss, key)

	val, err := r.resolveSingleFlight(key, req, do, logger)
	if err != nil {
		return nil, err
	}

	return r.finalize(req, val, do, RESOLVED, "RESOLVED"), nil
}

func (r *CachingResolver) resolveSingleFlight(key string, req *Request, do bool, logger *logrus.Entry) (cachedAnswer, error) {
	r.mu.Lock()

	if call, ok := r.inflight[key]; ok {
		r.mu.Unlock()
		logger.Debug("rendezvousing with in-flight forward")
		<-call.done

		return call.val, call.err
	}

	call := &sfCall{done: make(chan struct{})}
	r.inflight[key] = call
	r.mu.Unlock()

	call.val, call.ttl, call.err = r.resolveAndSign(req, do)

	r.mu.Lock()
	delete(r.inflight, key)
	r.mu.Unlock()

	close(call.done)

	if call.err == nil {
		r.store(key, call.val, call.ttl)
	}

	return call.val, call.err
}

func (r *CachingResolver) resolveAndSign(req *Request, do bool) (cachedAnswer, time.Duration, error) {
	resp, err := r.GetNext().Resolve(req)
	if err != nil {
		return cachedAnswer{}, 0, err
	}

	rcode := resp.Res.Header.Flags.Rcode()
	aa := resp.Res.Header.Flags.AA()

	answers := resp.Res.Answers
	authority := resp.Res.Authority
	additional := resp.Res.Additional

	if do && r.signer != nil {
		logger := withPrefix(req.Log, "dnssec")
		answers = signSection(answers, r.apex, r.signer, logger)
		authority = signSection(authority, r.apex, r.signer, logger)
	}

	ttl := minTTL(append(append([]wire.ResourceRecord{}, answers...), authority...))
	if r.maxTTL > 0 && ttl > r.maxTTL {
		ttl = r.maxTTL
	}

	return cachedAnswer{Rcode: rcode, AA: aa, Answers: answers, Authority: authority, Additional: additional}, ttl, nil
}

func (r *CachingResolver) store(key string, val cachedAnswer, ttl time.Duration) {
	if val.Rcode != wire.RcodeNoError && val.Rcode != wire.RcodeNXDomain {
		return
	}

	if ttl <= 0 {
		return
	}

	r.cache.Put(key, &val, ttl)
}

// apexDNSKEYAnswer serves the zone apex's DNSKEY RRset directly from the
// loaded signing key rather than the zone store (spec.md §4.2 "DNSKEY
// and DS queries for the apex take the special path").
func (r *CachingResolver) apexDNSKEYAnswer(name wire.DomainName, qtype wire.RecordType, do bool) (cachedAnswer, bool) {
	if qtype != wire.TypeDNSKEY || !name.IsSubdomainOf(r.apex) || name != r.apex || r.signer == nil {
		return cachedAnswer{}, false
	}

	answers := dnskeyRRset(r.apex, r.signer)

	val := cachedAnswer{Rcode: wire.RcodeNoError, AA: true}

	if do {
		answers = signSection(answers, r.apex, r.signer, logrus.NewEntry(logrus.New()))
		val.Additional = dnskeyRRset(r.apex, r.signer)
	}

	val.Answers = answers

	return val, true
}

// finalize assembles a wire.Message for req from val: the client's own
// id/question, an echoed OPT record, and truncation is left to the
// transport layer (spec.md §4.5).
func (r *CachingResolver) finalize(req *Request, val cachedAnswer, do bool, rtype ResponseType, reason string) *Response {
	msg := newResponse(req, val.Rcode, val.AA, val.Answers)
	msg.Authority = val.Authority
	msg.Additional = val.Additional

	if opt := wire.FindOPT(req.Query.Additional); opt != nil {
		echoed := wire.NewOPT(r.maxSize, do)
		msg.Additional = append(msg.Additional, echoed)
	}

	return &Response{Res: msg, RType: rtype, Reason: reason}
}

func requestDO(q *wire.Message) bool {
	if opt := wire.FindOPT(q.Additional); opt != nil {
		return opt.DO()
	}

	return false
}

// decrementTTLs rewrites every record's served TTL to the entry's
// remaining lifetime (spec.md §3 CacheEntry: "served responses use a
// decremented TTL"). A pinned entry (e.g. the apex NS RRset) reports a
// zero remaining duration since it never expires; such entries are left
// untouched so they keep serving their configured TTL rather than 0.
func decrementTTLs(val cachedAnswer, remaining time.Duration) cachedAnswer {
	if remaining <= 0 {
		return val
	}

	ttl := uint32(remaining.Seconds())

	adjust := func(rrs []wire.ResourceRecord) []wire.ResourceRecord {
		out := make([]wire.ResourceRecord, len(rrs))

		for i, rr := range rrs {
			rr.TTL = ttl
			out[i] = rr
		}

		return out
	}

	val.Answers = adjust(val.Answers)
	val.Authority = adjust(val.Authority)

	return val
}

func minTTL(rrs []wire.ResourceRecord) time.Duration {
	var min uint32

	for i, rr := range rrs {
		if i == 0 || rr.TTL < min {
			min = rr.TTL
		}
	}

	return time.Duration(min) * time.Second
}
