package resolver_test

import (
	"context"
	"errors"

	"authdns/resolver"
	"authdns/wire"
	"authdns/zonestore"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"
)

func zoneRequest(name string, qtype wire.RecordType) *resolver.Request {
	return &resolver.Request{
		Log: logrus.NewEntry(logrus.New()),
		Query: &wire.Message{
			Header:    wire.Header{ID: 1},
			Questions: []wire.Question{{Name: wire.NewDomainName(name), Type: qtype, Class: wire.ClassIN}},
		},
	}
}

var _ = Describe("ZoneResolver", func() {
	var store *mockStore

	BeforeEach(func() {
		store = &mockStore{}
	})

	When("authoritative", func() {
		var sut resolver.ChainedResolver

		BeforeEach(func() {
			sut = resolver.NewZoneResolver(store, wire.NewDomainName("example.tld"), true, true)
		})

		It("answers an A query straight from the store", func() {
			store.On("Get", mock.Anything, "www.example.tld.", wire.TypeA).
				Return([]zonestore.Row{{Type: wire.TypeA, Value: "203.0.113.10", TTL: 300}}, nil)
			store.On("Get", mock.Anything, "example.tld.", wire.TypeNS).
				Return([]zonestore.Row{}, nil)

			resp, err := sut.Resolve(zoneRequest("www.example.tld", wire.TypeA))
			Expect(err).Should(Succeed())
			Expect(resp.RType).Should(Equal(resolver.AUTHORITATIVE))
			Expect(resp.Res.Answers).Should(HaveLen(1))
			Expect(resp.Res.Answers[0].Type).Should(Equal(wire.TypeA))
		})

		It("returns an NXDOMAIN with the apex SOA in authority", func() {
			store.On("Get", mock.Anything, "missing.example.tld.", wire.TypeA).
				Return([]zonestore.Row{}, nil)
			store.On("Get", mock.Anything, "missing.example.tld.", wire.TypeCNAME).
				Return([]zonestore.Row{}, nil)
			store.On("Get", mock.Anything, "example.tld.", wire.TypeSOA).
				Return([]zonestore.Row{{
					Type: wire.TypeSOA, Value: "ns1.example.tld hostmaster.example.tld 2024010101 3600 900 604800 300", TTL: 300,
				}}, nil)

			resp, err := sut.Resolve(zoneRequest("missing.example.tld", wire.TypeA))
			Expect(err).Should(Succeed())
			Expect(resp.Res.Header.Flags.Rcode()).Should(Equal(uint8(wire.RcodeNXDomain)))
			Expect(resp.Res.Authority).Should(HaveLen(1))
			Expect(resp.Res.Authority[0].Type).Should(Equal(wire.TypeSOA))
			Expect(resp.Res.Authority[0].TTL).Should(Equal(uint32(300)))
		})

		It("chases a CNAME to its target", func() {
			store.On("Get", mock.Anything, "alias.example.tld.", wire.TypeA).
				Return([]zonestore.Row{}, nil)
			store.On("Get", mock.Anything, "alias.example.tld.", wire.TypeCNAME).
				Return([]zonestore.Row{{Type: wire.TypeCNAME, Value: "target.example.tld", TTL: 300}}, nil)
			store.On("Get", mock.Anything, "target.example.tld.", wire.TypeA).
				Return([]zonestore.Row{{Type: wire.TypeA, Value: "203.0.113.20", TTL: 300}}, nil)
			store.On("Get", mock.Anything, "example.tld.", wire.TypeNS).
				Return([]zonestore.Row{}, nil)

			resp, err := sut.Resolve(zoneRequest("alias.example.tld", wire.TypeA))
			Expect(err).Should(Succeed())
			Expect(resp.Res.Answers).Should(HaveLen(2))
			Expect(resp.Res.Answers[0].Type).Should(Equal(wire.TypeCNAME))
			Expect(resp.Res.Answers[1].Type).Should(Equal(wire.TypeA))
		})

		It("attaches glue records for in-zone NS targets", func() {
			store.On("Get", mock.Anything, "example.tld.", wire.TypeA).
				Return([]zonestore.Row{{Type: wire.TypeA, Value: "203.0.113.10", TTL: 300}}, nil)
			store.On("Get", mock.Anything, "example.tld.", wire.TypeNS).
				Return([]zonestore.Row{{Type: wire.TypeNS, Value: "ns1.example.tld", TTL: 300}}, nil)
			store.On("Get", mock.Anything, "ns1.example.tld.", wire.TypeA).
				Return([]zonestore.Row{{Type: wire.TypeA, Value: "203.0.113.53", TTL: 300}}, nil)
			store.On("Get", mock.Anything, "ns1.example.tld.", wire.TypeAAAA).
				Return([]zonestore.Row{}, nil)

			resp, err := sut.Resolve(zoneRequest("example.tld", wire.TypeA))
			Expect(err).Should(Succeed())
			Expect(resp.Res.Authority).Should(HaveLen(1))
			Expect(resp.Res.Additional).Should(HaveLen(1))
			Expect(resp.Res.Additional[0].Type).Should(Equal(wire.TypeA))
			Expect(resp.Res.Additional[0].Name).Should(Equal(wire.NewDomainName("ns1.example.tld")))
		})

		It("returns SERVFAIL when the store errors", func() {
			store.On("Get", mock.Anything, "www.example.tld.", wire.TypeA).
				Return(nil, errors.New("db unreachable"))

			resp, err := sut.Resolve(zoneRequest("www.example.tld", wire.TypeA))
			Expect(err).Should(Succeed())
			Expect(resp.Res.Header.Flags.Rcode()).Should(Equal(uint8(wire.RcodeServFail)))
		})
	})

	When("ipv6 is disabled", func() {
		It("refuses an AAAA query without touching the store", func() {
			sut := resolver.NewZoneResolver(store, wire.NewDomainName("example.tld"), true, false)

			resp, err := sut.Resolve(zoneRequest("www.example.tld", wire.TypeAAAA))
			Expect(err).Should(Succeed())
			Expect(resp.RType).Should(Equal(resolver.REFUSED))
			Expect(resp.Res.Header.Flags.Rcode()).Should(Equal(uint8(wire.RcodeRefused)))
			store.AssertNotCalled(GinkgoT(), "Get", mock.Anything, mock.Anything, mock.Anything)
		})
	})

	When("not authoritative", func() {
		It("delegates names outside the apex to the next resolver", func() {
			sut := resolver.NewZoneResolver(store, wire.NewDomainName("example.tld"), false, true)
			next := &countingResolver{ttl: 300}
			sut.Next(next)

			_, err := sut.Resolve(zoneRequest("other.tld", wire.TypeA))
			Expect(err).Should(Succeed())
			Expect(next.calls).Should(Equal(uint32(1)))
		})

		It("forwards an in-apex miss instead of answering NXDOMAIN", func() {
			sut := resolver.NewZoneResolver(store, wire.NewDomainName("example.tld"), false, true)
			next := &countingResolver{ttl: 300}
			sut.Next(next)

			store.On("Get", mock.Anything, "missing.example.tld.", wire.TypeA).
				Return([]zonestore.Row{}, nil)
			store.On("Get", mock.Anything, "missing.example.tld.", wire.TypeCNAME).
				Return([]zonestore.Row{}, nil)

			_, err := sut.Resolve(zoneRequest("missing.example.tld", wire.TypeA))
			Expect(err).Should(Succeed())
			Expect(next.calls).Should(Equal(uint32(1)))
		})
	})
})

var _ = Describe("ZoneResolver ANY queries", func() {
	It("returns every stored record type for the name", func() {
		store := &mockStore{}
		store.On("GetAll", mock.Anything, "www.example.tld.").
			Return([]zonestore.Row{
				{Type: wire.TypeA, Value: "203.0.113.10", TTL: 300},
				{Type: wire.TypeAAAA, Value: "2001:db8::1", TTL: 300},
			}, nil)
		store.On("Get", mock.Anything, "example.tld.", wire.TypeNS).
			Return([]zonestore.Row{}, nil)

		sut := resolver.NewZoneResolver(store, wire.NewDomainName("example.tld"), true, true)

		resp, err := sut.Resolve(zoneRequest("www.example.tld", wire.TypeANY))
		Expect(err).Should(Succeed())
		Expect(resp.Res.Answers).Should(HaveLen(2))
	})

	It("returns NXDOMAIN from ANY when nothing is stored", func() {
		store := &mockStore{}
		store.On("GetAll", mock.Anything, "missing.example.tld.").
			Return([]zonestore.Row{}, nil)
		store.On("Get", mock.Anything, "example.tld.", wire.TypeSOA).
			Return([]zonestore.Row{{
				Type: wire.TypeSOA, Value: "ns1.example.tld hostmaster.example.tld 1 3600 900 604800 300", TTL: 300,
			}}, nil)

		sut := resolver.NewZoneResolver(store, wire.NewDomainName("example.tld"), true, true)

		resp, err := sut.Resolve(zoneRequest("missing.example.tld", wire.TypeANY))
		Expect(err).Should(Succeed())
		Expect(resp.Res.Header.Flags.Rcode()).Should(Equal(uint8(wire.RcodeNXDomain)))
	})
})

var _ = Describe("zone resolver context plumbing", func() {
	It("passes a non-nil context to the store", func() {
		store := &mockStore{}
		store.On("Get", mock.MatchedBy(func(ctx context.Context) bool { return ctx != nil }), "www.example.tld.", wire.TypeA).
			Return([]zonestore.Row{{Type: wire.TypeA, Value: "203.0.113.10", TTL: 300}}, nil)
		store.On("Get", mock.Anything, "example.tld.", wire.TypeNS).
			Return([]zonestore.Row{}, nil)

		sut := resolver.NewZoneResolver(store, wire.NewDomainName("example.tld"), true, true)

		_, err := sut.Resolve(zoneRequest("www.example.tld", wire.TypeA))
		Expect(err).Should(Succeed())
	})
})
