package resolver_test

import (
	"crypto/rand"
	"crypto/rsa"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"authdns/config"
	"authdns/dnssec"
	"authdns/resolver"
	"authdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

func mustGenerateSigner(owner wire.DomainName) *dnssec.Signer {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	Expect(err).NotTo(HaveOccurred())

	pub := priv.PublicKey
	pubBytes := append([]byte{byte(pub.E)}, pub.N.Bytes()...)

	key := dnssec.Key{
		Owner: owner, Flags: 257, Protocol: 3, Algorithm: dnssec.AlgorithmRSASHA256,
		PublicKey: pubBytes, Private: priv,
	}
	key.KeyTag = dnssec.KeyTag(key.DNSKEY())

	signer, err := dnssec.NewSigner(key)
	Expect(err).NotTo(HaveOccurred())

	return signer
}

// countingResolver answers every query with a fixed A record, counting
// how many times it was actually invoked — used to assert single-flight
// and cache-hit behavior without touching real I/O.
type countingResolver struct {
	resolver.NextResolver
	calls uint32
	ttl   uint32
	delay time.Duration
}

func (r *countingResolver) Configuration() []string { return nil }

func (r *countingResolver) Resolve(req *resolver.Request) (*resolver.Response, error) {
	atomic.AddUint32(&r.calls, 1)

	if r.delay > 0 {
		time.Sleep(r.delay)
	}

	q := req.Query.Questions[0]
	msg := &wire.Message{
		Header:    wire.Header{Flags: wire.Flags(0).WithQR(true).WithAA(true)},
		Questions: req.Query.Questions,
		Answers: []wire.ResourceRecord{
			{Name: q.Name, Type: wire.TypeA, Class: wire.ClassIN, TTL: r.ttl, Rdata: wire.ARdata{IP: net.ParseIP("203.0.113.10")}},
		},
	}

	return &resolver.Response{Res: msg, RType: resolver.AUTHORITATIVE}, nil
}

func newTestRequest(name string) *resolver.Request {
	return &resolver.Request{
		Log: logrus.NewEntry(logrus.New()),
		Query: &wire.Message{
			Header:    wire.Header{ID: 42},
			Questions: []wire.Question{{Name: wire.NewDomainName(name), Type: wire.TypeA, Class: wire.ClassIN}},
		},
	}
}

var _ = Describe("CachingResolver", func() {
	var (
		next *countingResolver
		sut  resolver.ChainedResolver
	)

	BeforeEach(func() {
		next = &countingResolver{ttl: 300}
		sut = resolver.NewCachingResolver(config.CachingConfig{}, wire.NewDomainName("example.tld"), nil, 4096)
		sut.Next(next)
	})

	It("delegates on a miss and caches the result", func() {
		req := newTestRequest("example.tld")

		resp, err := sut.Resolve(req)
		Expect(err).Should(Succeed())
		Expect(resp.RType).Should(Equal(resolver.RESOLVED))
		Expect(resp.Res.Answers).Should(HaveLen(1))

		resp2, err := sut.Resolve(req)
		Expect(err).Should(Succeed())
		Expect(resp2.RType).Should(Equal(resolver.CACHED))

		Expect(atomic.LoadUint32(&next.calls)).Should(Equal(uint32(1)))
	})

	It("decrements the served TTL on a later hit", func() {
		req := newTestRequest("example.tld")

		_, err := sut.Resolve(req)
		Expect(err).Should(Succeed())

		time.Sleep(1100 * time.Millisecond)

		resp, err := sut.Resolve(req)
		Expect(err).Should(Succeed())
		Expect(resp.Res.Answers[0].TTL).Should(BeNumerically("<", 300))
	})

	It("preserves the requesting id and question across a cache hit", func() {
		req := newTestRequest("example.tld")
		_, err := sut.Resolve(req)
		Expect(err).Should(Succeed())

		req2 := newTestRequest("example.tld")
		req2.Query.Header.ID = 7

		resp, err := sut.Resolve(req2)
		Expect(err).Should(Succeed())
		Expect(resp.Res.Header.ID).Should(Equal(uint16(7)))
	})

	It("single-flights concurrent misses for the same key", func() {
		next.delay = 50 * time.Millisecond

		var wg sync.WaitGroup

		for i := 0; i < 10; i++ {
			wg.Add(1)

			go func() {
				defer wg.Done()
				defer GinkgoRecover()

				_, err := sut.Resolve(newTestRequest("concurrent.example.tld"))
				Expect(err).Should(Succeed())
			}()
		}

		wg.Wait()

		Expect(atomic.LoadUint32(&next.calls)).Should(Equal(uint32(1)))
	})

	When("a signing key is configured", func() {
		BeforeEach(func() {
			signer := mustGenerateSigner(wire.NewDomainName("example.tld"))

			sut = resolver.NewCachingResolver(config.CachingConfig{}, wire.NewDomainName("example.tld"), signer, 4096)
			sut.Next(next)
		})

		It("appends an RRSIG when the client sets the DO bit", func() {
			req := newTestRequest("example.tld")
			req.Query.Additional = []wire.ResourceRecord{wire.NewOPT(4096, true)}

			resp, err := sut.Resolve(req)
			Expect(err).Should(Succeed())

			Expect(resp.Res.Answers).Should(HaveLen(2))
			Expect(resp.Res.Answers[1].Type).Should(Equal(wire.TypeRRSIG))
		})

		It("serves the apex DNSKEY directly without consulting the next resolver", func() {
			req := &resolver.Request{
				Log: logrus.NewEntry(logrus.New()),
				Query: &wire.Message{
					Questions: []wire.Question{{Name: wire.NewDomainName("example.tld"), Type: wire.TypeDNSKEY, Class: wire.ClassIN}},
				},
			}

			resp, err := sut.Resolve(req)
			Expect(err).Should(Succeed())
			Expect(resp.Res.Answers[0].Type).Should(Equal(wire.TypeDNSKEY))
			Expect(atomic.LoadUint32(&next.calls)).Should(Equal(uint32(0)))
		})
	})
})
