package dnssec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"net"

	"authdns/dnssec"
	"authdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func mustGenerateKey(owner wire.DomainName) dnssec.Key {
	priv, err := rsa.GenerateKey(rand.Reader, 1024)
	Expect(err).NotTo(HaveOccurred())

	pub := priv.PublicKey
	pubBytes := append(append([]byte{}, bigIntBytes(pub.E)...), pub.N.Bytes()...)

	key := dnssec.Key{
		Owner: owner, Flags: 257, Protocol: 3, Algorithm: dnssec.AlgorithmRSASHA256,
		PublicKey: pubBytes, Private: priv,
	}
	key.KeyTag = dnssec.KeyTag(key.DNSKEY())

	return key
}

func bigIntBytes(e int) []byte {
	// minimal big-endian encoding of the public exponent, BIND style.
	switch {
	case e < 1<<8:
		return []byte{byte(e)}
	case e < 1<<16:
		return []byte{byte(e >> 8), byte(e)}
	default:
		return []byte{byte(e >> 16), byte(e >> 8), byte(e)}
	}
}

var _ = Describe("Signer", func() {
	var (
		apex wire.DomainName
		key  dnssec.Key
		set  wire.RRset
	)

	BeforeEach(func() {
		apex = wire.NewDomainName("example.tld")
		key = mustGenerateKey(apex)
		set = wire.RRset{
			Name: apex, Type: wire.TypeA, Class: wire.ClassIN, TTL: 3600,
			Records: []wire.Rdata{
				wire.ARdata{IP: net.ParseIP("203.0.113.10")},
				wire.ARdata{IP: net.ParseIP("203.0.113.11")},
			},
		}
	})

	It("rejects keys with an unsupported algorithm", func() {
		key.Algorithm = 13 // ECDSAP256SHA256

		_, err := dnssec.NewSigner(key)
		Expect(err).To(HaveOccurred())
	})

	It("produces an RRSIG that verifies against the public key", func() {
		signer, err := dnssec.NewSigner(key)
		Expect(err).NotTo(HaveOccurred())

		sig, err := signer.Sign(set, apex)
		Expect(err).NotTo(HaveOccurred())

		Expect(sig.TypeCovered).To(Equal(wire.TypeA))
		Expect(sig.KeyTag).To(Equal(key.KeyTag))
		Expect(sig.Labels).To(Equal(uint8(2)))

		Expect(dnssec.Verify(set, sig, &key.Private.PublicKey)).To(Succeed())
	})

	It("produces identical signed data for two permutations of the same RRset", func() {
		reversed := wire.RRset{
			Name: set.Name, Type: set.Type, Class: set.Class, TTL: set.TTL,
			Records: []wire.Rdata{set.Records[1], set.Records[0]},
		}

		a := dnssec.SignedData([]byte("prefix"), set)
		b := dnssec.SignedData([]byte("prefix"), reversed)

		Expect(a).To(Equal(b))
	})

	It("fails to verify a tampered RRset", func() {
		signer, err := dnssec.NewSigner(key)
		Expect(err).NotTo(HaveOccurred())

		sig, err := signer.Sign(set, apex)
		Expect(err).NotTo(HaveOccurred())

		tampered := wire.RRset{
			Name: set.Name, Type: set.Type, Class: set.Class, TTL: set.TTL,
			Records: []wire.Rdata{wire.ARdata{IP: net.ParseIP("198.51.100.1")}},
		}

		Expect(dnssec.Verify(tampered, sig, &key.Private.PublicKey)).To(HaveOccurred())
	})
})
