package dnssec_test

import (
	"net"

	"authdns/dnssec"
	"authdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Canonicalize", func() {
	It("lowercases the owner name and sorts records by canonical RDATA", func() {
		set := wire.RRset{
			Name: wire.DomainName("Example.TLD."), Type: wire.TypeA, Class: wire.ClassIN, TTL: 300,
			Records: []wire.Rdata{
				wire.ARdata{IP: net.ParseIP("203.0.113.20")},
				wire.ARdata{IP: net.ParseIP("203.0.113.10")},
			},
		}

		canon := dnssec.Canonicalize(set)

		Expect(canon.Name).To(Equal(wire.NewDomainName("example.tld")))
		Expect(canon.Records[0].(wire.ARdata).IP.String()).To(Equal("203.0.113.10"))
		Expect(canon.Records[1].(wire.ARdata).IP.String()).To(Equal("203.0.113.20"))
	})

	It("produces identical SignedData bytes regardless of input order", func() {
		a := wire.RRset{
			Name: wire.NewDomainName("example.tld"), Type: wire.TypeA, Class: wire.ClassIN, TTL: 300,
			Records: []wire.Rdata{
				wire.ARdata{IP: net.ParseIP("203.0.113.20")},
				wire.ARdata{IP: net.ParseIP("203.0.113.10")},
			},
		}
		b := wire.RRset{
			Name: a.Name, Type: a.Type, Class: a.Class, TTL: a.TTL,
			Records: []wire.Rdata{a.Records[1], a.Records[0]},
		}

		Expect(dnssec.SignedData([]byte{1, 2, 3}, a)).To(Equal(dnssec.SignedData([]byte{1, 2, 3}, b)))
	})
})
