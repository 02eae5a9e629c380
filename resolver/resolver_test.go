package resolver_test

import (
	"authdns/resolver"
	"authdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type noOpResolver struct {
	resolver.NextResolver
}

func (r *noOpResolver) Resolve(req *resolver.Request) (*resolver.Response, error) {
	return r.GetNext().Resolve(req)
}

func (r *noOpResolver) Configuration() []string { return nil }

type terminalResolver struct{}

func (terminalResolver) Resolve(req *resolver.Request) (*resolver.Response, error) {
	return &resolver.Response{Res: req.Query, RType: resolver.RESOLVED}, nil
}

func (terminalResolver) Configuration() []string { return nil }

var _ = Describe("Chain", func() {
	It("links each ChainedResolver to the next in order", func() {
		first := &noOpResolver{}
		second := &noOpResolver{}
		last := terminalResolver{}

		head := resolver.Chain(first, second, last)

		Expect(head).Should(BeIdenticalTo(first))
		Expect(first.GetNext()).Should(BeIdenticalTo(second))
		Expect(second.GetNext()).Should(Equal(last))
	})

	It("resolves a request by walking the whole chain", func() {
		first := &noOpResolver{}
		last := terminalResolver{}

		head := resolver.Chain(first, last)

		req := &resolver.Request{Query: &wire.Message{}}
		resp, err := head.Resolve(req)

		Expect(err).Should(Succeed())
		Expect(resp.RType).Should(Equal(resolver.RESOLVED))
	})
})

var _ = Describe("Name", func() {
	It("returns the unqualified type name", func() {
		Expect(resolver.Name(terminalResolver{})).Should(Equal("terminalResolver"))
	})
})

var _ = Describe("ResponseType", func() {
	It("stringifies known values", func() {
		Expect(resolver.CACHED.String()).Should(Equal("CACHED"))
		Expect(resolver.AUTHORITATIVE.String()).Should(Equal("AUTHORITATIVE"))
	})

	It("falls back to UNKNOWN for out-of-range values", func() {
		Expect(resolver.ResponseType(99).String()).Should(Equal("UNKNOWN"))
	})
})
