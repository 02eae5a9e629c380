package resolver_test

import (
	"errors"

	"authdns/resolver"
	"authdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Classify", func() {
	question := func(class wire.Class) *wire.Message {
		return &wire.Message{
			Questions: []wire.Question{
				{Name: wire.NewDomainName("example.tld"), Type: wire.TypeA, Class: class},
			},
		}
	}

	It("accepts a well-formed IN QUERY", func() {
		Expect(resolver.Classify(question(wire.ClassIN))).Should(BeNil())
	})

	It("rejects a non-QUERY opcode as UnsupportedOpcode/NOTIMP", func() {
		msg := question(wire.ClassIN)
		msg.Header.Flags = msg.Header.Flags.WithOpcode(1)

		err := resolver.Classify(msg)
		Expect(err).ShouldNot(BeNil())
		Expect(err.Kind).Should(Equal(resolver.KindUnsupportedOpcode))
		Expect(err.Rcode).Should(Equal(uint8(wire.RcodeNotImp)))
	})

	It("rejects a non-IN class as UnsupportedClass/REFUSED", func() {
		err := resolver.Classify(question(wire.Class(3)))
		Expect(err).ShouldNot(BeNil())
		Expect(err.Kind).Should(Equal(resolver.KindUnsupportedClass))
		Expect(err.Rcode).Should(Equal(uint8(wire.RcodeRefused)))
	})

	It("rejects a query with more than one question", func() {
		msg := question(wire.ClassIN)
		msg.Questions = append(msg.Questions, msg.Questions[0])

		err := resolver.Classify(msg)
		Expect(err).ShouldNot(BeNil())
		Expect(err.Kind).Should(Equal(resolver.KindMalformedQuery))
		Expect(err.Rcode).Should(Equal(uint8(wire.RcodeFormErr)))
	})
})

var _ = Describe("Error", func() {
	It("formats with its kind and wrapped error", func() {
		err := resolver.MalformedQueryError(errors.New("short header"))
		Expect(err.Error()).Should(Equal("MalformedQuery: short header"))
	})

	It("unwraps to the underlying error", func() {
		inner := resolver.InternalPanicError(nil)
		Expect(inner.Unwrap()).Should(BeNil())
	})
})
