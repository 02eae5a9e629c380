package cmd

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("version command", func() {
	When("version command is called", func() {
		It("should execute without error", func() {
			c := newVersionCommand()
			c.SetArgs(make([]string, 0))
			Expect(c.Execute()).Should(Succeed())
		})
	})
})
