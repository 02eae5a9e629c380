package zonestore_test

import (
	"context"

	"authdns/wire"
	"authdns/zonestore"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("domain normalization", func() {
	It("treats differently-cased domains as the same key", func() {
		store := zonestore.NewMemStore()
		ctx := context.Background()

		Expect(store.Put(ctx, "WWW.Example.TLD.", wire.TypeA, "203.0.113.10", 300)).To(Succeed())

		rows, err := store.Get(ctx, "www.example.tld.", wire.TypeA)
		Expect(err).NotTo(HaveOccurred())
		Expect(rows).To(HaveLen(1))
	})
})
