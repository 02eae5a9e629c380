package resolver_test

import (
	"net"

	"authdns/resolver"
	"authdns/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/sirupsen/logrus"
)

// fakeUpstream is a minimal UDP nameserver test double: respond builds the
// reply for whatever query it receives, or returning nil drops the packet
// (simulating a timeout).
type fakeUpstream struct {
	conn *net.UDPConn
}

func startFakeUpstream(respond func(q *wire.Message) *wire.Message) *fakeUpstream {
	addr, err := net.ResolveUDPAddr("udp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	conn, err := net.ListenUDP("udp", addr)
	Expect(err).NotTo(HaveOccurred())

	fu := &fakeUpstream{conn: conn}

	go func() {
		buf := make([]byte, 4096)

		for {
			n, raddr, err := conn.ReadFromUDP(buf)
			if err != nil {
				return
			}

			q, err := wire.Decode(buf[:n])
			if err != nil {
				continue
			}

			resp := respond(q)
			if resp == nil {
				continue
			}

			out, err := resp.Encode()
			if err != nil {
				continue
			}

			_, _ = conn.WriteToUDP(out, raddr)
		}
	}()

	return fu
}

func (f *fakeUpstream) Addr() string {
	return f.conn.LocalAddr().String()
}

func (f *fakeUpstream) Close() {
	_ = f.conn.Close()
}

func echoAnswer(q *wire.Message) *wire.Message {
	qq := q.Questions[0]

	return &wire.Message{
		Header:    wire.Header{ID: q.Header.ID, Flags: wire.Flags(0).WithQR(true).WithAA(true)},
		Questions: q.Questions,
		Answers: []wire.ResourceRecord{
			{Name: qq.Name, Type: wire.TypeA, Class: wire.ClassIN, TTL: 60, Rdata: wire.ARdata{IP: net.ParseIP("203.0.113.55")}},
		},
	}
}

var _ = Describe("UpstreamResolver", func() {
	It("returns REFUSED when no forwarders are configured", func() {
		sut := resolver.NewUpstreamResolver(nil)

		resp, err := sut.Resolve(zoneRequest("other.tld", wire.TypeA))
		Expect(err).Should(Succeed())
		Expect(resp.RType).Should(Equal(resolver.REFUSED))
	})

	It("forwards to the configured upstream and returns its answer", func() {
		up := startFakeUpstream(echoAnswer)
		defer up.Close()

		sut := resolver.NewUpstreamResolver([]string{up.Addr()})

		req := zoneRequest("other.tld", wire.TypeA)
		req.Query.Header.ID = 99

		resp, err := sut.Resolve(req)
		Expect(err).Should(Succeed())
		Expect(resp.RType).Should(Equal(resolver.FORWARDED))
		Expect(resp.Res.Header.ID).Should(Equal(uint16(99)))
		Expect(resp.Res.Answers).Should(HaveLen(1))
	})

	It("rejects a response whose question does not match and tries the next forwarder", func() {
		mismatched := startFakeUpstream(func(q *wire.Message) *wire.Message {
			wrong := *q
			wrong.Questions = []wire.Question{{Name: wire.NewDomainName("wrong.tld"), Type: wire.TypeA, Class: wire.ClassIN}}

			return echoAnswer(&wrong)
		})
		defer mismatched.Close()

		good := startFakeUpstream(echoAnswer)
		defer good.Close()

		sut := resolver.NewUpstreamResolver([]string{mismatched.Addr(), good.Addr()})

		resp, err := sut.Resolve(zoneRequest("other.tld", wire.TypeA))
		Expect(err).Should(Succeed())
		Expect(resp.RType).Should(Equal(resolver.FORWARDED))
		Expect(resp.Res.Answers).Should(HaveLen(1))
	})

	It("skips a forwarder returning a failure rcode", func() {
		failing := startFakeUpstream(func(q *wire.Message) *wire.Message {
			return &wire.Message{
				Header:    wire.Header{ID: q.Header.ID, Flags: wire.Flags(0).WithQR(true).WithRcode(wire.RcodeServFail)},
				Questions: q.Questions,
			}
		})
		defer failing.Close()

		good := startFakeUpstream(echoAnswer)
		defer good.Close()

		sut := resolver.NewUpstreamResolver([]string{failing.Addr(), good.Addr()})

		resp, err := sut.Resolve(zoneRequest("other.tld", wire.TypeA))
		Expect(err).Should(Succeed())
		Expect(resp.RType).Should(Equal(resolver.FORWARDED))
		Expect(resp.Res.Answers).Should(HaveLen(1))
	})

	It("falls back to SERVFAIL when every forwarder is unreachable", func() {
		sut := resolver.NewUpstreamResolver([]string{"127.0.0.1:1"})

		req := zoneRequest("other.tld", wire.TypeA)
		req.Log = logrus.NewEntry(logrus.New())

		resp, err := sut.Resolve(req)
		Expect(err).Should(Succeed())
		Expect(resp.Res.Header.Flags.Rcode()).Should(Equal(uint8(wire.RcodeServFail)))
	})
})
