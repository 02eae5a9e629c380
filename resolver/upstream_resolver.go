package resolver

import (
	"context"
	"fmt"
	"math/rand"
	"net"
	"strings"
	"time"

	"authdns/evt"
	"authdns/util"
	"authdns/wire"
)

const (
	forwardTimeout  = 3 * time.Second
	forwardReadSize = 4096
)

// UpstreamResolver forwards a query verbatim (save for a fresh
// transaction ID) to a configured list of upstream resolvers, in order,
// and returns the first response that both matches the question asked
// and carries an acceptable rcode (spec.md §4.2).
type UpstreamResolver struct {
	NextResolver
	forwarders []string
}

// NewUpstreamResolver creates a resolver instance forwarding to forwarders
// in order. With an empty list nothing is forwarded: every query that
// reaches this stage is answered NXDOMAIN (response type REFUSED).
func NewUpstreamResolver(forwarders []string) ChainedResolver {
	return &UpstreamResolver{forwarders: forwarders}
}

// Configuration returns a current resolver configuration
func (r *UpstreamResolver) Configuration() []string {
	if len(r.forwarders) == 0 {
		return []string{"no forwarders configured"}
	}

	return []string{fmt.Sprintf("forwarders = %s", strings.Join(r.forwarders, ", "))}
}

// Resolve tries each forwarder in order until one answers.
func (r *UpstreamResolver) Resolve(req *Request) (*Response, error) {
	logger := withPrefix(req.Log, "upstream_resolver")

	if len(r.forwarders) == 0 {
		return &Response{
			Res: newResponse(req, wire.RcodeNXDomain, false, nil), RType: REFUSED, Reason: "NO_FORWARDERS",
		}, nil
	}

	q := req.Query.Questions[0]

	for _, addr := range r.forwarders {
		resp, err := r.forward(addr, req.Query)
		if err != nil {
			logger.WithField("upstream", addr).WithError(err).Debug("forward attempt failed, trying next")

			continue
		}

		if !questionMatches(q, resp) {
			logger.WithField("upstream", addr).Warn("response question mismatch, discarding")

			continue
		}

		rcode := resp.Header.Flags.Rcode()
		if rcode != wire.RcodeNoError && rcode != wire.RcodeNXDomain {
			logger.WithField("upstream", addr).WithField("rcode", rcode).Debug("upstream returned failure, trying next")

			continue
		}

		resp.Header.ID = req.Query.Header.ID

		logger.WithField("upstream", addr).Debug("received response from upstream")
		evt.Bus().Publish(evt.ResolveForwarded, addr)

		return &Response{Res: resp, RType: FORWARDED, Reason: fmt.Sprintf("FORWARDED(%s)", addr)}, nil
	}

	return &Response{
		Res: newResponse(req, wire.RcodeServFail, false, nil), RType: FORWARDED, Reason: "ALL_FORWARDERS_FAILED",
	}, nil
}

// forwardResult carries a forward attempt's outcome across the goroutine
// boundary so the caller can abandon it the instant its deadline elapses
// (spec.md §5 "a forwarded query is cancelled if its deadline elapses;
// the pending task is released").
type forwardResult struct {
	resp *wire.Message
	err  error
}

func (r *UpstreamResolver) forward(addr string, query *wire.Message) (*wire.Message, error) {
	ctx, cancel := context.WithTimeout(context.Background(), forwardTimeout)
	defer cancel()

	results := make(chan forwardResult, 1)

	go func() {
		resp, err := dialAndExchange(addr, query)
		util.CtxSend(ctx, results, forwardResult{resp: resp, err: err})
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("forward to %s: %w", addr, ctx.Err())
	case res := <-results:
		return res.resp, res.err
	}
}

func dialAndExchange(addr string, query *wire.Message) (*wire.Message, error) {
	conn, err := net.DialTimeout("udp", addr, forwardTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(forwardTimeout)); err != nil {
		return nil, err
	}

	forwardMsg := *query
	forwardMsg.Header.ID = newTransactionID()

	buf, err := forwardMsg.Encode()
	if err != nil {
		return nil, fmt.Errorf("encode forward query: %w", err)
	}

	if _, err := conn.Write(buf); err != nil {
		return nil, fmt.Errorf("write to %s: %w", addr, err)
	}

	respBuf := make([]byte, forwardReadSize)

	n, err := conn.Read(respBuf)
	if err != nil {
		return nil, fmt.Errorf("read from %s: %w", addr, err)
	}

	resp, err := wire.Decode(respBuf[:n])
	if err != nil {
		return nil, fmt.Errorf("decode response from %s: %w", addr, err)
	}

	return resp, nil
}

// questionMatches enforces that a forwarder's response actually answers
// the question we sent it, rejecting off-path or stale responses before
// they are ever cached or returned to a client.
func questionMatches(sent wire.Question, resp *wire.Message) bool {
	if len(resp.Questions) != 1 {
		return false
	}

	got := resp.Questions[0]

	return got.Name == sent.Name && got.Type == sent.Type && got.Class == sent.Class
}

func newTransactionID() uint16 {
	return uint16(rand.Intn(1 << 16))
}
