// Package resolver implements the authoritative query pipeline: a chain
// of Resolver stages that classify, answer, cache and optionally sign a
// decoded query before the transport layer encodes the reply.
package resolver

import (
	"fmt"
	"net"
	"strings"
	"time"

	"authdns/wire"

	"github.com/sirupsen/logrus"
)

// Request carries one decoded query through the resolver chain together
// with the metadata later stages and logging need.
type Request struct {
	ClientIP  net.IP
	Query     *wire.Message
	Log       *logrus.Entry
	RequestTS time.Time
}

func newRequest(name wire.DomainName, rtype wire.RecordType) *Request {
	msg := &wire.Message{
		Header: wire.Header{QDCount: 1},
		Questions: []wire.Question{
			{Name: name, Type: rtype, Class: wire.ClassIN},
		},
	}

	return &Request{
		Query:     msg,
		Log:       logrus.NewEntry(logrus.New()),
		RequestTS: time.Time{},
	}
}

// ResponseType records which resolver stage produced the answer, for
// logging and metrics.
type ResponseType int

const (
	RESOLVED ResponseType = iota
	CACHED
	AUTHORITATIVE
	FORWARDED
	REFUSED
)

func (r ResponseType) String() string {
	names := [...]string{
		"RESOLVED",
		"CACHED",
		"AUTHORITATIVE",
		"FORWARDED",
		"REFUSED",
	}

	if int(r) < 0 || int(r) >= len(names) {
		return "UNKNOWN"
	}

	return names[r]
}

// Response is the resolver chain's answer to a Request.
type Response struct {
	Res    *wire.Message
	Reason string
	RType  ResponseType
}

// Resolver is a single stage in the query pipeline.
type Resolver interface {
	Resolve(req *Request) (*Response, error)
	Configuration() []string
}

// ChainedResolver is a Resolver that forwards to a next stage when it does
// not have an answer of its own.
type ChainedResolver interface {
	Resolver
	Next(n Resolver)
	GetNext() Resolver
}

// NextResolver implements the common "next stage" plumbing every chained
// resolver embeds.
type NextResolver struct {
	next Resolver
}

func (r *NextResolver) Next(n Resolver) {
	r.next = n
}

func (r *NextResolver) GetNext() Resolver {
	return r.next
}

func logger(prefix string) *logrus.Entry {
	return logrus.WithField("prefix", prefix)
}

func withPrefix(logger *logrus.Entry, prefix string) *logrus.Entry {
	return logger.WithField("prefix", prefix)
}

// Chain links resolvers in order, each ChainedResolver pointing at the
// next, and returns the head of the chain.
func Chain(resolvers ...Resolver) Resolver {
	for i, res := range resolvers {
		if i+1 < len(resolvers) {
			if cr, ok := res.(ChainedResolver); ok {
				cr.Next(resolvers[i+1])
			}
		}
	}

	return resolvers[0]
}

// Name returns the unqualified type name of a resolver, used in log
// prefixes and the Configuration() banner.
func Name(resolver Resolver) string {
	return strings.Split(fmt.Sprintf("%T", resolver), ".")[1]
}

// newResponse builds a reply Message that echoes the request's question
// and ID, with QR=1 and the given rcode/answer set.
func newResponse(req *Request, rcode uint8, aa bool, answers []wire.ResourceRecord) *wire.Message {
	flags := req.Query.Header.Flags.
		WithQR(true).
		WithAA(aa).
		WithRA(false).
		WithRcode(rcode)

	return &wire.Message{
		Header:    wire.Header{ID: req.Query.Header.ID, Flags: flags},
		Questions: req.Query.Questions,
		Answers:   answers,
	}
}
