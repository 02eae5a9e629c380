// Package server wires together the resolver chain, the zone store and
// the DNSSEC signer behind the wire transport: one shared UDP socket
// serviced by a worker pool, and a TCP listener speaking the
// length-prefixed framing of RFC 1035 §4.2.2 (spec.md §4.5).
package server

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"authdns/config"
	"authdns/dnssec"
	"authdns/log"
	"authdns/metrics"
	"authdns/resolver"
	"authdns/wire"
	"authdns/zonestore"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/hashicorp/go-multierror"
)

const (
	// maxUDPDatagramSize is the largest datagram this server will read;
	// anything bigger never reaches the resolver chain (spec.md §4.5).
	maxUDPDatagramSize = 4096

	udpWorkerCount  = 16
	tcpIdleTimeout  = 30 * time.Second
	shutdownGrace   = 5 * time.Second
	backpressureMul = 10
)

// Server owns the listening sockets and the resolver chain answering
// them. Start and Stop are not safe to call concurrently with each
// other, matching the teacher's Server lifecycle.
type Server struct {
	cfg *config.Config

	chain resolver.Resolver
	store zonestore.Store

	udpConn     *net.UDPConn
	tcpListener *net.TCPListener

	httpListener net.Listener
	httpServer   *http.Server

	jobs chan udpJob

	wg sync.WaitGroup

	shuttingDown int32
}

type udpJob struct {
	data []byte
	addr *net.UDPAddr
}

// NewServer configures logging from cfg, opens the zone store and signing
// key, builds the resolver chain, and binds the UDP/TCP/metrics
// listeners. It does not call cfg.Validate (LoadConfig does), and it does
// not start serving; call Start for that.
func NewServer(cfg *config.Config) (*Server, error) {
	log.ConfigureLogger(log.Config{
		Level:     mustParseLevel(cfg.Log.Level),
		Format:    mustParseFormat(cfg.Log.Format),
		Timestamp: cfg.Log.Timestamp,
	})

	cfg.LogConfig(log.PrefixedLog("config"))

	apex := wire.NewDomainName(cfg.DefaultDomain)

	store, err := openStore(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: open zone store: %w", err)
	}

	if err := zonestore.SeedDefaultZone(context.Background(), store, cfg.DefaultDomain, cfg.DefaultIP, nsTargets(cfg.NSRecords)); err != nil {
		return nil, fmt.Errorf("server: seed default zone: %w", err)
	}

	signer, err := openSigner(cfg)
	if err != nil {
		return nil, fmt.Errorf("server: load dnssec key: %w", err)
	}

	caching := resolver.NewCachingResolver(cfg.Caching, apex, signer, cfg.MaxPacketSize)

	if cr, ok := caching.(*resolver.CachingResolver); ok {
		cr.PinNSRecords(cfg.NSRecords)
	}

	zone := resolver.NewZoneResolver(store, apex, cfg.Authoritative, cfg.EnableIPv6)
	upstream := resolver.NewUpstreamResolver(forwarderAddrs(cfg.Forwarders))

	chain := resolver.Chain(caching, zone, upstream)

	var errs *multierror.Error

	udpConn, err := net.ListenUDP("udp", udpAddr(cfg.Bind))
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("server: listen udp %s: %w", cfg.Bind, err))
	}

	tcpListener, err := net.ListenTCP("tcp", tcpAddr(cfg.Bind))
	if err != nil {
		errs = multierror.Append(errs, fmt.Errorf("server: listen tcp %s: %w", cfg.Bind, err))
	}

	if err := errs.ErrorOrNil(); err != nil {
		return nil, err
	}

	srv := &Server{
		cfg:         cfg,
		chain:       chain,
		store:       store,
		udpConn:     udpConn,
		tcpListener: tcpListener,
		jobs:        make(chan udpJob, udpWorkerCount*backpressureMul),
	}

	if cfg.MetricsAddr != "" {
		metrics.StartCollection()

		listener, err := net.Listen("tcp", cfg.MetricsAddr)
		if err != nil {
			return nil, fmt.Errorf("server: listen metrics %s: %w", cfg.MetricsAddr, err)
		}

		srv.httpListener = listener
		srv.httpServer = &http.Server{Handler: metricsRouter()}
	}

	srv.printConfiguration()

	return srv, nil
}

func openStore(cfg *config.Config) (zonestore.Store, error) {
	if cfg.DBPath == "" {
		return zonestore.NewMemStore(), nil
	}

	return zonestore.OpenGormStore(cfg.DBPath)
}

func openSigner(cfg *config.Config) (*dnssec.Signer, error) {
	if !cfg.DNSSEC.IsEnabled() {
		return nil, nil
	}

	key, err := dnssec.LoadKey(cfg.DNSSEC.KeyFile)
	if err != nil {
		return nil, err
	}

	return dnssec.NewSigner(key)
}

func nsTargets(records []config.NSRecord) []string {
	targets := make([]string, 0, len(records))
	for _, r := range records {
		targets = append(targets, r.Target)
	}

	return targets
}

func forwarderAddrs(upstreams []config.Upstream) []string {
	addrs := make([]string, 0, len(upstreams))
	for _, u := range upstreams {
		addrs = append(addrs, u.Addr())
	}

	return addrs
}

func udpAddr(bind string) *net.UDPAddr {
	host, port := splitBind(bind)

	return &net.UDPAddr{IP: net.ParseIP(host), Port: port}
}

func tcpAddr(bind string) *net.TCPAddr {
	host, port := splitBind(bind)

	return &net.TCPAddr{IP: net.ParseIP(host), Port: port}
}

func splitBind(bind string) (string, int) {
	host, portStr, err := net.SplitHostPort(bind)
	if err != nil {
		return "0.0.0.0", 53
	}

	var port int
	if _, err := fmt.Sscanf(portStr, "%d", &port); err != nil {
		port = 53
	}

	if host == "" {
		host = "0.0.0.0"
	}

	return host, port
}

func metricsRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{AllowedMethods: []string{"GET"}}))
	r.Handle("/metrics", metrics.Handler())

	return r
}

func mustParseLevel(s string) log.Level {
	if s == "" {
		return log.LevelInfo
	}

	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.LevelInfo
	}

	return lvl
}

func mustParseFormat(s string) log.FormatType {
	if s == "" {
		return log.FormatTypeText
	}

	f, err := log.ParseFormatType(s)
	if err != nil {
		return log.FormatTypeText
	}

	return f
}

// printConfiguration logs the resolver chain's banner, the way the
// teacher's Server.printConfiguration walks its own chain.
func (s *Server) printConfiguration() {
	entry := log.PrefixedLog("server")
	entry.Info("resolver chain:")

	for r := s.chain; r != nil; {
		entry.Infof("-> %s", resolver.Name(r))

		for _, line := range r.Configuration() {
			entry.Infof("   %s", line)
		}

		cr, ok := r.(resolver.ChainedResolver)
		if !ok {
			break
		}

		r = cr.GetNext()
	}
}

// Start launches the UDP worker pool, the UDP receive loop, the TCP
// accept loop and, if configured, the metrics HTTP listener. It returns
// immediately; serving happens on background goroutines.
func (s *Server) Start() {
	for i := 0; i < udpWorkerCount; i++ {
		go s.udpWorker()
	}

	go s.serveUDP()
	go s.serveTCP()

	if s.httpListener != nil {
		go func() {
			if err := s.httpServer.Serve(s.httpListener); err != nil && err != http.ErrServerClosed {
				log.PrefixedLog("server").WithError(err).Error("metrics listener stopped")
			}
		}()
	}

	log.PrefixedLog("server").Infof("server is up and running on %s (udp+tcp)", s.cfg.Bind)
}

// Stop stops accepting new work and waits up to 5s for in-flight queries
// to finish before returning (spec.md §5).
func (s *Server) Stop() error {
	atomic.StoreInt32(&s.shuttingDown, 1)

	var errs *multierror.Error

	if s.tcpListener != nil {
		errs = multierror.Append(errs, s.tcpListener.Close())
	}

	if s.udpConn != nil {
		errs = multierror.Append(errs, s.udpConn.Close())
	}

	if s.httpListener != nil {
		errs = multierror.Append(errs, s.httpListener.Close())
	}

	done := make(chan struct{})

	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(shutdownGrace):
		log.PrefixedLog("server").Warn("shutdown grace period elapsed with requests still in flight")
	}

	return errs.ErrorOrNil()
}

func (s *Server) isShuttingDown() bool {
	return atomic.LoadInt32(&s.shuttingDown) == 1
}

// serveUDP reads datagrams off the shared socket and hands them to the
// worker pool, dropping work when the queue is saturated (spec.md §5
// backpressure).
func (s *Server) serveUDP() {
	// one spare octet so an oversized datagram can be told apart and dropped
	buf := make([]byte, maxUDPDatagramSize+1)

	for {
		n, addr, err := s.udpConn.ReadFromUDP(buf)
		if err != nil {
			if s.isShuttingDown() {
				return
			}

			continue
		}

		if n > maxUDPDatagramSize {
			continue
		}

		data := make([]byte, n)
		copy(data, buf[:n])

		select {
		case s.jobs <- udpJob{data: data, addr: addr}:
		default:
			log.PrefixedLog("server").Warn("udp worker queue full, dropping datagram")
		}
	}
}

func (s *Server) udpWorker() {
	for job := range s.jobs {
		s.wg.Add(1)
		s.handleUDP(job)
		s.wg.Done()
	}
}

func (s *Server) handleUDP(job udpJob) {
	started := time.Now()

	respType, out := s.answer(job.data, wire.DefaultUDPSize)

	if len(out) > 0 {
		if _, err := s.udpConn.WriteToUDP(out, job.addr); err != nil {
			log.PrefixedLog("server").WithError(err).Debug("udp write failed")
		}
	}

	metrics.ObserveQueryDuration(respType, started)
}

// serveTCP accepts connections and serves each on its own goroutine. A
// connection that would push the server past its backpressure limit is
// closed immediately instead of accepted.
func (s *Server) serveTCP() {
	for {
		conn, err := s.tcpListener.AcceptTCP()
		if err != nil {
			if s.isShuttingDown() {
				return
			}

			continue
		}

		if len(s.jobs) >= cap(s.jobs) {
			conn.Close()

			continue
		}

		go s.handleTCPConn(conn)
	}
}

func (s *Server) handleTCPConn(conn *net.TCPConn) {
	s.wg.Add(1)

	defer s.wg.Done()
	defer conn.Close()

	for {
		if err := conn.SetDeadline(time.Now().Add(tcpIdleTimeout)); err != nil {
			return
		}

		lenBuf := make([]byte, 2)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			return
		}

		msgLen := binary.BigEndian.Uint16(lenBuf)
		msgBuf := make([]byte, msgLen)

		if _, err := io.ReadFull(conn, msgBuf); err != nil {
			return
		}

		started := time.Now()

		respType, out := s.answer(msgBuf, 0)
		if len(out) == 0 {
			return
		}

		framed := make([]byte, 2+len(out))
		binary.BigEndian.PutUint16(framed, uint16(len(out)))
		copy(framed[2:], out)

		if _, err := conn.Write(framed); err != nil {
			return
		}

		metrics.ObserveQueryDuration(respType, started)
	}
}

// answer decodes buf, resolves it through the chain, and encodes the
// reply. A non-zero maxUDP enables truncation to the EDNS0-negotiated
// ceiling computed by encodeTruncated (its value is not itself used as
// the ceiling); zero means "no truncation" (TCP responses are never
// truncated, spec.md §4.5). A
// panic anywhere in the chain is recovered and answered SERVFAIL
// (spec.md §7 InternalPanic).
func (s *Server) answer(buf []byte, maxUDP uint16) (respType string, out []byte) {
	defer func() {
		if r := recover(); r != nil {
			log.PrefixedLog("server").Errorf("recovered from panic handling query: %v", r)

			out = encodeMinimal(buf, wire.RcodeServFail)
			respType = "PANIC"
		}
	}()

	query, err := wire.Decode(buf)
	if err != nil {
		return "FORMERR", encodeMinimal(buf, wire.RcodeFormErr)
	}

	if len(query.Questions) == 0 {
		return "FORMERR", encodeMinimal(buf, wire.RcodeFormErr)
	}

	if cerr := resolver.Classify(query); cerr != nil {
		msg := errorResponse(query, cerr.Rcode)

		return cerr.Kind.String(), s.encodeTruncated(msg, query, maxUDP)
	}

	req := &resolver.Request{
		Query:     query,
		Log:       log.PrefixedLog("query"),
		RequestTS: time.Now(),
	}

	resp, err := s.chain.Resolve(req)
	if err != nil {
		log.PrefixedLog("server").WithError(err).Error("resolver chain returned an error")

		return "SERVFAIL", encodeMinimal(buf, wire.RcodeServFail)
	}

	return resp.RType.String(), s.encodeTruncated(resp.Res, query, maxUDP)
}

// encodeTruncated encodes msg, and if it exceeds the effective UDP
// ceiling, drops the additional section, then the authority section,
// then the answer section itself, setting TC=1 as soon as anything is
// dropped, until the encoding actually fits (spec.md §4.2 "the resolver
// sets tc=1 and returns the header + question only (no answer)").
// maxUDP == 0 disables truncation entirely (the TCP path).
func (s *Server) encodeTruncated(msg *wire.Message, query *wire.Message, maxUDP uint16) []byte {
	raw, err := msg.Encode()
	if err != nil {
		log.PrefixedLog("server").WithError(err).Error("failed to encode response")

		return encodeMinimal(nil, wire.RcodeServFail)
	}

	if maxUDP == 0 {
		return raw
	}

	opt := wire.FindOPT(query.Additional)
	limit := wire.EffectiveMaxSize(opt, s.cfg.MaxPacketSize)

	if len(raw) <= limit {
		return raw
	}

	trimmed := *msg
	trimmed.Additional = nil

	if out, fits := s.tryFit(&trimmed, limit); fits {
		return out
	}

	trimmed.Authority = nil

	if out, fits := s.tryFit(&trimmed, limit); fits {
		return out
	}

	trimmed.Answers = nil

	if out, fits := s.tryFit(&trimmed, limit); fits {
		return out
	}

	return encodeMinimal(nil, wire.RcodeServFail)
}

// tryFit sets TC=1 on msg and encodes it, reporting whether the result
// actually fits within limit. A failed encode or an over-limit result is
// reported as not fitting, leaving msg's flags as set either way so the
// next, more aggressive trim level starts from TC=1 already.
func (s *Server) tryFit(msg *wire.Message, limit int) ([]byte, bool) {
	msg.Header.Flags = msg.Header.Flags.WithTC(true)

	out, err := msg.Encode()
	if err != nil {
		return nil, false
	}

	return out, len(out) <= limit
}

// errorResponse builds a reply echoing query's id/question with rcode
// set and no answer data.
func errorResponse(query *wire.Message, rcode uint8) *wire.Message {
	return &wire.Message{
		Header: wire.Header{
			ID:    query.Header.ID,
			Flags: query.Header.Flags.WithQR(true).WithAA(false).WithRA(false).WithRcode(rcode),
		},
		Questions: query.Questions,
	}
}

// encodeMinimal builds the smallest possible reply when buf couldn't
// even be decoded: it recovers the transaction id from the first two
// octets if present, and answers with no question at all (spec.md §7
// MalformedQuery -> FORMERR).
func encodeMinimal(buf []byte, rcode uint8) []byte {
	var id uint16
	if len(buf) >= 2 {
		id = binary.BigEndian.Uint16(buf[:2])
	}

	msg := &wire.Message{
		Header: wire.Header{
			ID:    id,
			Flags: wire.Flags(0).WithQR(true).WithRcode(rcode),
		},
	}

	out, err := msg.Encode()
	if err != nil {
		return nil
	}

	return out
}
