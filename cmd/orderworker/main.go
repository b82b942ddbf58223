// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/luxfi/fairdag/pkg/batchmaker"
	"github.com/luxfi/fairdag/pkg/execqueue"
	"github.com/luxfi/fairdag/pkg/executor"
	"github.com/luxfi/fairdag/pkg/globaldag"
	"github.com/luxfi/fairdag/pkg/localdag"
	"github.com/luxfi/fairdag/pkg/logging"
	"github.com/luxfi/fairdag/pkg/metrics"
	"github.com/luxfi/fairdag/pkg/missededge"
	"github.com/luxfi/fairdag/pkg/oracle"
	"github.com/luxfi/fairdag/pkg/order"
	"github.com/luxfi/fairdag/pkg/round"
	"github.com/luxfi/fairdag/pkg/scc"
	"github.com/luxfi/fairdag/pkg/store"
	"github.com/luxfi/fairdag/pkg/transport"
	"github.com/luxfi/fairdag/pkg/wire"
)

var (
	dataDir      = flag.String("data-dir", "", "Data directory for the persistent store (empty uses an in-memory store)")
	selfID       = flag.String("self-id", "", "This node's committee peer id (defaults to a random id)")
	adminPort    = flag.Int("admin-port", 8080, "Admin/status HTTP port")
	peerPort     = flag.Int("peer-port", 9090, "Peer transport HTTP port")
	logLevel     = flag.String("log-level", "info", "Log level")
	peers        = flag.String("peers", "", "Comma-separated peer-id=base-url pairs, e.g. b=http://10.0.0.2:9090")

	roundInterval = flag.Duration("round-interval", 2*time.Second, "Round Controller tick interval")
	batchMaxBytes = flag.Int("batch-max-bytes", 1<<20, "Batch Maker byte threshold")
	batchMaxDelay = flag.Duration("batch-max-delay", 250*time.Millisecond, "Batch Maker delay threshold")

	quorum           = flag.Int("quorum", 3, "Number of peer local-order DAGs required before synthesizing a round (2f+1 of a 3f+1 committee, f=1)")
	pendingThreshold = flag.Float64("pending-threshold", 2, "Vote count required to admit a node or edge")
	fixedThreshold   = flag.Float64("fixed-threshold", 3, "Vote count required to mark a node fixed")
	quorumThreshold  = flag.Uint64("missed-edge-quorum", 3, "Observation count required to resolve a missed edge direction")

	executorWorkers = flag.Int("executor-workers", 4, "Parallel Executor worker pool size")

	Version = "dev"
)

// Node wires together every ordering-pipeline component (C1-C9) plus
// the ambient transport, storage, logging, and metrics collaborators,
// and drives the per-round flow described in §2: seal batches,
// aggregate a quorum into a global order, prune all-pending cycles,
// enqueue for execution, and apply missed-edge resolutions as later
// rounds supply them.
type Node struct {
	self globaldag.PeerID
	log  logging.Logger

	store      *store.Store
	metrics    *metrics.Metrics
	oracle     oracle.Oracle
	rc         *round.TickerController
	maker      *batchmaker.Maker
	aggregator *globaldag.Aggregator
	missed     *missededge.Manager
	queue      *execqueue.Queue
	exec       *executor.Executor
	transport  *transport.HTTP

	adminServer *http.Server
	peerServer  *http.Server
}

func main() {
	flag.Parse()

	if *selfID == "" {
		*selfID = uuid.NewString()
	}

	logger := logging.NewWithLevel(*logLevel)
	defer logger.Sync()
	logger.Info("starting order worker", logging.String("version", Version), logging.String("self", *selfID))

	node, err := NewNode(*selfID, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to construct node: %v\n", err)
		os.Exit(1)
	}

	if err := node.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start node: %v\n", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := node.Shutdown(ctx); err != nil {
		logger.Error("shutdown error", logging.Error(err))
	}
}

// NewNode constructs a Node from the parsed flags.
func NewNode(self string, logger logging.Logger) (*Node, error) {
	st, err := store.Open(*dataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	m, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("construct metrics: %w", err)
	}

	agg, err := globaldag.New(*quorum, globaldag.Thresholds{Pending: *pendingThreshold, Fixed: *fixedThreshold})
	if err != nil {
		return nil, fmt.Errorf("construct aggregator: %w", err)
	}

	selfPeer := globaldag.PeerID(self)
	tp := transport.NewHTTP(selfPeer)
	for _, spec := range strings.Split(*peers, ",") {
		spec = strings.TrimSpace(spec)
		if spec == "" {
			continue
		}
		parts := strings.SplitN(spec, "=", 2)
		if len(parts) != 2 {
			continue
		}
		tp.AddPeer(globaldag.PeerID(parts[0]), parts[1])
	}

	node := &Node{
		self:       selfPeer,
		log:        logger,
		store:      st,
		metrics:    m,
		oracle:     oracle.Generic(),
		rc:         round.NewTicker(*roundInterval, 1),
		aggregator: agg,
		missed:     missededge.New(st, *quorumThreshold),
		queue:      execqueue.New(),
		exec:       executor.New(*executorWorkers, st),
		transport:  tp,
	}

	maker, err := batchmaker.New(
		batchmaker.Config{Self: selfPeer, MaxBatchBytes: *batchMaxBytes, MaxDelay: *batchMaxDelay},
		node.oracle, st, metricsBroadcaster{tp, m}, localAggregatorSink{node}, metricsSampler{m, logger},
	)
	if err != nil {
		return nil, fmt.Errorf("construct batch maker: %w", err)
	}
	node.maker = maker

	return node, nil
}

// localAggregatorSink adapts Node's Aggregator to batchmaker.LocalSink
// so a node's own sealed batch is submitted to its own vote
// accumulator without a network round trip.
type localAggregatorSink struct{ n *Node }

func (s localAggregatorSink) Submit(round order.Round, sender globaldag.PeerID, dag *localdag.Graph) bool {
	return s.n.aggregator.Submit(round, sender, dag)
}

// metricsBroadcaster decorates the peer transport with the Batch
// Maker's (C3) sealing/broadcast metrics, keeping pkg/batchmaker and
// pkg/transport themselves free of a metrics dependency.
type metricsBroadcaster struct {
	*transport.HTTP
	m *metrics.Metrics
}

func (b metricsBroadcaster) BroadcastBatch(round order.Round, encoded []byte) error {
	b.m.BatchesSealed.Inc()
	b.m.BatchBytes.Observe(float64(len(encoded)))
	if err := b.HTTP.BroadcastBatch(round, encoded); err != nil {
		b.m.BroadcastFailures.WithLabelValues("batch").Inc()
		return err
	}
	return nil
}

// metricsSampler reports §4.2 sample-tx telemetry ids as they're
// extracted on seal: a counter for aggregate throughput plus a debug
// log line carrying the node and sample id, since the id itself
// carries no consensus meaning worth persisting anywhere else.
type metricsSampler struct {
	m   *metrics.Metrics
	log logging.Logger
}

func (s metricsSampler) ObserveSample(node order.NodeID, sampleID uint64) {
	s.m.SampleTransactions.Inc()
	s.log.Debug("sample transaction observed",
		logging.Uint64("node", uint64(node)),
		logging.Uint64("sample_id", sampleID),
	)
}

// localGraphFromAdjacency reconstructs a peer's sealed local order DAG
// from its wire adjacency records.
func localGraphFromAdjacency(records [][]order.NodeID) *localdag.Graph {
	return localdag.FromAdjacency(records)
}

// Start brings up the admin and peer HTTP servers and the background
// round-driven ordering loop.
func (n *Node) Start() error {
	n.log.Info("starting order worker services")

	gin.SetMode(gin.ReleaseMode)
	admin := gin.New()
	admin.Use(gin.Recovery())
	admin.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "healthy"}) })
	admin.GET("/status", n.handleStatus)
	admin.GET("/metrics", gin.WrapH(promhttp.HandlerFor(n.metrics.GetGatherer(), promhttp.HandlerOpts{})))

	n.adminServer = &http.Server{Addr: fmt.Sprintf(":%d", *adminPort), Handler: admin}
	go func() {
		if err := n.adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.log.Error("admin server error", logging.Error(err))
		}
	}()

	n.peerServer = &http.Server{Addr: fmt.Sprintf(":%d", *peerPort), Handler: n.transport.Handler(n.dispatchPeerMessage)}
	go func() {
		if err := n.peerServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			n.log.Error("peer server error", logging.Error(err))
		}
	}()

	n.metrics.PeersConnected.Set(float64(len(n.transport.Peers())))

	ctx := context.Background()
	go n.maker.Run(ctx, n.rc.Round)
	go n.runOrderingLoop(ctx)

	return nil
}

// dispatchPeerMessage routes an inbound wire message from a committee
// peer: a Batch contributes to this round's Global-Order Aggregator.
func (n *Node) dispatchPeerMessage(sender globaldag.PeerID, msg interface{}) error {
	batch, ok := msg.(*wire.Batch)
	if !ok {
		return nil
	}
	dag := localGraphFromAdjacency(batch.Adjacency)
	n.aggregator.Submit(batch.Round, sender, dag)
	return nil
}

// runOrderingLoop polls the Round Controller non-blockingly (§4.9) and,
// once the aggregator reaches quorum, synthesizes, prunes, enqueues,
// and executes a round.
func (n *Node) runOrderingLoop(ctx context.Context) {
	ticker := time.NewTicker(20 * time.Millisecond)
	defer ticker.Stop()

	// synthesized is the last round already turned into a global order,
	// so a round is synthesized once even though Ready stays true until
	// the next AdvanceRound.
	var synthesized order.Round

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if r, ok := round.Poll(n.rc.Advance()); ok {
				n.aggregator.AdvanceRound(r)
			}
			if n.aggregator.Ready() && n.aggregator.Round() != synthesized {
				n.synthesizeAndEnqueue()
				synthesized = n.aggregator.Round()
			}
			for _, entry := range n.queue.DrainReady() {
				n.executeEntry(ctx, entry)
			}
		}
	}
}

func (n *Node) synthesizeAndEnqueue() {
	start := time.Now()
	g, missedPairs := n.aggregator.Synthesize()
	n.metrics.AggregationLatency.Observe(time.Since(start).Seconds())

	n.observeMissedEdges()

	nodes := g.Nodes()
	n.metrics.NodesAdmitted.Add(float64(len(nodes)))
	for _, nd := range nodes {
		if g.IsFixed(nd) {
			n.metrics.NodesFixed.Inc()
		}
	}
	n.metrics.EdgesAdmitted.Add(float64(len(g.Edges())))

	pruned := scc.Prune(g)
	if prunedCount := len(nodes) - len(pruned.Nodes()); prunedCount > 0 {
		n.metrics.ComponentsPruned.Inc()
		n.metrics.NodesPruned.Add(float64(prunedCount))
	}

	for _, p := range missedPairs {
		if n.missed.IsMissing(p.Low, p.High) {
			continue
		}
		if err := n.missed.AddMissing(p.Low, p.High); err != nil {
			n.log.Error("track missed edge", logging.Error(err))
			continue
		}
		n.metrics.MissedEdgesTracked.Inc()
	}
	n.metrics.MissedEdgesOpen.Set(float64(len(n.missed.Pairs())))

	encoded, digest, err := globaldag.Serialize(pruned, missedPairs)
	if err != nil {
		n.log.Error("serialize global order", logging.Error(err))
		return
	}
	if err := n.store.PutGlobalOrder(digest, encoded); err != nil {
		n.log.Error("persist global order", logging.Error(err))
		return
	}

	n.queue.Enqueue(digest, pruned, missedPairs)
	n.metrics.RoundsAggregated.Inc()
	n.metrics.QueueDepth.Set(float64(n.queue.Len()))
}

// observeMissedEdges feeds this round's raw per-direction vote counts
// into every pair the Missed-Edge Manager is still tracking (§4.5),
// letting evidence accumulate across rounds instead of only within the
// round a pair was first missed. A direction that crosses the quorum
// threshold here resolves the pair (§8 invariant 5) and that
// resolution is immediately applied to every queued entry still
// blocked on it (§4.6/S4).
func (n *Node) observeMissedEdges() {
	for _, pair := range n.missed.Pairs() {
		u, v := pair.Low, pair.High
		if c := n.aggregator.EdgeCount(u, v); c > 0 {
			n.resolveIfObserved(pair, u, v, uint64(c))
		}
		if c := n.aggregator.EdgeCount(v, u); c > 0 {
			n.resolveIfObserved(pair, v, u, uint64(c))
		}
	}
}

func (n *Node) resolveIfObserved(pair order.EdgePair, from, to order.NodeID, delta uint64) {
	resolved, err := n.missed.ObserveEdge(from, to, delta)
	if err != nil {
		n.log.Error("observe missed edge", logging.Error(err))
		return
	}
	if !resolved {
		return
	}
	n.missed.Resolve(from, to)
	n.queue.OnEdgeResolved(pair, from, to)
	n.metrics.MissedEdgesResolved.Inc()
}

func (n *Node) executeEntry(ctx context.Context, entry *execqueue.Entry) {
	start := time.Now()
	err := n.exec.Run(ctx, entry.Graph, func(_ context.Context, node order.NodeID, tx order.Transaction) error {
		n.metrics.TransactionsExecuted.Inc()
		if tx == nil {
			n.metrics.ExecutorStoreMisses.Inc()
			n.log.Warn("transaction missing from store, skipped", logging.Uint64("node", uint64(node)))
		}
		return nil
	})
	n.metrics.ExecutionLatency.Observe(time.Since(start).Seconds())
	n.metrics.QueueDepth.Set(float64(n.queue.Len()))
	if err != nil {
		n.log.Error("execute global order", logging.String("digest", entry.Digest.String()), logging.Error(err))
	}
}

func (n *Node) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"self":         string(n.self),
		"round":        n.rc.Round(),
		"queue_depth":  n.queue.Len(),
		"peers":        n.transport.Peers(),
		"version":      Version,
	})
}

// Shutdown gracefully stops both HTTP servers, the round controller,
// and closes the store.
func (n *Node) Shutdown(ctx context.Context) error {
	n.rc.Stop()
	if err := n.adminServer.Shutdown(ctx); err != nil {
		n.log.Error("admin server shutdown error", logging.Error(err))
	}
	if err := n.peerServer.Shutdown(ctx); err != nil {
		n.log.Error("peer server shutdown error", logging.Error(err))
	}
	return n.store.Close()
}
