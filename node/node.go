package node

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eth2030/merkledrop/claim"
	"github.com/eth2030/merkledrop/commitment"
	"github.com/eth2030/merkledrop/core/rawdb"
	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/crypto"
	"github.com/eth2030/merkledrop/ledger"
	"github.com/eth2030/merkledrop/log"
	"github.com/eth2030/merkledrop/metrics"
)

// MetricsNamespace prefixes every exported Prometheus metric name.
const MetricsNamespace = "merkledrop"

// Node owns the storage and distributor built from a Config.
type Node struct {
	config     *Config
	db         rawdb.KeyValueStore
	record     *claim.Record
	dist       *claim.Distributor
	commitment *commitment.Commitment
	log        *log.Logger

	paid       atomic.Int64
	claimsDone chan struct{}

	metricsSrv *http.Server
	metricsLis net.Listener

	closeOnce sync.Once
}

// New opens the redemption record and builds a distributor paying out of l.
// If cfg names a commitment file it is loaded and, when cfg.Root is also
// set, must agree with it.
func New(cfg *Config, l ledger.Ledger) (*Node, error) {
	if cfg == nil {
		c := DefaultConfig()
		cfg = &c
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	n := &Node{config: cfg, log: log.Default().Module("node")}

	root, err := n.resolveRoot()
	if err != nil {
		return nil, err
	}
	chainID, _ := cfg.ParsedChainID()
	contract, _ := cfg.ParsedVerifyingContract()

	if cfg.InMemory {
		n.db = rawdb.NewMemoryDB()
	} else {
		if err := cfg.InitDataDir(); err != nil {
			return nil, fmt.Errorf("init datadir: %w", err)
		}
		bdb, err := rawdb.Open(cfg.RecordPath())
		if err != nil {
			return nil, err
		}
		n.db = bdb
		n.log.Debug("Opened redemption record", "path", bdb.Path())
	}
	n.record = claim.NewRecord(n.db)

	n.dist, err = claim.New(claim.Config{
		Name:              cfg.Name,
		Version:           cfg.Version,
		ChainID:           chainID,
		VerifyingContract: contract,
		Root:              root,
	}, l, n.record, claim.WithLogger(log.Default().Module("claim").With("datadir", cfg.DataDir)))
	if err != nil {
		n.db.Close()
		return nil, err
	}
	n.watchClaims()
	if cfg.MetricsAddr != "" {
		if err := n.serveMetrics(cfg.MetricsAddr); err != nil {
			n.dist.Close()
			n.db.Close()
			return nil, err
		}
	}
	n.log.Info("Node ready", "root", root.Hex(), "datadir", cfg.DataDir, "inmemory", cfg.InMemory)
	return n, nil
}

// watchClaims logs every paid claim until the distributor is closed.
func (n *Node) watchClaims() {
	events := make(chan claim.ClaimedEvent, 16)
	sub := n.dist.SubscribeClaims(events)
	n.claimsDone = make(chan struct{})
	go func() {
		defer close(n.claimsDone)
		for {
			select {
			case ev := <-events:
				n.paid.Add(1)
				n.log.Info("Claim paid", "account", ev.Account.Hex(), "amount", ev.Amount.Dec())
			case <-sub.Err():
				return
			}
		}
	}()
}

// PaidClaims returns the number of claims paid since the node started.
func (n *Node) PaidClaims() int64 { return n.paid.Load() }

// serveMetrics exposes the default metrics registry on addr under /metrics.
func (n *Node) serveMetrics(addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(metrics.DefaultRegistry, MetricsNamespace))
	n.metricsLis = lis
	n.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := n.metricsSrv.Serve(lis); err != nil && !errors.Is(err, http.ErrServerClosed) {
			n.log.Error("Metrics server failed", "err", err)
		}
	}()
	n.log.Info("Serving metrics", "addr", lis.Addr().String())
	return nil
}

// MetricsAddr returns the address the metrics endpoint listens on, or ""
// when it is disabled.
func (n *Node) MetricsAddr() string {
	if n.metricsLis == nil {
		return ""
	}
	return n.metricsLis.Addr().String()
}

func (n *Node) resolveRoot() (types.Hash, error) {
	var root types.Hash
	if n.config.Root != "" {
		root, _ = types.ParseHash(n.config.Root)
	}
	if n.config.Commitment == "" {
		return root, nil
	}
	c, err := commitment.ReadFile(n.config.ResolvePath(n.config.Commitment))
	if err != nil {
		return types.Hash{}, fmt.Errorf("load commitment: %w", err)
	}
	if n.config.Root != "" && c.Root != root {
		return types.Hash{}, fmt.Errorf("commitment root %s does not match configured root %s", c.Root.Hex(), root.Hex())
	}
	n.commitment = c
	return c.Root, nil
}

// Distributor returns the claim state machine.
func (n *Node) Distributor() *claim.Distributor { return n.dist }

// Record returns the redemption record.
func (n *Node) Record() *claim.Record { return n.record }

// Commitment returns the loaded commitment, or nil if only a root was
// configured.
func (n *Node) Commitment() *commitment.Commitment { return n.commitment }

// Config returns the node configuration.
func (n *Node) Config() *Config { return n.config }

// ClaimFor claims account's published entitlement using the proof from the
// loaded commitment.
func (n *Node) ClaimFor(account types.Address, sig *crypto.CompactSignature) error {
	if n.commitment == nil {
		return errors.New("node: no commitment loaded")
	}
	e, err := n.commitment.Lookup(account)
	if err != nil {
		return err
	}
	return n.dist.Claim(e.Account, e.Amount, e.Proof, sig)
}

// Close shuts the distributor and releases the database.
func (n *Node) Close() error {
	var err error
	n.closeOnce.Do(func() {
		if n.metricsSrv != nil {
			n.metricsSrv.Close()
		}
		n.dist.Close()
		<-n.claimsDone
		err = n.db.Close()
		n.log.Info("Node stopped")
	})
	return err
}
