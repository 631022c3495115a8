// Command merkledrop builds, publishes and redeems Merkle-committed
// entitlement distributions.
//
// Usage:
//
//	merkledrop <command> [flags]
//
// Commands:
//
//	build    Build a commitment from an entitlement list
//	verify   Check a commitment, or one account in it, against its root
//	sign     Sign a claim message with a secp256k1 key
//	claim    Redeem a signed claim against the reference ledger
//	status   List accounts recorded as claimed
//	version  Print version and exit
//
// Every command accepts --verbosity (0-5) and --log.format (text, json).
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/commitment"
	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/crypto"
	"github.com/eth2030/merkledrop/ledger"
	"github.com/eth2030/merkledrop/log"
	"github.com/eth2030/merkledrop/merkle"
	"github.com/eth2030/merkledrop/metrics"
	"github.com/eth2030/merkledrop/node"
)

// Build-time version info, overridable with ldflags:
//
//	go build -ldflags "-X main.version=v0.2.0 -X main.commit=abc1234"
var (
	version = "v0.1.0-dev"
	commit  = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

type command struct {
	name  string
	usage string
	run   func(args []string, stdout, stderr io.Writer) error
}

var commands = []command{
	{"build", "Build a commitment from an entitlement list", runBuild},
	{"verify", "Check a commitment, or one account in it, against its root", runVerify},
	{"sign", "Sign a claim message with a secp256k1 key", runSign},
	{"claim", "Redeem a signed claim against the reference ledger", runClaim},
	{"status", "List accounts recorded as claimed", runStatus},
}

// errUsage marks errors already reported by the flag package.
var errUsage = errors.New("usage")

// run is the actual entry point, returning an exit code. Accepts CLI
// arguments (without the program name) so it can be tested in isolation.
func run(args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		printUsage(stderr)
		return 2
	}
	switch args[0] {
	case "version", "-version", "--version":
		fmt.Fprintf(stdout, "merkledrop %s (commit %s)\n", version, commit)
		return 0
	case "help", "-h", "-help", "--help":
		printUsage(stdout)
		return 0
	}
	for _, c := range commands {
		if c.name != args[0] {
			continue
		}
		err := c.run(args[1:], stdout, stderr)
		switch {
		case err == nil:
			return 0
		case errors.Is(err, errUsage):
			return 2
		default:
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
	}
	fmt.Fprintf(stderr, "Error: unknown command %q\n", args[0])
	printUsage(stderr)
	return 2
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: merkledrop <command> [flags]")
	fmt.Fprintln(w)
	for _, c := range commands {
		fmt.Fprintf(w, "  %-8s %s\n", c.name, c.usage)
	}
	fmt.Fprintf(w, "  %-8s %s\n", "version", "Print version and exit")
}

// parse parses args and installs the logger. Flag errors are already
// printed by the flag package.
func (fs *flagSet) parse(args []string, stderr io.Writer) error {
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	if fs.NArg() > 0 {
		fmt.Fprintf(stderr, "unexpected arguments: %v\n", fs.Args())
		return errUsage
	}
	return fs.setupLogging(stderr)
}

func runBuild(args []string, stdout, stderr io.Writer) error {
	fs := newCustomFlagSet("build", stderr)
	in := fs.String("in", "", "entitlement list (JSON array of {account, amount})")
	out := fs.String("out", "commitment.json", "commitment output path (- for stdout)")
	dup := fs.Bool("duplicate-odd", false, "pair an unpaired node with itself instead of carrying it up")
	unique := fs.Bool("unique", false, "reject lists that name an account twice")
	workers := fs.Int("workers", 0, "hashing goroutines (0 = GOMAXPROCS)")
	if err := fs.parse(args, stderr); err != nil {
		return err
	}
	if *in == "" {
		return errors.New("build: -in is required")
	}

	f, err := os.Open(*in)
	if err != nil {
		return err
	}
	ents, err := commitment.LoadEntitlements(f)
	f.Close()
	if err != nil {
		return err
	}

	opts := []merkle.Option{merkle.WithWorkers(*workers)}
	if *dup {
		opts = append(opts, merkle.WithOddPolicy(merkle.DuplicateOdd))
	}
	if *unique {
		opts = append(opts, merkle.WithUniqueAccounts())
	}
	tree, err := merkle.Build(ents, opts...)
	if err != nil {
		return err
	}
	c := commitment.FromTree(tree)
	total, ok := c.Total()
	if !ok {
		log.Warn("Entitlement total exceeds 256 bits")
		total = new(uint256.Int)
	}

	if *out == "-" {
		if err := c.Write(stdout); err != nil {
			return err
		}
	} else {
		if err := c.WriteFile(*out); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "root:    %s\n", c.Root.Hex())
		fmt.Fprintf(stdout, "entries: %d\n", len(c.Entries))
		fmt.Fprintf(stdout, "depth:   %d\n", tree.Depth())
		fmt.Fprintf(stdout, "total:   %s\n", total.Dec())
	}
	log.Info("Commitment written", "path", *out, "root", c.Root.Hex(),
		"entries", len(c.Entries), "build_us", metrics.MerkleBuildTime.Snapshot().Mean())
	return nil
}

func runVerify(args []string, stdout, stderr io.Writer) error {
	fs := newCustomFlagSet("verify", stderr)
	path := fs.String("commitment", "commitment.json", "commitment file")
	var account types.Address
	fs.AddressVar(&account, "account", "verify only this account")
	workers := fs.Int("workers", 0, "verification goroutines (0 = GOMAXPROCS)")
	sigsPath := fs.String("sigs", "", "also check a JSON file of signed claims ({account, signature})")
	name := fs.String("name", "MerkleDrop", "signing domain name (with -sigs)")
	ver := fs.String("version", "1", "signing domain version (with -sigs)")
	var chainID uint256.Int
	fs.Uint256Var(&chainID, "chainid", 1, "chain id (with -sigs)")
	var contract types.Address
	fs.AddressVar(&contract, "contract", "verifying contract address (with -sigs)")
	if err := fs.parse(args, stderr); err != nil {
		return err
	}
	c, err := commitment.ReadFile(*path)
	if err != nil {
		return err
	}
	if *sigsPath != "" {
		return verifySignatures(stdout, c, *sigsPath, crypto.NewDomain(*name, *ver, &chainID, contract), *workers)
	}
	if account.IsZero() {
		res, err := c.Audit(context.Background(), *workers)
		if err != nil {
			return err
		}
		for i, idx := range res.Failed {
			log.Warn("Entry failed verification", "index", idx, "err", res.Errs[i])
		}
		if err := res.Err(); err != nil {
			return err
		}
		fmt.Fprintf(stdout, "ok: %d entries verify against %s\n", res.Checked, c.Root.Hex())
		return nil
	}
	e, err := c.Lookup(account)
	if err != nil {
		return err
	}
	if err := e.Verify(c.Root); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ok: %s is entitled to %s\n", account.Hex(), e.Amount.Dec())
	return nil
}

func verifySignatures(stdout io.Writer, c *commitment.Commitment, path string, domain *crypto.Domain, workers int) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	claims, err := commitment.LoadSignedClaims(f)
	f.Close()
	if err != nil {
		return err
	}
	res, err := c.CheckSignatures(domain, claims, workers)
	if err != nil {
		return err
	}
	for i, idx := range res.Failed {
		log.Warn("Signed claim failed verification", "index", idx,
			"account", claims[idx].Account.Hex(), "err", res.Errs[i])
	}
	if err := res.Err(); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "ok: %d signed claims authorize their entitlements\n", res.Checked)
	return nil
}

func runSign(args []string, stdout, stderr io.Writer) error {
	fs := newCustomFlagSet("sign", stderr)
	keyHex := fs.String("key", "", "hex-encoded secp256k1 private key")
	name := fs.String("name", "MerkleDrop", "signing domain name")
	ver := fs.String("version", "1", "signing domain version")
	var chainID, amount uint256.Int
	fs.Uint256Var(&chainID, "chainid", 1, "chain id")
	fs.Uint256Var(&amount, "amount", 0, "claimed amount (overrides -commitment)")
	var contract types.Address
	fs.AddressVar(&contract, "contract", "verifying contract address")
	path := fs.String("commitment", "", "read the amount for the signer from this commitment")
	legacyV := fs.Bool("legacy-v", false, "encode V as 27/28 instead of 0/1")
	if err := fs.parse(args, stderr); err != nil {
		return err
	}
	if *keyHex == "" {
		return errors.New("sign: -key is required")
	}
	key, err := crypto.HexToECDSA(*keyHex)
	if err != nil {
		return fmt.Errorf("sign: %w", err)
	}
	account := crypto.PubkeyToAddress(key.PublicKey)

	if *path != "" && amount.IsZero() {
		c, err := commitment.ReadFile(*path)
		if err != nil {
			return err
		}
		e, err := c.Lookup(account)
		if err != nil {
			return err
		}
		amount.Set(e.Amount)
	}

	domain := crypto.NewDomain(*name, *ver, &chainID, contract)
	digest := domain.ClaimDigest(account, &amount)
	sig, err := crypto.Sign(digest, key)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "account:   %s\n", account.Hex())
	fmt.Fprintf(stdout, "amount:    %s\n", amount.Dec())
	fmt.Fprintf(stdout, "digest:    %s\n", digest.Hex())
	raw := sig.Bytes()
	if *legacyV {
		raw[64] = crypto.EncodeVLegacy(raw[64])
	}
	fmt.Fprintf(stdout, "signature: %s\n", hexutil.Encode(raw))
	return nil
}

func runClaim(args []string, stdout, stderr io.Writer) error {
	fs := newCustomFlagSet("claim", stderr)
	cfgPath := fs.String("config", "merkledrop.yaml", "node configuration file")
	var account types.Address
	fs.AddressVar(&account, "account", "claiming account")
	sigHex := fs.String("sig", "", "0x-prefixed 65-byte claim signature")
	showMetrics := fs.Bool("metrics", false, "print claim metrics after the attempt")
	metricsAddr := fs.String("metrics.addr", "", "serve /metrics on this address (overrides metrics_addr)")
	if err := fs.parse(args, stderr); err != nil {
		return err
	}
	raw, err := hexutil.Decode(*sigHex)
	if err != nil {
		return fmt.Errorf("claim: -sig: %w", err)
	}
	sig, err := crypto.ParseCompactSignature(raw)
	if err != nil {
		return fmt.Errorf("claim: -sig: %w", err)
	}
	cfg, err := node.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if err := fs.applyConfigLogging(stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	if cfg.Commitment == "" {
		return errors.New("claim: config must name a commitment file")
	}

	// The reference ledger starts each run funded with the commitment total.
	c, err := commitment.ReadFile(cfg.ResolvePath(cfg.Commitment))
	if err != nil {
		return err
	}
	total, ok := c.Total()
	if !ok {
		return errors.New("claim: commitment total exceeds 256 bits")
	}
	holder := types.BytesToAddress(crypto.Keccak256([]byte("merkledrop.holder")))
	tl := ledger.NewTokenLedger(holder)
	if err := tl.Mint(holder, total); err != nil {
		return err
	}

	n, err := node.New(cfg, tl)
	if err != nil {
		return err
	}
	defer n.Close()

	claimErr := n.ClaimFor(account, sig)
	if *showMetrics {
		printMetrics(stdout)
	}
	if claimErr != nil {
		return claimErr
	}
	fmt.Fprintf(stdout, "claimed: %s received %s\n", account.Hex(), tl.BalanceOf(account).Dec())
	fmt.Fprintf(stdout, "remaining: %s\n", tl.BalanceOf(tl.Holder()).Dec())
	return nil
}

func runStatus(args []string, stdout, stderr io.Writer) error {
	fs := newCustomFlagSet("status", stderr)
	cfgPath := fs.String("config", "merkledrop.yaml", "node configuration file")
	metricsAddr := fs.String("metrics.addr", "", "serve /metrics on this address (overrides metrics_addr)")
	if err := fs.parse(args, stderr); err != nil {
		return err
	}
	cfg, err := node.LoadConfig(*cfgPath)
	if err != nil {
		return err
	}
	if err := fs.applyConfigLogging(stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	if *metricsAddr != "" {
		cfg.MetricsAddr = *metricsAddr
	}
	n, err := node.New(cfg, ledger.FailingLedger{})
	if err != nil {
		return err
	}
	defer n.Close()

	claimed, err := n.Record().Claimed()
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "root:    %s\n", n.Distributor().Root().Hex())
	fmt.Fprintf(stdout, "claimed: %d\n", len(claimed))
	for _, a := range claimed {
		fmt.Fprintf(stdout, "  %s\n", a.Hex())
	}
	return nil
}

func printMetrics(w io.Writer) {
	if err := metrics.WriteText(w, metrics.DefaultRegistry, node.MetricsNamespace); err != nil {
		log.Warn("Failed to write metrics", "err", err)
	}
}
