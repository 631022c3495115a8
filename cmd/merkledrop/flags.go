package main

import (
	"flag"
	"fmt"
	"io"

	"github.com/holiman/uint256"

	"github.com/eth2030/merkledrop/commitment"
	"github.com/eth2030/merkledrop/core/types"
	"github.com/eth2030/merkledrop/log"
)

// flagSet wraps flag.FlagSet to add uint256 and address flags plus the
// logging flags every subcommand shares.
type flagSet struct {
	*flag.FlagSet
	verbosity int
	logFormat string
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior that
// writes usage and parse errors to w.
func newCustomFlagSet(name string, w io.Writer) *flagSet {
	fs := &flagSet{FlagSet: flag.NewFlagSet(name, flag.ContinueOnError)}
	fs.SetOutput(w)
	fs.IntVar(&fs.verbosity, "verbosity", 3, "log level 0-5 (0=silent, 5=trace)")
	fs.StringVar(&fs.logFormat, "log.format", "text", "log format (text, json)")
	return fs
}

// setupLogging installs the default logger according to the parsed flags.
func (fs *flagSet) setupLogging(w io.Writer) error {
	level, err := log.ParseLevel(log.VerbosityToLevel(fs.verbosity))
	if err != nil {
		return err
	}
	switch fs.logFormat {
	case "text", "json":
	default:
		return fmt.Errorf("unknown log format %q", fs.logFormat)
	}
	log.SetDefault(log.NewWithWriter(w, level, fs.logFormat))
	return nil
}

// applyConfigLogging switches to the level and format from a node config
// unless --verbosity or --log.format was given explicitly.
func (fs *flagSet) applyConfigLogging(w io.Writer, level, format string) error {
	explicit := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "verbosity" || f.Name == "log.format" {
			explicit = true
		}
	})
	if explicit {
		return nil
	}
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewWithWriter(w, lvl, format))
	return nil
}

// Uint256Var defines a 256-bit unsigned flag accepting decimal or 0x hex.
func (fs *flagSet) Uint256Var(p *uint256.Int, name string, value uint64, usage string) {
	p.SetUint64(value)
	fs.FlagSet.Var(&uint256Value{p: p}, name, usage)
}

// AddressVar defines a 20-byte hex address flag.
func (fs *flagSet) AddressVar(p *types.Address, name string, usage string) {
	fs.FlagSet.Var(&addressValue{p: p}, name, usage)
}

// uint256Value implements flag.Value for uint256 flags.
type uint256Value struct {
	p *uint256.Int
}

func (v *uint256Value) String() string {
	if v.p == nil {
		return "0"
	}
	return v.p.Dec()
}

func (v *uint256Value) Set(s string) error {
	n, err := commitment.ParseAmount(s)
	if err != nil {
		return fmt.Errorf("invalid uint256 value %q", s)
	}
	v.p.Set(n)
	return nil
}

// addressValue implements flag.Value for address flags.
type addressValue struct {
	p *types.Address
}

func (v *addressValue) String() string {
	if v.p == nil {
		return types.Address{}.Hex()
	}
	return v.p.Hex()
}

func (v *addressValue) Set(s string) error {
	a, err := types.ParseAddress(s)
	if err != nil {
		return fmt.Errorf("invalid address %q", s)
	}
	*v.p = a
	return nil
}
