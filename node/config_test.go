package node

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testRoot = "0x1111111111111111111111111111111111111111111111111111111111111111"

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.DataDir != "merkledrop-data" || cfg.Name != "MerkleDrop" || cfg.ChainID != "1" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	// Defaults alone lack a root.
	if err := cfg.Validate(); err == nil {
		t.Fatal("default config without root should not validate")
	}
	cfg.Root = testRoot
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config with root: %v", err)
	}
}

func TestConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"valid", func(c *Config) {}, true},
		{"in memory without datadir", func(c *Config) { c.DataDir = ""; c.InMemory = true }, true},
		{"commitment only", func(c *Config) { c.Root = ""; c.Commitment = "c.json" }, true},
		{"empty datadir", func(c *Config) { c.DataDir = "" }, false},
		{"empty name", func(c *Config) { c.Name = "" }, false},
		{"bad chain id", func(c *Config) { c.ChainID = "abc" }, false},
		{"negative chain id", func(c *Config) { c.ChainID = "-1" }, false},
		{"bad contract", func(c *Config) { c.VerifyingContract = "0x1234" }, false},
		{"no root source", func(c *Config) { c.Root = "" }, false},
		{"bad root", func(c *Config) { c.Root = "0xabcd" }, false},
		{"bad log level", func(c *Config) { c.LogLevel = "verbose" }, false},
		{"bad log format", func(c *Config) { c.LogFormat = "xml" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Root = testRoot
			tt.modify(&cfg)
			err := cfg.Validate()
			if tt.ok && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.ok && err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseConfig(t *testing.T) {
	data := []byte(`
datadir: /var/lib/drop
name: Airdrop
version: "2"
chain_id: "11155111"
verifying_contract: "0x5FbDB2315678afecb367f032d93F642f64180aa3"
root: "` + testRoot + `"
log_level: debug
log_format: json
`)
	cfg, err := ParseConfig(data)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DataDir != "/var/lib/drop" || cfg.Name != "Airdrop" || cfg.Version != "2" {
		t.Fatalf("parsed = %+v", cfg)
	}
	id, err := cfg.ParsedChainID()
	if err != nil || id.Uint64() != 11155111 {
		t.Fatalf("chain id = %v, %v", id, err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatal(err)
	}

	// Unset keys keep their defaults.
	partial, err := ParseConfig([]byte("root: \"" + testRoot + "\"\n"))
	if err != nil {
		t.Fatal(err)
	}
	if partial.Name != "MerkleDrop" || partial.LogFormat != "text" {
		t.Fatalf("defaults lost: %+v", partial)
	}
}

func TestParseConfigRejectsUnknownKeys(t *testing.T) {
	if _, err := ParseConfig([]byte("rpc_port: 8545\n")); err == nil {
		t.Fatal("unknown key should fail")
	}
	if _, err := ParseConfig([]byte("name: [unclosed\n")); err == nil {
		t.Fatal("malformed yaml should fail")
	}
}

func TestLoadConfig(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataDir = dir
	cfg.Root = testRoot
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatal(err)
	}
	got, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if *got != cfg {
		t.Fatalf("round trip: %+v, want %+v", *got, cfg)
	}

	if _, err := LoadConfig(filepath.Join(dir, "missing.yaml")); err == nil {
		t.Fatal("missing file should fail")
	}
	bad := filepath.Join(dir, "bad.yaml")
	os.WriteFile(bad, []byte("log_level: loud\nroot: \""+testRoot+"\"\n"), 0o600)
	if _, err := LoadConfig(bad); err == nil || !strings.Contains(err.Error(), "level") {
		t.Fatalf("invalid config: %v", err)
	}
}

func TestConfig_ResolvePath(t *testing.T) {
	cfg := Config{DataDir: "/data"}
	if got := cfg.ResolvePath("claims.db"); got != filepath.Join("/data", "claims.db") {
		t.Fatalf("relative = %q", got)
	}
	if got := cfg.ResolvePath("/abs/c.json"); got != "/abs/c.json" {
		t.Fatalf("absolute = %q", got)
	}
	if cfg.RecordPath() != filepath.Join("/data", "claims.db") {
		t.Fatalf("RecordPath = %q", cfg.RecordPath())
	}
}

func TestInitDataDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "drop")
	cfg := Config{DataDir: dir}
	if err := cfg.InitDataDir(); err != nil {
		t.Fatal(err)
	}
	if err := cfg.InitDataDir(); err != nil {
		t.Fatalf("second call: %v", err)
	}
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("datadir not created: %v", err)
	}
	if err := (&Config{}).InitDataDir(); err == nil {
		t.Fatal("empty datadir should fail")
	}
}
