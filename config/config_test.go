package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEmptyPathReturnsDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if cfg.Identity.KeystoreDir != "keystore" {
		t.Fatalf("unexpected default keystore dir: %q", cfg.Identity.KeystoreDir)
	}
	if cfg.Negotiator.MaxAgreements != 4 {
		t.Fatalf("unexpected default max agreements: %d", cfg.Negotiator.MaxAgreements)
	}
	if !cfg.Observability.Metrics || !cfg.Observability.Tracing {
		t.Fatalf("expected metrics and tracing on by default")
	}
}

func TestLoadOverridesAndDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	doc := `
identity:
  keystoreDir: /var/lib/provider-agent/keystore
negotiator:
  maxAgreements: 10
observability:
  metrics: false
`
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Identity.KeystoreDir != "/var/lib/provider-agent/keystore" {
		t.Fatalf("keystore dir not applied: %q", cfg.Identity.KeystoreDir)
	}
	if cfg.Negotiator.MaxAgreements != 10 {
		t.Fatalf("max agreements not applied: %d", cfg.Negotiator.MaxAgreements)
	}
	if cfg.Observability.Metrics {
		t.Fatalf("expected metrics explicitly disabled to stay disabled")
	}
	if !cfg.Observability.Tracing {
		t.Fatalf("expected tracing to keep its default of true")
	}
	if cfg.Payment.DatabasePath != "payments.db" {
		t.Fatalf("expected untouched field to keep its default: %q", cfg.Payment.DatabasePath)
	}
}

func TestValidateRejectsInetEnabledWithoutAddress(t *testing.T) {
	cfg := defaults()
	cfg.Inet.SideChannelAddress = ""
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected validation error for empty side-channel address")
	}
}

func TestLoadDriverEnvRequiresGethAddr(t *testing.T) {
	if _, err := LoadDriverEnv("SEPOLIA"); err == nil {
		t.Fatalf("expected error when %s_GETH_ADDR is unset", "SEPOLIA")
	}
}

func TestLoadDriverEnvParsesAddressesAndFees(t *testing.T) {
	t.Setenv("SEPOLIA_GETH_ADDR", "https://rpc1.example, https://rpc2.example")
	t.Setenv("SEPOLIA_PRIORITY_FEE", "1.5")
	t.Setenv("SEPOLIA_MAX_FEE_PER_GAS", "30")
	t.Setenv("SEPOLIA_MULTI_PAYMENT_CONTRACT_ADDRESS", "0x0000000000000000000000000000000000000000")
	t.Setenv("SEPOLIA_LOCK_PAYMENT_CONTRACT_ADDRESS", "0x1111111111111111111111111111111111111111")
	t.Setenv("ERC20_SEPOLIA_REQUIRED_CONFIRMATIONS", "12")
	t.Setenv("ERC20_SENDOUT_INTERVAL_SECS", "60")

	env, err := LoadDriverEnv("sepolia")
	if err != nil {
		t.Fatalf("LoadDriverEnv: %v", err)
	}
	if len(env.GethAddresses) != 2 {
		t.Fatalf("expected 2 geth addresses, got %v", env.GethAddresses)
	}
	if env.PriorityFee != 1.5 || env.MaxFeePerGas != 30 {
		t.Fatalf("unexpected fees: %+v", env)
	}
	if env.Contracts.MultiPayment != "" {
		t.Fatalf("expected zero address to normalize to empty string, got %q", env.Contracts.MultiPayment)
	}
	if env.Contracts.LockPayment == "" {
		t.Fatalf("expected non-zero lock payment address to be preserved")
	}
	if env.RequiredConfirmations != 12 || env.SendoutIntervalSeconds != 60 {
		t.Fatalf("unexpected confirmation/interval values: %+v", env)
	}
}
