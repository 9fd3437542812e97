package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"rentchain/core"
	"rentchain/core/genesis"
	"rentchain/crypto"
	"rentchain/integrations/exports"
	"rentchain/rpc"
	"rentchain/storage"
)

const testClock = int64(1_700_000_000)

type cliHarness struct {
	t        *testing.T
	dir      string
	landlord string
	tenant   string
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func mustRun(t *testing.T, out interface{}, args ...string) {
	t.Helper()
	code, stdout, stderr := runCLI(t, args...)
	if code != 0 {
		t.Fatalf("%v exited %d: %s", args, code, stderr)
	}
	if out != nil {
		if err := json.Unmarshal([]byte(stdout), out); err != nil {
			t.Fatalf("decode %v output %q: %v", args, stdout, err)
		}
	}
}

func (h *cliHarness) as(keystore string) {
	cli.keyPath = keystore
	cli.key = nil
}

func newCLIHarness(t *testing.T) *cliHarness {
	t.Helper()
	t.Setenv(passEnv, "correct horse")
	prev, prevParams := cli, keystoreParams
	cli = newClient()
	keystoreParams = crypto.LightKeystore
	t.Cleanup(func() { cli, keystoreParams = prev, prevParams })

	h := &cliHarness{t: t, dir: t.TempDir()}
	h.landlord = filepath.Join(h.dir, "landlord.json")
	h.tenant = filepath.Join(h.dir, "tenant.json")
	addrs := make(map[string]string)
	for _, path := range []string{h.landlord, h.tenant} {
		var out map[string]string
		mustRun(t, &out, "keygen", "--out", path)
		addrs[path] = out["hex"]
	}

	spec := &genesis.Spec{
		Admin: addrs[h.landlord],
		Alloc: map[string]string{addrs[h.tenant]: "100000000000"},
	}
	node, err := core.NewNode(storage.NewMemDB(), spec, core.Options{
		Now: func() int64 { return testClock },
	})
	if err != nil {
		t.Fatalf("new node: %v", err)
	}
	srv := httptest.NewServer(rpc.NewServer(node, rpc.ServerConfig{}, nil).Handler())
	t.Cleanup(srv.Close)
	cli.endpoint = srv.URL
	return h
}

func TestKeygenRefusesOverwrite(t *testing.T) {
	h := newCLIHarness(t)
	code, _, stderr := runCLI(t, "keygen", "--out", h.landlord)
	if code == 0 || !strings.Contains(stderr, "already exists") {
		t.Fatalf("expected overwrite refusal, got %d %q", code, stderr)
	}
	h.as(h.landlord)
	var out map[string]string
	mustRun(t, &out, "address")
	if !strings.HasPrefix(out["hex"], "0x") || out["address"] == "" {
		t.Fatalf("unexpected address output %v", out)
	}
}

func TestLeaseLifecycleAndExport(t *testing.T) {
	h := newCLIHarness(t)

	h.as(h.landlord)
	var listing rpc.PropertyResult
	mustRun(t, &listing, "property", "create",
		"--title", "Harbour studio", "--location", "Rotterdam",
		"--price", "5e9", "--deposit", "1e10")
	if listing.PricePerMonth != "5000000000" || !listing.IsAvailable {
		t.Fatalf("unexpected listing %+v", listing)
	}

	h.as(h.tenant)
	var agreement rpc.AgreementResult
	mustRun(t, &agreement, "rental", "request",
		"--property", listing.ID, "--start", "1700086400", "--end", "2024-02-15")
	if agreement.Status != "PendingLandlordApproval" {
		t.Fatalf("unexpected status %s", agreement.Status)
	}

	h.as(h.landlord)
	mustRun(t, &agreement, "rental", "approve", agreement.ID)
	if agreement.Status != "PendingPayment" {
		t.Fatalf("unexpected status after approve %s", agreement.Status)
	}

	h.as(h.tenant)
	var escrowOut rpc.EscrowResult
	mustRun(t, &escrowOut, "escrow", "deposit", agreement.ID)

	var history []rpc.PaymentResult
	mustRun(t, &history, "escrow", "history", agreement.ID)
	if len(history) != 2 {
		t.Fatalf("expected deposit and first month, got %d records", len(history))
	}
	var verify rpc.VerifyResult
	mustRun(t, &verify, "escrow", "verify", agreement.ID)
	if !verify.Reconciled {
		t.Fatalf("ledger should reconcile: %+v", verify)
	}

	outDir := filepath.Join(h.dir, "exports")
	mustRun(t, nil, "escrow", "export", "--id", agreement.ID, "--dir", outDir)
	name := "payments-" + strings.TrimPrefix(agreement.ID, "0x")
	rows, err := exports.ReadParquet(filepath.Join(outDir, name+".parquet"))
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if len(rows) != 2 || rows[0].Type != history[0].Type {
		t.Fatalf("unexpected parquet rows %+v", rows)
	}
	if _, err := os.Stat(filepath.Join(outDir, name+".csv")); err != nil {
		t.Fatalf("csv missing: %v", err)
	}
}

func TestRPCErrorsSurface(t *testing.T) {
	h := newCLIHarness(t)
	h.as(h.tenant)
	code, _, stderr := runCLI(t, "admin", "pause", "property")
	if code == 0 || !strings.Contains(stderr, "Error:") {
		t.Fatalf("non-admin pause should fail, got %d %q", code, stderr)
	}
	code, _, stderr = runCLI(t, "property", "get", "0x"+strings.Repeat("ab", 32))
	if code == 0 || !strings.Contains(stderr, "Error:") {
		t.Fatalf("missing property should fail, got %d %q", code, stderr)
	}
}

func TestUsageErrors(t *testing.T) {
	newCLIHarness(t)
	if code, _, _ := runCLI(t); code != 1 {
		t.Fatalf("expected usage exit code")
	}
	if code, _, stderr := runCLI(t, "bogus"); code != 1 || !strings.Contains(stderr, "Unknown command") {
		t.Fatalf("unexpected result for unknown command: %q", stderr)
	}
	if code, _, stderr := runCLI(t, "rental", "list"); code != 1 || !strings.Contains(stderr, "--tenant") {
		t.Fatalf("rental list needs a filter: %q", stderr)
	}
	if code, _, stderr := runCLI(t, "property", "create", "--title", "x"); code != 1 || !strings.Contains(stderr, "--location is required") {
		t.Fatalf("missing flag not reported: %q", stderr)
	}
}

func TestApplyGlobalFlags(t *testing.T) {
	newCLIHarness(t)
	rest, err := applyGlobalFlags([]string{"--rpc=http://node:9000", "--token", "abc", "status"})
	if err != nil {
		t.Fatalf("flags: %v", err)
	}
	if len(rest) != 1 || rest[0] != "status" {
		t.Fatalf("unexpected remainder %v", rest)
	}
	if cli.endpoint != "http://node:9000" || cli.token != "abc" {
		t.Fatalf("flags not applied: %s %s", cli.endpoint, cli.token)
	}
	if _, err := applyGlobalFlags([]string{"--key"}); err == nil {
		t.Fatalf("expected missing value error")
	}
}

func TestParseHelpers(t *testing.T) {
	amount, err := parseAmount("25e8")
	if err != nil || amount != "2500000000" {
		t.Fatalf("parseAmount: %s %v", amount, err)
	}
	if _, err := parseAmount("-1"); err == nil {
		t.Fatalf("negative amounts must fail")
	}
	ts, err := parseDate("2023-11-15")
	if err != nil || ts != 1_700_006_400 {
		t.Fatalf("parseDate: %d %v", ts, err)
	}
	if _, err := parseDate("next tuesday"); err == nil {
		t.Fatalf("expected invalid date")
	}
	a, b := newAgreementID("0xAB"), newAgreementID("0xAB")
	if a == b || len(a) != 66 {
		t.Fatalf("agreement ids should be unique 32-byte hex: %s %s", a, b)
	}
}
