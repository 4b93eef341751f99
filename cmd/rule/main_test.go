package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"
)

func withRuleFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rules.json")
	t.Setenv("PROVIDER_AGENT_RULE_FILE", path)
	return path
}

func TestSetBlacklistEnableThenList(t *testing.T) {
	withRuleFile(t)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if exit := run([]string{"set", "enable", "blacklist"}, stdout, stderr); exit != 0 {
		t.Fatalf("set enable blacklist: exit=%d stderr=%q", exit, stderr.String())
	}

	stdout.Reset()
	stderr.Reset()
	if exit := run([]string{"--json", "list"}, stdout, stderr); exit != 0 {
		t.Fatalf("list: exit=%d stderr=%q", exit, stderr.String())
	}
	var doc map[string]json.RawMessage
	if err := json.Unmarshal(stdout.Bytes(), &doc); err != nil {
		t.Fatalf("list output is not valid JSON: %v\n%s", err, stdout.String())
	}
	var blacklist struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.Unmarshal(doc["Blacklist"], &blacklist); err != nil {
		t.Fatalf("decode blacklist entry: %v", err)
	}
	if !blacklist.Enabled {
		t.Fatalf("expected blacklist enabled after set")
	}
}

func TestSetEveryoneWhitelist(t *testing.T) {
	withRuleFile(t)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	if exit := run([]string{"set", "everyone", "whitelist"}, stdout, stderr); exit != 0 {
		t.Fatalf("set everyone whitelist: exit=%d stderr=%q", exit, stderr.String())
	}

	stdout.Reset()
	if exit := run([]string{"--json", "list"}, stdout, stderr); exit != 0 {
		t.Fatalf("list: exit=%d", exit)
	}
	if !bytes.Contains(stdout.Bytes(), []byte(`"Whitelist"`)) {
		t.Fatalf("expected whitelist mode in output, got %s", stdout.String())
	}
}

func TestSetEveryoneRejectsUnknownMode(t *testing.T) {
	withRuleFile(t)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exit := run([]string{"set", "everyone", "sometimes"}, stdout, stderr)
	if exit == 0 {
		t.Fatalf("expected non-zero exit for unknown mode")
	}
	if stderr.Len() == 0 {
		t.Fatalf("expected an error message on stderr")
	}
}

func TestSetAuditedPayloadWithCertificateIsNotImplemented(t *testing.T) {
	withRuleFile(t)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exit := run([]string{"set", "audited-payload", "--certificate", "ab:cd", "all"}, stdout, stderr)
	if exit == 0 {
		t.Fatalf("expected non-zero exit for unimplemented certificate scoping")
	}
	if !bytes.Contains(stderr.Bytes(), []byte(ErrNotImplemented.Error())) {
		t.Fatalf("expected ErrNotImplemented in stderr, got %q", stderr.String())
	}
}

func TestListWithoutJSONIsNotImplemented(t *testing.T) {
	withRuleFile(t)

	stdout := &bytes.Buffer{}
	stderr := &bytes.Buffer{}
	exit := run([]string{"list"}, stdout, stderr)
	if exit == 0 {
		t.Fatalf("expected non-zero exit for pretty-print list")
	}
	if !bytes.Contains(stderr.Bytes(), []byte(ErrNotImplemented.Error())) {
		t.Fatalf("expected ErrNotImplemented in stderr, got %q", stderr.String())
	}
}
