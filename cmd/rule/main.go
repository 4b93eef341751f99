// Command rule edits and inspects the admission RuleSet consulted by the
// negotiator's blacklist, allow-only ("everyone"), and audited-payload
// components, grounded on cmd/nhb-cli's per-subcommand
// run<X>Command(args, stdout, stderr) int dispatch style.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"provideragent/negotiator/rulestore"
)

// ErrNotImplemented marks CLI branches left unimplemented: certificate-
// scoped audited-payload editing and the non-JSON pretty printer for
// rule list.
var ErrNotImplemented = errors.New("rule: not implemented")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	path := os.Getenv("PROVIDER_AGENT_RULE_FILE")
	if path == "" {
		path = "rules.json"
	}

	jsonOut := false
	filtered := make([]string, 0, len(args))
	for _, a := range args {
		if a == "--json" {
			jsonOut = true
			continue
		}
		filtered = append(filtered, a)
	}
	args = filtered

	if len(args) == 0 {
		fmt.Fprintln(stderr, usage())
		return 1
	}

	store, err := rulestore.LoadOrCreate(path)
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	switch args[0] {
	case "set":
		return runSet(store, args[1:], stdout, stderr)
	case "list":
		return runList(store, args[1:], jsonOut, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Unknown rule subcommand: %s\n", args[0])
		fmt.Fprintln(stderr, usage())
		return 1
	}
}

func usage() string {
	return `Usage: rule [--json] <command>

Commands:
  set enable <kind>
  set disable <kind>
  set everyone <all|none|whitelist>
  set audited-payload [--certificate FINGERPRINT] <all|none|whitelist>
  list

<kind> is one of: blacklist, everyone, audited-payload`
}

func runSet(store *rulestore.Store, args []string, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprintln(stderr, "Error: rule set requires a target")
		return 1
	}
	switch args[0] {
	case "enable":
		return runSetEnabled(store, args[1:], true, stdout, stderr)
	case "disable":
		return runSetEnabled(store, args[1:], false, stdout, stderr)
	case "everyone":
		return runSetMode(store, rulestore.KindAllowOnly, args[1:], stdout, stderr)
	case "audited-payload":
		return runSetAuditedPayload(store, args[1:], stdout, stderr)
	default:
		fmt.Fprintf(stderr, "Error: unknown rule set action %q\n", args[0])
		return 1
	}
}

func runSetEnabled(store *rulestore.Store, args []string, enabled bool, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintln(stderr, "Error: expected exactly one rule kind argument")
		return 1
	}
	kind, err := parseKind(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := store.SetEnabled(kind, enabled); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	state := "disabled"
	if enabled {
		state = "enabled"
	}
	fmt.Fprintf(stdout, "%s %s\n", kind, state)
	return 0
}

func parseKind(s string) (rulestore.Kind, error) {
	switch s {
	case "blacklist":
		return rulestore.KindBlacklist, nil
	case "everyone":
		return rulestore.KindAllowOnly, nil
	case "audited-payload":
		return rulestore.KindAuditedPayload, nil
	default:
		return "", fmt.Errorf("unknown rule kind %q, want blacklist|everyone|audited-payload", s)
	}
}

func runSetMode(store *rulestore.Store, kind rulestore.Kind, args []string, stdout, stderr io.Writer) int {
	if len(args) != 1 {
		fmt.Fprintf(stderr, "Error: expected exactly one mode argument (all|none|whitelist)\n")
		return 1
	}
	mode, err := parseMode(args[0])
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := store.SetMode(kind, mode); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	if err := store.SetEnabled(kind, true); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	fmt.Fprintf(stdout, "%s mode set to %s\n", kind, mode)
	return 0
}

func runSetAuditedPayload(store *rulestore.Store, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("rule set audited-payload", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var certificate string
	fs.StringVar(&certificate, "certificate", "", "certificate fingerprint to scope this rule change to")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if certificate != "" {
		fmt.Fprintf(stderr, "Error: %v\n", ErrNotImplemented)
		return 1
	}
	return runSetMode(store, rulestore.KindAuditedPayload, fs.Args(), stdout, stderr)
}

func runList(store *rulestore.Store, args []string, jsonOut bool, stdout, stderr io.Writer) int {
	if len(args) > 0 {
		fmt.Fprintln(stderr, "Error: rule list takes no arguments")
		return 1
	}
	if !jsonOut {
		fmt.Fprintf(stderr, "Error: %v (use --json)\n", ErrNotImplemented)
		return 1
	}
	snapshot := store.List()
	writeListJSON(snapshot, stdout)
	return 0
}

// ruleView is the JSON shape rule list --json prints: the on-disk
// rule-file shape rather than rulestore's internal set representation.
type ruleView struct {
	Enabled      bool     `json:"enabled"`
	Mode         string   `json:"mode"`
	Identities   []string `json:"identities"`
	Certificates []string `json:"certificates"`
}

func writeListJSON(snapshot rulestore.Snapshot, stdout io.Writer) {
	kinds := []rulestore.Kind{rulestore.KindBlacklist, rulestore.KindAllowOnly, rulestore.KindAuditedPayload}
	out := make(map[rulestore.Kind]ruleView, len(kinds))
	for _, kind := range kinds {
		r := snapshot.Rule(kind)
		ids := make([]string, 0, len(r.Identities))
		for id := range r.Identities {
			ids = append(ids, id)
		}
		certs := make([]string, 0, len(r.Certificates))
		for c := range r.Certificates {
			certs = append(certs, c)
		}
		out[kind] = ruleView{Enabled: r.Enabled, Mode: string(r.Mode), Identities: ids, Certificates: certs}
	}
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(out)
}

func parseMode(s string) (rulestore.Mode, error) {
	switch s {
	case "all", "All":
		return rulestore.ModeAll, nil
	case "none", "None":
		return rulestore.ModeNone, nil
	case "whitelist", "Whitelist":
		return rulestore.ModeWhitelist, nil
	default:
		return "", fmt.Errorf("unknown mode %q, want all|none|whitelist", s)
	}
}
