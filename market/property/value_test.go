package property

import "testing"

func TestWildcardEquality(t *testing.T) {
	lhs := String("golem.runtime.*")
	if !lhs.Eq(String("golem.runtime.wasmtime")) {
		t.Fatalf("expected wildcard match against wasmtime")
	}
	if lhs.Eq(String("golem.vm")) {
		t.Fatalf("expected no wildcard match against golem.vm")
	}
}

func TestPlainStringEquality(t *testing.T) {
	if !String("exact").Eq(String("exact")) {
		t.Fatalf("expected exact string match")
	}
	if String("exact").Eq(String("exactly")) {
		t.Fatalf("expected no match for differing strings")
	}
}

func TestCrossKindComparisonNeverCrashes(t *testing.T) {
	if String("1").Eq(Number(1)) {
		t.Fatalf("cross-kind Eq must be false, not coerced")
	}
	if Bool(true).Lt(Bool(false)) {
		t.Fatalf("Bool ordering is unsupported and must report false")
	}
	if List(nil).Gt(List(nil)) {
		t.Fatalf("List ordering is unsupported and must report false")
	}
}

func TestNumberAndDateTimeOrdering(t *testing.T) {
	if !Number(1).Lt(Number(2)) {
		t.Fatalf("expected 1 < 2")
	}
	if !Number(2).Ge(Number(2)) {
		t.Fatalf("expected 2 >= 2")
	}
	early, _ := ParseValue("2020-01-01T00:00:00Z")
	late, _ := ParseValue("2021-01-01T00:00:00Z")
	if !early.Lt(late) {
		t.Fatalf("expected chronological ordering")
	}
}
