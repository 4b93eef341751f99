package property

import (
	"testing"
	"time"
)

func TestParseAssignments(t *testing.T) {
	set, err := ParseAssignments([]string{
		`golem.node.id.name="provider-1"`,
		"golem.inf.mem.gib=4",
		"golem.srv.caps.multi-activity=true",
		"golem.com.payment.chosen-platform=[erc20-polygon-glm, erc20-mainnet-glm]",
		"golem.activity.timestamp=2024-01-02T03:04:05Z",
		"golem.node.debug.subnet",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	name, ok := set.Get("golem.node.id.name")
	if !ok || name.Kind != KindString || name.Str != "provider-1" {
		t.Fatalf("expected string property, got %+v ok=%v", name, ok)
	}

	mem, ok := set.Get("golem.inf.mem.gib")
	if !ok || mem.Kind != KindNumber || mem.Number != 4 {
		t.Fatalf("expected numeric property, got %+v ok=%v", mem, ok)
	}

	multi, ok := set.Get("golem.srv.caps.multi-activity")
	if !ok || multi.Kind != KindBool || multi.Bool != true {
		t.Fatalf("expected bool property, got %+v ok=%v", multi, ok)
	}

	platforms, ok := set.Get("golem.com.payment.chosen-platform")
	if !ok || platforms.Kind != KindList || len(platforms.List) != 2 {
		t.Fatalf("expected 2-element list, got %+v ok=%v", platforms, ok)
	}

	ts, ok := set.Get("golem.activity.timestamp")
	if !ok || ts.Kind != KindDateTime {
		t.Fatalf("expected datetime property, got %+v ok=%v", ts, ok)
	}
	if !ts.Time.Equal(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected parsed time: %v", ts.Time)
	}

	if set.Has("golem.node.debug.subnet") == false {
		t.Fatalf("expected implicit property to be present")
	}
	if _, ok := set.Get("golem.node.debug.subnet"); ok {
		t.Fatalf("implicit property must not yield an explicit value")
	}
}

func TestParseAssignmentsRejectsEmptyName(t *testing.T) {
	if _, err := ParseAssignments([]string{"=value"}); err == nil {
		t.Fatalf("expected error for empty property name")
	}
}

func TestCloneIsIndependent(t *testing.T) {
	set, err := ParseAssignments([]string{"a=1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clone := set.WithExplicit("b", Number(2))
	if set.Has("b") {
		t.Fatalf("original set must not observe the clone's mutation")
	}
	if !clone.Has("a") || !clone.Has("b") {
		t.Fatalf("clone must carry both original and new properties")
	}
}
