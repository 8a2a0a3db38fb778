package cooldown

import (
	"strings"
	"testing"
	"time"
)

func TestCheckAllowsBeforeAnyMark(t *testing.T) {
	guard := NewGuard(5*time.Second, 5*time.Second)
	if blocked, reason := guard.Check("ABC", time.Now()); blocked {
		t.Fatalf("expected fresh guard to allow, got blocked: %s", reason)
	}
}

func TestGlobalCooldownSpansSymbols(t *testing.T) {
	guard := NewGuard(5*time.Second, 0)
	now := time.Unix(1000, 0)

	guard.Mark("ABC", now)

	blocked, reason := guard.Check("XYZ", now.Add(2*time.Second))
	if !blocked {
		t.Fatalf("expected global cooldown to block a different symbol")
	}
	if !strings.Contains(reason, "global cooldown") {
		t.Fatalf("expected global cooldown reason, got %q", reason)
	}

	if blocked, _ := guard.Check("XYZ", now.Add(5*time.Second)); blocked {
		t.Fatalf("expected window to expire after 5s")
	}
}

func TestSymbolCooldown(t *testing.T) {
	guard := NewGuard(0, 10*time.Second)
	now := time.Unix(1000, 0)

	guard.Mark("ABC", now)

	if blocked, _ := guard.Check("XYZ", now.Add(time.Second)); blocked {
		t.Fatalf("expected other symbol to be unaffected")
	}
	blocked, reason := guard.Check("ABC", now.Add(time.Second))
	if !blocked {
		t.Fatalf("expected same symbol to be throttled")
	}
	if !strings.Contains(reason, "ABC") {
		t.Fatalf("expected reason to name the symbol, got %q", reason)
	}
}

func TestZeroDurationsDisableChecks(t *testing.T) {
	guard := NewGuard(0, 0)
	now := time.Unix(1000, 0)
	guard.Mark("ABC", now)
	if blocked, _ := guard.Check("ABC", now); blocked {
		t.Fatalf("expected zero-duration guard to never block")
	}
}

func TestCheckDoesNotMutate(t *testing.T) {
	guard := NewGuard(5*time.Second, 0)
	now := time.Unix(1000, 0)

	guard.Check("ABC", now)
	guard.Check("ABC", now)
	if blocked, _ := guard.Check("ABC", now.Add(time.Second)); blocked {
		t.Fatalf("Check alone must not start a cooldown window")
	}
}
