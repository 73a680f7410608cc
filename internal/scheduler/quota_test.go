package scheduler

import "testing"

func TestDailyQuota_AllowsUpToLimitThenBlocks(t *testing.T) {
	q := NewDailyQuota(2)
	if !q.Allow("u1") || !q.Allow("u1") {
		t.Fatal("expected first two calls to be allowed")
	}
	if q.Allow("u1") {
		t.Fatal("expected third call to be blocked")
	}
	if got := q.Remaining("u1"); got != 0 {
		t.Errorf("Remaining = %d, want 0", got)
	}
}

func TestDailyQuota_TracksUsersIndependently(t *testing.T) {
	q := NewDailyQuota(1)
	if !q.Allow("u1") {
		t.Fatal("expected u1 first call to be allowed")
	}
	if !q.Allow("u2") {
		t.Fatal("expected u2 to have its own quota")
	}
}

func TestDailyQuota_ZeroLimitDisablesQuota(t *testing.T) {
	q := NewDailyQuota(0)
	for i := 0; i < 100; i++ {
		if !q.Allow("u1") {
			t.Fatal("expected disabled quota to always allow")
		}
	}
}

func TestDailyQuota_ResetsOnDayRollover(t *testing.T) {
	q := NewDailyQuota(1)
	if !q.Allow("u1") {
		t.Fatal("expected first call to be allowed")
	}
	if q.Allow("u1") {
		t.Fatal("expected quota to be exhausted")
	}

	q.day = "2000-01-01" // force a stale day so the next Allow rolls over
	if !q.Allow("u1") {
		t.Fatal("expected quota to reset after a day rollover")
	}
}
