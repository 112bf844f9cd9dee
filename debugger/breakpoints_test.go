package debugger

import "testing"

func TestAddBreakpointAssignsIncreasingIDs(t *testing.T) {
	bm := NewBreakpointManager()
	b1 := bm.AddBreakpoint(4, false, "")
	b2 := bm.AddBreakpoint(8, false, "")
	if b1.ID == b2.ID {
		t.Fatalf("two breakpoints got the same ID %d", b1.ID)
	}
	if bm.Count() != 2 {
		t.Errorf("Count() = %d, want 2", bm.Count())
	}
}

func TestAddBreakpointAtExistingPCReEnables(t *testing.T) {
	bm := NewBreakpointManager()
	b1 := bm.AddBreakpoint(4, false, "")
	bm.DisableBreakpoint(b1.ID)

	b2 := bm.AddBreakpoint(4, true, "r0 == 1")
	if b2.ID != b1.ID {
		t.Errorf("re-adding at the same pc should reuse the ID, got %d want %d", b2.ID, b1.ID)
	}
	if !b2.Enabled {
		t.Error("re-added breakpoint should be enabled")
	}
	if bm.Count() != 1 {
		t.Errorf("Count() = %d, want 1 (no duplicate)", bm.Count())
	}
}

func TestDeleteBreakpointRemovesIt(t *testing.T) {
	bm := NewBreakpointManager()
	bp := bm.AddBreakpoint(4, false, "")
	if err := bm.DeleteBreakpoint(bp.ID); err != nil {
		t.Fatalf("DeleteBreakpoint: %v", err)
	}
	if bm.HasBreakpoint(4) {
		t.Error("breakpoint still present after delete")
	}
}

func TestDeleteBreakpointUnknownIDErrors(t *testing.T) {
	bm := NewBreakpointManager()
	if err := bm.DeleteBreakpoint(999); err == nil {
		t.Error("expected an error deleting an unknown breakpoint ID")
	}
}

func TestEnableDisableBreakpoint(t *testing.T) {
	bm := NewBreakpointManager()
	bp := bm.AddBreakpoint(4, false, "")

	if err := bm.DisableBreakpoint(bp.ID); err != nil {
		t.Fatalf("DisableBreakpoint: %v", err)
	}
	if bm.GetBreakpoint(4).Enabled {
		t.Error("breakpoint should be disabled")
	}

	if err := bm.EnableBreakpoint(bp.ID); err != nil {
		t.Fatalf("EnableBreakpoint: %v", err)
	}
	if !bm.GetBreakpoint(4).Enabled {
		t.Error("breakpoint should be enabled again")
	}
}

func TestProcessHitIncrementsAndClearsTemporary(t *testing.T) {
	bm := NewBreakpointManager()
	bm.AddBreakpoint(4, true, "")

	hit := bm.ProcessHit(4)
	if hit == nil || hit.HitCount != 1 {
		t.Fatalf("ProcessHit = %+v, want HitCount 1", hit)
	}
	if bm.HasBreakpoint(4) {
		t.Error("temporary breakpoint should be removed after its first hit")
	}
}

func TestProcessHitOnPermanentBreakpointKeepsIt(t *testing.T) {
	bm := NewBreakpointManager()
	bm.AddBreakpoint(4, false, "")

	bm.ProcessHit(4)
	bm.ProcessHit(4)
	if !bm.HasBreakpoint(4) {
		t.Fatal("permanent breakpoint should survive hits")
	}
	if bm.GetBreakpoint(4).HitCount != 2 {
		t.Errorf("HitCount = %d, want 2", bm.GetBreakpoint(4).HitCount)
	}
}

func TestClearRemovesAllBreakpoints(t *testing.T) {
	bm := NewBreakpointManager()
	bm.AddBreakpoint(4, false, "")
	bm.AddBreakpoint(8, false, "")
	bm.Clear()
	if bm.Count() != 0 {
		t.Errorf("Count() after Clear() = %d, want 0", bm.Count())
	}
}
