// ABOUTME: Tests for the shichen mapper and branch reference tables
// ABOUTME: Covers full-day coverage, boundaries, the hexagram table, and progress complementarity

package solar

import (
	"math"
	"testing"
	"time"
)

func solarClock(hour, minute int) time.Time {
	return time.Date(2026, 1, 18, hour, minute, 0, 0, time.UTC)
}

func TestSovereignHexagramTable(t *testing.T) {
	want := map[Branch]int{
		Zi: 24, Chou: 19, Yin: 11, Mao: 34, Chen: 43, Si: 1,
		Wu: 44, Wei: 33, Shen: 12, You: 20, Xu: 23, Hai: 2,
	}
	for branch, hexagram := range want {
		if got := branch.Hexagram(); got != hexagram {
			t.Errorf("%s: expected hexagram %d, got %d", branch, hexagram, got)
		}
	}
	if Branch("nope").Hexagram() != 0 {
		t.Error("unknown branch should have hexagram 0")
	}
}

func TestBranches_Order(t *testing.T) {
	want := []Branch{Zi, Chou, Yin, Mao, Chen, Si, Wu, Wei, Shen, You, Xu, Hai}
	got := Branches()
	if len(got) != BranchCount {
		t.Fatalf("expected %d branches, got %d", BranchCount, len(got))
	}
	for i, info := range got {
		if info.Branch != want[i] {
			t.Errorf("index %d: expected %s, got %s", i, want[i], info.Branch)
		}
		if info.Index != i {
			t.Errorf("index %d: info reports index %d", i, info.Index)
		}
	}
	if got[0].StartMinute != 23*60 {
		t.Errorf("Zi should start at 23:00, got minute %d", got[0].StartMinute)
	}
	if got[6].StartMinute != 11*60 {
		t.Errorf("Wu should start at 11:00, got minute %d", got[6].StartMinute)
	}
	if got[0].Hanzi != "子" || got[6].Animal != "horse" || got[8].Element != "metal" {
		t.Errorf("unexpected reference data: %+v %+v %+v", got[0], got[6], got[8])
	}
}

func TestBranchAt_Wraps(t *testing.T) {
	if BranchAt(12).Branch != Zi {
		t.Error("index 12 should wrap to Zi")
	}
	if BranchAt(-1).Branch != Hai {
		t.Error("index -1 should wrap to Hai")
	}
}

func TestShichenFromSolarTime_Boundaries(t *testing.T) {
	tests := []struct {
		hour, minute int
		branch       Branch
		progress     float64
	}{
		{23, 0, Zi, 0},
		{23, 59, Zi, 59.0 / 120},
		{0, 0, Zi, 0.5},
		{0, 59, Zi, 119.0 / 120},
		{1, 0, Chou, 0},
		{11, 0, Wu, 0},
		{12, 0, Wu, 0.5},
		{12, 59, Wu, 119.0 / 120},
		{13, 0, Wei, 0},
		{22, 59, Hai, 119.0 / 120},
	}

	for _, tt := range tests {
		got := ShichenFromSolarTime(solarClock(tt.hour, tt.minute))
		if got.Branch != tt.branch {
			t.Errorf("%02d:%02d: expected %s, got %s", tt.hour, tt.minute, tt.branch, got.Branch)
		}
		if math.Abs(got.Progress-tt.progress) > 1e-9 {
			t.Errorf("%02d:%02d: expected progress %f, got %f", tt.hour, tt.minute, tt.progress, got.Progress)
		}
	}
}

func TestShichenFromSolarTime_NoonIsWu(t *testing.T) {
	got := ShichenFromSolarTime(solarClock(12, 0))
	if got.Branch != Wu || got.HexagramNumber != 44 || got.Index != 6 {
		t.Errorf("expected wu/44/6, got %+v", got)
	}
}

func TestShichenFromSolarTime_FullDayCoverage(t *testing.T) {
	seen := make(map[Branch]int)
	changes := 0
	prev := ShichenFromSolarTime(solarClock(0, 0).Add(-time.Minute))

	for m := 0; m < 24*60; m++ {
		at := solarClock(0, 0).Add(time.Duration(m) * time.Minute)
		got := ShichenFromSolarTime(at)

		if _, ok := got.Branch.Info(); !ok {
			t.Fatalf("minute %d mapped to unknown branch %q", m, got.Branch)
		}
		if got.Index < 0 || got.Index >= BranchCount {
			t.Fatalf("minute %d: index %d out of range", m, got.Index)
		}
		seen[got.Branch]++

		if got.Branch != prev.Branch {
			changes++
			if at.Minute() != 0 || at.Hour()%2 != 1 {
				t.Errorf("branch changed at %s, expected only on odd hours", at.Format("15:04"))
			}
			if got.Progress != 0 {
				t.Errorf("new branch at %s should start with progress 0", at.Format("15:04"))
			}
		}
		prev = got
	}

	if changes != BranchCount {
		t.Errorf("expected %d branch changes in a day, got %d", BranchCount, changes)
	}
	for _, info := range Branches() {
		if seen[info.Branch] != BranchMinutes {
			t.Errorf("%s covered %d minutes, expected %d", info.Branch, seen[info.Branch], BranchMinutes)
		}
	}
}

func TestShichenFromSolarTime_ProgressComplement(t *testing.T) {
	for m := 0; m < 24*60; m += 7 {
		got := ShichenFromSolarTime(solarClock(0, 0).Add(time.Duration(m) * time.Minute))
		if sum := got.Progress + got.MinutesToNext/BranchMinutes; math.Abs(sum-1) > 1e-9 {
			t.Errorf("minute %d: progress + remaining = %f", m, sum)
		}
		if got.Progress < 0 || got.Progress >= 1 {
			t.Errorf("minute %d: progress %f out of [0,1)", m, got.Progress)
		}
		if got.MinutesToNext <= 0 || got.MinutesToNext > BranchMinutes {
			t.Errorf("minute %d: minutesToNext %f out of (0,120]", m, got.MinutesToNext)
		}
	}
}
