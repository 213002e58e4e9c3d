package sessions

import (
	"fmt"
	"testing"
	"time"
)

func TestRecordTouchesExistingDevice(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	list := []Session{{ID: "s1", Address: "10.0.0.1", DeviceInfo: "Chrome, Linux", CreatedAt: base, LastUsed: base}}

	list, id := Record(list, Session{
		ID:         "s2",
		Address:    "10.0.0.1",
		DeviceInfo: "Chrome, Linux",
		CreatedAt:  base.Add(time.Hour),
		LastUsed:   base.Add(time.Hour),
	}, DefaultCap)

	if len(list) != 1 {
		t.Fatalf("len = %d, want 1", len(list))
	}
	if id != "s1" {
		t.Fatalf("id = %q, want existing id s1", id)
	}
	if !list[0].LastUsed.Equal(base.Add(time.Hour)) {
		t.Fatalf("LastUsed not touched: %v", list[0].LastUsed)
	}
	if !list[0].CreatedAt.Equal(base) {
		t.Fatalf("CreatedAt changed: %v", list[0].CreatedAt)
	}
}

func TestRecordEvictsLeastRecentlyUsed(t *testing.T) {
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	var list []Session
	for i := 0; i < DefaultCap; i++ {
		list, _ = Record(list, Session{
			ID:         fmt.Sprintf("s%d", i),
			Address:    fmt.Sprintf("10.0.0.%d", i),
			DeviceInfo: "Chrome, Linux",
			LastUsed:   base.Add(time.Duration(i) * time.Minute),
		}, DefaultCap)
	}

	list, id := Record(list, Session{
		ID:         "new",
		Address:    "192.168.0.1",
		DeviceInfo: "Firefox, Windows",
		LastUsed:   base.Add(time.Hour),
	}, DefaultCap)

	if len(list) != DefaultCap {
		t.Fatalf("len = %d, want %d", len(list), DefaultCap)
	}
	if id != "new" {
		t.Fatalf("id = %q, want new", id)
	}
	if FindByID(list, "s0") != -1 {
		t.Fatal("oldest session s0 not evicted")
	}
	if FindByID(list, "new") == -1 {
		t.Fatal("new session missing")
	}
	// Eviction must not reshuffle the survivors.
	for i := 1; i < DefaultCap-1; i++ {
		if list[i-1].ID != fmt.Sprintf("s%d", i) {
			t.Fatalf("position %d holds %q, want s%d", i-1, list[i-1].ID, i)
		}
	}
	if list[DefaultCap-1].ID != "new" {
		t.Fatalf("last position holds %q, want new", list[DefaultCap-1].ID)
	}
}

func TestKeepOnly(t *testing.T) {
	list := []Session{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	kept, removed := KeepOnly(list, "b")
	if len(kept) != 1 || kept[0].ID != "b" || removed != 2 {
		t.Fatalf("kept=%v removed=%d", kept, removed)
	}
}

func TestRemove(t *testing.T) {
	list := []Session{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	list = Remove(list, FindByID(list, "b"))
	if len(list) != 2 || FindByID(list, "b") != -1 {
		t.Fatalf("remove failed: %v", list)
	}
	if got := Remove(list, -1); len(got) != 2 {
		t.Fatalf("out of range remove mutated list: %v", got)
	}
}

func TestParseUserAgent(t *testing.T) {
	cases := map[string]string{
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36": "Chrome, Windows",
		"Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0":                                      "Firefox, Linux",
		"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/605.1.15 Version/17.0 Safari/605.1.15":           "Safari, macOS",
		"curl/8.4.0": "curl",
		"":           "Unknown",
	}
	for ua, want := range cases {
		if got := ParseUserAgent(ua); got != want {
			t.Errorf("ParseUserAgent(%q) = %q, want %q", ua, got, want)
		}
	}
}
