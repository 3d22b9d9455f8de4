package entity_test

import (
	"testing"
	"time"

	"subtitle-history-api/internal/domain/entity"
)

func TestWritelockLifecycle(t *testing.T) {
	ttl := entity.DefaultWritelockTTL
	start := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	lang := entity.NewSubtitleLanguage("vid1", "en")

	if lang.IsWritelocked(start, ttl) || !lang.CanWritelock("bob", start, ttl) {
		t.Fatal("new language must be unlocked")
	}

	lang.Writelock("alice", start)

	tests := []struct {
		name   string
		user   string
		at     time.Time
		want   bool
		locked bool
	}{
		{name: "other user inside ttl", user: "bob", at: start.Add(10 * time.Second), want: false, locked: true},
		{name: "holder inside ttl", user: "alice", at: start.Add(10 * time.Second), want: true, locked: true},
		{name: "other user just before expiry", user: "bob", at: start.Add(ttl - time.Millisecond), want: false, locked: true},
		{name: "other user at expiry", user: "bob", at: start.Add(ttl), want: true, locked: false},
		{name: "other user after expiry", user: "bob", at: start.Add(time.Minute), want: true, locked: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := lang.CanWritelock(tt.user, tt.at, ttl); got != tt.want {
				t.Fatalf("CanWritelock = %v, want %v", got, tt.want)
			}
			if got := lang.IsWritelocked(tt.at, ttl); got != tt.locked {
				t.Fatalf("IsWritelocked = %v, want %v", got, tt.locked)
			}
		})
	}

	if lang.WritelockOwner() != "alice" {
		t.Fatalf("owner = %q", lang.WritelockOwner())
	}
	lang.ReleaseWritelock()
	if lang.WritelockOwner() != "" || !lang.CanWritelock("bob", start, ttl) {
		t.Fatal("release must clear the lock")
	}
}
