package verify_test

import (
	"testing"
	"time"

	verify "github.com/wenqianl/facegate/backend/internal/model/verify"
)

func TestGalleryWithholdsUnmatched(t *testing.T) {
	session := verify.Session{
		ID: "abcd1234",
		Participants: []verify.Participant{
			{ConnectionID: "a", DisplayName: "alice", Image: "img-a", Matched: true, Distance: 0.1},
			{ConnectionID: "b", DisplayName: "bob", Image: "img-b", Matched: false, Distance: 8.6},
			{ConnectionID: "c", DisplayName: "carol", Image: "img-c", Matched: true, Distance: 0.3},
		},
	}

	gallery := session.Gallery()

	if gallery.TotalCount != 3 {
		t.Fatalf("expected total 3, got %d", gallery.TotalCount)
	}
	if gallery.MatchedCount != 2 {
		t.Fatalf("expected 2 matched, got %d", gallery.MatchedCount)
	}
	for _, entry := range gallery.Matched {
		if entry.DisplayName == "bob" || entry.Image == "img-b" {
			t.Fatal("unmatched participant leaked into gallery")
		}
	}
	if gallery.Matched[0].DisplayName != "alice" || gallery.Matched[1].DisplayName != "carol" {
		t.Fatalf("gallery order not preserved: %+v", gallery.Matched)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Now().UTC()
	session := verify.Session{CreatedAt: now, Duration: 30 * time.Minute}

	if session.Expired(now.Add(15 * time.Minute)) {
		t.Fatal("session expired at half its duration")
	}
	if !session.Expired(now.Add(31 * time.Minute)) {
		t.Fatal("session not expired past its duration")
	}

	malformed := verify.Session{}
	if !malformed.Expired(now) {
		t.Fatal("malformed session should count as expired")
	}
}

func TestCloneDetachesParticipants(t *testing.T) {
	session := verify.Session{
		Participants: []verify.Participant{{ConnectionID: "a"}},
	}

	snapshot := session.Clone()
	session.Participants[0].ConnectionID = "changed"

	if snapshot.Participants[0].ConnectionID != "a" {
		t.Fatal("snapshot shares participant storage with the original")
	}
}
