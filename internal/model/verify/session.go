package verify

import "time"

// Role identifies what a connection may do within a session.
type Role string

const (
	RoleOwner       Role = "owner"
	RoleParticipant Role = "participant"
)

// DefaultDisplayName is used when a participant submits without a name.
const DefaultDisplayName = "anonymous"

// Session is one ephemeral verification scope: a single owner-supplied
// reference and the participants compared against it. All state is volatile;
// a process restart discards every session by design.
type Session struct {
	ID                string
	OwnerConnectionID string

	// ReferenceImage and ReferenceEmbedding are set together or not at all.
	ReferenceImage     string
	ReferenceEmbedding []float32

	Participants []Participant
	Capacity     int
	Duration     time.Duration
	CreatedAt    time.Time
}

// Participant is one verification submission, keyed by the submitting
// connection. Matched and Distance are computed once at upload time.
type Participant struct {
	ConnectionID string
	DisplayName  string
	Image        string
	Embedding    []float32
	Matched      bool
	Distance     float64
	SubmittedAt  time.Time
}

// HasReference reports whether the owner has uploaded a reference yet.
func (s *Session) HasReference() bool {
	return s.ReferenceEmbedding != nil
}

// ExpiresAt returns the moment the expiry sweep may remove the session.
func (s *Session) ExpiresAt() time.Time {
	return s.CreatedAt.Add(s.Duration)
}

// Expired reports whether the session has outlived its configured duration.
// A session with a missing creation time or duration is malformed and counts
// as expired so the sweep can clean it up.
func (s *Session) Expired(now time.Time) bool {
	if s.CreatedAt.IsZero() || s.Duration <= 0 {
		return true
	}
	return now.Sub(s.CreatedAt) > s.Duration
}

// ParticipantByConnection returns the index of the participant submitted by
// the given connection, or -1.
func (s *Session) ParticipantByConnection(connID string) int {
	for i := range s.Participants {
		if s.Participants[i].ConnectionID == connID {
			return i
		}
	}
	return -1
}

// Clone returns a snapshot safe to read after the store lock is released.
// Embeddings are shared and treated as read-only.
func (s *Session) Clone() Session {
	out := *s
	out.Participants = append([]Participant(nil), s.Participants...)
	return out
}
