package verify

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wenqianl/facegate/backend/internal/model/verify"
)

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrSessionFull          = errors.New("session full")
	ErrNotAuthorized        = errors.New("not authorized")
	ErrReferenceNotReady    = errors.New("reference not ready")
	ErrInvalidConfiguration = errors.New("invalid configuration")
)

// Notifier delivers best-effort push events. Delivery to a dead connection
// is silently dropped; there is no retry or queueing.
type Notifier interface {
	NotifyConnection(connID, event string, data any)
	NotifyOwner(sessionID, event string, data any)
	NotifySession(sessionID, event string, data any)
}

// Presence maps a live connection to at most one session role and answers
// liveness queries.
type Presence interface {
	Bind(connID, sessionID string, role verify.Role)
	Unbind(connID string)
	UnbindSession(sessionID string)
	Lookup(connID string) (sessionID string, role verify.Role, ok bool)
	Live(connID string) bool
	SessionPeers(sessionID string) int
}

// Options tune the matching and session policy.
type Options struct {
	Threshold   float64
	Capacity    int
	MinDuration time.Duration
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = 0.6
	}
	if o.Capacity <= 0 {
		o.Capacity = 10
	}
	if o.MinDuration <= 0 {
		o.MinDuration = 5 * time.Minute
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 120 * time.Minute
	}
	return o
}

// Service is the session lifecycle controller. It validates every action
// against store state, mutates it atomically, and triggers dispatch to the
// parties the outcome concerns.
type Service struct {
	store    *Store
	notify   Notifier
	presence Presence
	opts     Options
}

// NewService wires the controller to its store and dispatch collaborators.
// The store's eviction hook is claimed here so expiring sessions get a
// best-effort notice before they vanish.
func NewService(store *Store, notify Notifier, presence Presence, opts Options) *Service {
	s := &Service{
		store:    store,
		notify:   notify,
		presence: presence,
		opts:     opts.withDefaults(),
	}
	store.OnEvict(s.handleEvicted)
	return s
}

// CreateSession allocates a session owned by the calling connection.
// An out-of-range duration is rejected, not clamped: the owner should learn
// at creation time that the request was not honored.
func (s *Service) CreateSession(_ context.Context, ownerConnID string, durationMinutes int) (verify.Session, error) {
	duration := time.Duration(durationMinutes) * time.Minute
	if duration < s.opts.MinDuration || duration > s.opts.MaxDuration {
		return verify.Session{}, fmt.Errorf("%w: duration %dm outside [%s, %s]",
			ErrInvalidConfiguration, durationMinutes, s.opts.MinDuration, s.opts.MaxDuration)
	}

	session, err := s.store.Create(ownerConnID, duration, s.opts.Capacity)
	if err != nil {
		return verify.Session{}, err
	}

	s.presence.Bind(ownerConnID, session.ID, verify.RoleOwner)
	return session, nil
}

// JoinSession grants the connection permission to upload into the session.
// Joining does not create a participant record; capacity is checked against
// submitted records, so a joined-but-idle connection holds no slot.
func (s *Service) JoinSession(_ context.Context, connID, sessionID string) error {
	session, ok := s.store.Get(sessionID)
	if !ok {
		return ErrSessionNotFound
	}
	if len(session.Participants) >= session.Capacity {
		return ErrSessionFull
	}

	s.presence.Bind(connID, sessionID, verify.RoleParticipant)

	s.notify.NotifyOwner(sessionID, "peer_joined", s.presenceUpdate(session))
	return nil
}

// UploadReference sets or replaces the session's reference image and
// embedding. Owner only; a re-upload overwrites with no versioning. Image
// and embedding travel together: storing one without the other would leave
// the session half-initialized, so the pair is validated here regardless of
// what the transport already checked.
func (s *Service) UploadReference(_ context.Context, sessionID, callerID, image string, embedding []float32) error {
	if image == "" || len(embedding) == 0 {
		return fmt.Errorf("%w: reference image and embedding must be supplied together", verify.ErrDimensionMismatch)
	}

	err := s.store.Mutate(sessionID, func(session *verify.Session) error {
		if session.OwnerConnectionID != callerID {
			return ErrNotAuthorized
		}
		session.ReferenceImage = image
		session.ReferenceEmbedding = embedding
		return nil
	})
	if err != nil {
		return err
	}

	// Tell waiting participants uploads are now accepted. The reference
	// image itself is never pushed here.
	s.notify.NotifySession(sessionID, "reference_ready", map[string]any{"sessionId": sessionID})
	return nil
}

// UploadParticipant verifies a submission against the current reference and
// records the outcome. A repeat upload from the same connection overwrites
// the prior record and is re-verified. The caller always learns matched and
// distance; the reference image is disclosed only on a match. The owner's
// gallery refreshes after every accepted upload so the submission total
// stays observable, but unmatched submissions surface in the counts only,
// never as entries.
func (s *Service) UploadParticipant(_ context.Context, sessionID, callerID, image string, embedding []float32, displayName string) (verify.VerifyResult, error) {
	if displayName == "" {
		displayName = verify.DefaultDisplayName
	}

	var (
		result  verify.VerifyResult
		gallery verify.GalleryUpdate
	)
	err := s.store.Mutate(sessionID, func(session *verify.Session) error {
		if session.OwnerConnectionID == callerID {
			return ErrNotAuthorized
		}
		if !session.HasReference() {
			return ErrReferenceNotReady
		}

		idx := session.ParticipantByConnection(callerID)
		if idx < 0 && len(session.Participants) >= session.Capacity {
			return ErrSessionFull
		}

		distance, err := verify.Distance(session.ReferenceEmbedding, embedding)
		if err != nil {
			return err
		}

		participant := verify.Participant{
			ConnectionID: callerID,
			DisplayName:  displayName,
			Image:        image,
			Embedding:    embedding,
			Matched:      verify.Matched(distance, s.opts.Threshold),
			Distance:     distance,
			SubmittedAt:  time.Now().UTC(),
		}
		if idx >= 0 {
			session.Participants[idx] = participant
		} else {
			session.Participants = append(session.Participants, participant)
		}

		result = verify.VerifyResult{
			SessionID: sessionID,
			Matched:   participant.Matched,
			Distance:  distance,
		}
		if participant.Matched {
			result.ReferenceImage = session.ReferenceImage
		}
		gallery = session.Gallery()
		return nil
	})
	if err != nil {
		return verify.VerifyResult{}, err
	}

	s.notify.NotifyConnection(callerID, "verify_result", result)
	s.notify.NotifyOwner(sessionID, "gallery", gallery)
	return result, nil
}

// HandleDisconnect clears the connection's binding and repairs session
// state. An owner disconnect leaves the session alive for admitted
// participants; a participant disconnect drops their record and, if the
// session is empty with a dead owner, deletes the session outright.
func (s *Service) HandleDisconnect(_ context.Context, connID string) {
	sessionID, role, ok := s.presence.Lookup(connID)
	s.presence.Unbind(connID)
	if !ok {
		return
	}

	switch role {
	case verify.RoleOwner:
		s.notify.NotifySession(sessionID, "owner_left", map[string]any{"sessionId": sessionID})

	case verify.RoleParticipant:
		removed := false
		err := s.store.Mutate(sessionID, func(session *verify.Session) error {
			if idx := session.ParticipantByConnection(connID); idx >= 0 {
				session.Participants = append(session.Participants[:idx], session.Participants[idx+1:]...)
				removed = true
			}
			return nil
		})
		if err != nil {
			return
		}

		session, ok := s.store.Get(sessionID)
		if !ok {
			return
		}
		if removed {
			s.notify.NotifyOwner(sessionID, "peer_left", s.presenceUpdate(session))
		}
		if len(session.Participants) == 0 && !s.presence.Live(session.OwnerConnectionID) {
			log.Printf("[verify] deleting abandoned session %s", sessionID)
			s.store.Delete(sessionID)
			s.presence.UnbindSession(sessionID)
		}
	}
}

// SessionCount exposes the live session total for health reporting.
func (s *Service) SessionCount() int {
	return s.store.Count()
}

// handleEvicted runs for each session removed by the expiry sweep.
// The notice is best-effort; connections that already left simply miss it.
func (s *Service) handleEvicted(session verify.Session) {
	s.notify.NotifySession(session.ID, "session_expired", map[string]any{"sessionId": session.ID})
	s.presence.UnbindSession(session.ID)
}

func (s *Service) presenceUpdate(session verify.Session) verify.PresenceUpdate {
	matched := 0
	for _, p := range session.Participants {
		if p.Matched {
			matched++
		}
	}
	return verify.PresenceUpdate{
		SessionID:   session.ID,
		Peers:       s.presence.SessionPeers(session.ID),
		Submissions: len(session.Participants),
		Matched:     matched,
	}
}
