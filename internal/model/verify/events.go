package verify

import "time"

// VerifyResult is the unicast payload delivered to a participant after an
// upload. ReferenceImage is populated only when the submission matched; an
// unmatched participant never sees the owner's reference.
type VerifyResult struct {
	SessionID      string  `json:"sessionId"`
	Matched        bool    `json:"matched"`
	Distance       float64 `json:"distance"`
	ReferenceImage string  `json:"referenceImage,omitempty"`
}

// GalleryEntry is one matched participant as shown to the session owner.
type GalleryEntry struct {
	DisplayName string    `json:"displayName"`
	Image       string    `json:"image"`
	Distance    float64   `json:"distance"`
	SubmittedAt time.Time `json:"submittedAt"`
}

// GalleryUpdate carries the owner's view of a session: matched participants
// only, in submission order. Unmatched submissions contribute to TotalCount
// but their images and names are withheld.
type GalleryUpdate struct {
	SessionID    string         `json:"sessionId"`
	Matched      []GalleryEntry `json:"matched"`
	MatchedCount int            `json:"matchedCount"`
	TotalCount   int            `json:"totalCount"`
}

// PresenceUpdate reports connection and submission counts to the owner.
type PresenceUpdate struct {
	SessionID   string `json:"sessionId"`
	Peers       int    `json:"peers"`
	Submissions int    `json:"submissions"`
	Matched     int    `json:"matched"`
}

// Gallery builds the owner's matched-only view of the session.
func (s *Session) Gallery() GalleryUpdate {
	update := GalleryUpdate{
		SessionID:  s.ID,
		Matched:    []GalleryEntry{},
		TotalCount: len(s.Participants),
	}
	for _, p := range s.Participants {
		if !p.Matched {
			continue
		}
		update.Matched = append(update.Matched, GalleryEntry{
			DisplayName: p.DisplayName,
			Image:       p.Image,
			Distance:    p.Distance,
			SubmittedAt: p.SubmittedAt,
		})
	}
	update.MatchedCount = len(update.Matched)
	return update
}
