package model

import "time"

// Urgency is the triage bucket assigned to an email by the backend
// classifier. Every email belongs to exactly one bucket at any instant.
type Urgency string

const (
	UrgencyUrgent    Urgency = "urgent"
	UrgencyHigh      Urgency = "high"
	UrgencyMedium    Urgency = "medium"
	UrgencyLow       Urgency = "low"
	UrgencyProcessed Urgency = "processed"
)

// Urgencies lists the buckets in board order.
var Urgencies = []Urgency{
	UrgencyUrgent,
	UrgencyHigh,
	UrgencyMedium,
	UrgencyLow,
	UrgencyProcessed,
}

// ParseUrgency maps a backend urgency string to an Urgency. Unknown values
// fall back to medium, matching the backend's own default.
func ParseUrgency(s string) Urgency {
	switch Urgency(s) {
	case UrgencyUrgent, UrgencyHigh, UrgencyMedium, UrgencyLow, UrgencyProcessed:
		return Urgency(s)
	}
	return UrgencyMedium
}

// Valid reports whether u is one of the five known buckets.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyUrgent, UrgencyHigh, UrgencyMedium, UrgencyLow, UrgencyProcessed:
		return true
	}
	return false
}

// EmailType identifies the origin of a message in the working set.
type EmailType string

const (
	EmailTypeReceived EmailType = "received"
	EmailTypeSent     EmailType = "sent"
	EmailTypeReply    EmailType = "reply"
)

// Email is the canonical client-side representation of a message. All
// heterogeneous backend payload shapes are normalized into this type at the
// gateway boundary; nothing downstream reads raw payload fields.
type Email struct {
	// ID is unique across the combined received+sent working set. Sent
	// message ids carry a "sent_" prefix so they cannot collide with
	// received ids.
	ID string `json:"id"`

	Subject string `json:"subject"`

	// SenderDisplay is the human-readable counterparty: the sender for
	// received mail, the recipient for sent mail.
	SenderDisplay string `json:"sender_display"`

	BodyPreview string `json:"body_preview"`

	// Urgency is assigned by the backend classifier. Sent and reply
	// messages are always processed.
	Urgency Urgency `json:"urgency"`

	// Priority is the backend's numeric priority (1 highest, 5 lowest).
	Priority int `json:"priority"`

	IsRead    bool `json:"is_read"`
	IsStarred bool `json:"is_starred"`

	ReceivedAt time.Time `json:"received_at"`

	// AIConfidence is the classifier's confidence in [0, 1].
	AIConfidence float64 `json:"ai_confidence"`

	// AIReason is the classifier's short explanation for the bucket.
	AIReason string `json:"ai_reason"`

	EmailType      EmailType `json:"email_type"`
	HasAttachments bool      `json:"has_attachments"`
	IsReply        bool      `json:"is_reply"`
}

// Received reports whether the email came from the inbox list (as opposed
// to the sent/reply list).
func (e Email) Received() bool {
	return e.EmailType == EmailTypeReceived
}

// Stats holds aggregate counts over a working set. Recomputed from scratch
// on each snapshot change.
type Stats struct {
	Total     int             `json:"total"`
	Unread    int             `json:"unread"`
	Starred   int             `json:"starred"`
	ByUrgency map[Urgency]int `json:"by_urgency"`
}

// User is the authenticated mailbox owner as reported by the backend
// profile endpoint.
type User struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	HasPhoto bool   `json:"has_photo"`
}
