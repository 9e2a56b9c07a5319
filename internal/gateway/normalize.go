package gateway

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/asilva/triage/internal/model"
)

// The backend has shipped several payload shapes over time: the sender may
// be a bare string or a {name, email} object, and timestamps have gone by
// different field names. All of that variance is absorbed here; the rest
// of the client only ever sees model.Email.

// receivedTimestampFields is the precedence list for received mail.
// First non-empty wins.
var receivedTimestampFields = []string{"received_at", "receivedAt", "timestamp"}

// sentTimestampFields is the precedence list for sent mail.
var sentTimestampFields = []string{"sent_at", "sentAt", "timestamp"}

// party is a sender or recipient in any of its historical encodings.
type party struct {
	display string
}

func (p *party) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		p.display = s
		return nil
	}

	var obj struct {
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("unsupported sender shape: %s", data)
	}
	if obj.Name != "" {
		p.display = obj.Name
	} else {
		p.display = obj.Email
	}
	return nil
}

// rawEmail is the superset of fields any list payload may carry.
type rawEmail struct {
	ID             string  `json:"id"`
	Subject        string  `json:"subject"`
	Sender         party   `json:"sender"`
	Recipient      party   `json:"recipient"`
	Preview        string  `json:"preview"`
	BodyPreview    string  `json:"body_preview"`
	Urgency        string  `json:"urgency"`
	UrgencyCat     string  `json:"urgency_category"`
	Priority       int     `json:"priority_level"`
	IsRead         bool    `json:"is_read"`
	HasAttachments bool    `json:"has_attachments"`
	AIConfidence   float64 `json:"ai_confidence"`
	AIReason       string  `json:"ai_classification_reason"`
	EmailType      string  `json:"email_type"`
	IsReply        bool    `json:"is_reply"`
}

// normalizeReceived maps one raw received-list record to a canonical Email.
func normalizeReceived(data json.RawMessage) (model.Email, error) {
	var raw rawEmail
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Email{}, err
	}
	if raw.ID == "" {
		return model.Email{}, fmt.Errorf("received email has no id")
	}

	return model.Email{
		ID:             raw.ID,
		Subject:        raw.Subject,
		SenderDisplay:  raw.Sender.display,
		BodyPreview:    firstNonEmpty(raw.BodyPreview, raw.Preview),
		Urgency:        model.ParseUrgency(firstNonEmpty(raw.UrgencyCat, raw.Urgency)),
		Priority:       raw.Priority,
		IsRead:         raw.IsRead,
		ReceivedAt:     parseTimestamp(data, receivedTimestampFields),
		AIConfidence:   raw.AIConfidence,
		AIReason:       raw.AIReason,
		EmailType:      model.EmailTypeReceived,
		HasAttachments: raw.HasAttachments,
	}, nil
}

// normalizeSent maps one raw sent-list record to a canonical Email. Sent
// and reply messages are unconditionally processed and read: they have
// been dealt with by definition, and the namespaced id keeps them from
// colliding with the received list.
func normalizeSent(data json.RawMessage) (model.Email, error) {
	var raw rawEmail
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Email{}, err
	}
	if raw.ID == "" {
		return model.Email{}, fmt.Errorf("sent email has no id")
	}

	emailType := model.EmailTypeSent
	reason := "Correo enviado"
	if raw.EmailType == string(model.EmailTypeReply) || raw.IsReply {
		emailType = model.EmailTypeReply
		reason = "Respuesta enviada"
	}

	return model.Email{
		ID:             "sent_" + raw.ID,
		Subject:        raw.Subject,
		SenderDisplay:  raw.Recipient.display,
		BodyPreview:    firstNonEmpty(raw.BodyPreview, raw.Preview),
		Urgency:        model.UrgencyProcessed,
		Priority:       5,
		IsRead:         true,
		ReceivedAt:     parseTimestamp(data, sentTimestampFields),
		AIConfidence:   1.0,
		AIReason:       reason,
		EmailType:      emailType,
		HasAttachments: raw.HasAttachments,
		IsReply:        emailType == model.EmailTypeReply,
	}, nil
}

// parseTimestamp extracts the first non-empty timestamp field from the
// precedence list and parses it. Unparseable or absent timestamps yield
// the zero time rather than an error; a missing date must not drop the
// email from the working set.
func parseTimestamp(data json.RawMessage, fields []string) time.Time {
	var generic map[string]json.RawMessage
	if err := json.Unmarshal(data, &generic); err != nil {
		return time.Time{}
	}

	for _, field := range fields {
		raw, ok := generic[field]
		if !ok {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) != nil || s == "" {
			continue
		}
		if t, err := parseAnyTime(s); err == nil {
			return t
		}
	}
	return time.Time{}
}

// timestampLayouts are the formats the backend has emitted, most specific
// first.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func parseAnyTime(s string) (time.Time, error) {
	var lastErr error
	for _, layout := range timestampLayouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
