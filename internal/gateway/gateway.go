package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/asilva/triage/internal/model"
)

// SyncOptions controls a remote ingestion request.
type SyncOptions struct {
	// Count is how many new messages to ingest from the mail provider.
	Count int `json:"count"`

	// Classify asks the backend to run urgency classification immediately.
	Classify bool `json:"classify"`
}

// SyncSummary is the backend's report of one ingestion run.
type SyncSummary struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Synced       int    `json:"synced"`
	Skipped      int    `json:"skipped"`
	TotalFetched int    `json:"total_fetched"`
	Classified   int    `json:"classified"`
}

// StatusSummary is the backend's report of a read/unread reconciliation
// pass against the mail provider.
type StatusSummary struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	UpdatedCount   int    `json:"updated_count"`
	ProcessedCount int    `json:"processed_count"`
}

// MarkReadResult reports where a mark-as-read landed: the mail provider,
// the backend's own storage, or both.
type MarkReadResult struct {
	Success          bool   `json:"success"`
	MicrosoftUpdated bool   `json:"microsoft_updated"`
	LocalUpdated     bool   `json:"local_updated"`
	Error            string `json:"error"`
}

// AuthURL fetches the Microsoft OAuth login URL to open in a browser.
func (c *Client) AuthURL(ctx context.Context) (string, error) {
	var resp struct {
		AuthURL string `json:"auth_url"`
	}
	if err := c.do(ctx, "GET", "/microsoft/auth/login", nil, &resp, false); err != nil {
		return "", err
	}
	return resp.AuthURL, nil
}

// CallbackResult is the outcome of exchanging an OAuth code for a session.
type CallbackResult struct {
	Success bool       `json:"success"`
	Token   string     `json:"token"`
	User    model.User `json:"user"`
	Error   string     `json:"error"`
}

// Callback exchanges the OAuth authorization code for a bearer token.
// Like AuthURL it is one of the two endpoints that never carry a token.
func (c *Client) Callback(ctx context.Context, code string) (*CallbackResult, error) {
	var resp CallbackResult
	body := map[string]string{"code": code}
	if err := c.do(ctx, "POST", "/microsoft/auth/callback", body, &resp, false); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, &ServerError{Op: "POST /microsoft/auth/callback", Message: resp.Error}
	}
	return &resp, nil
}

// Profile fetches the authenticated user's display name and address.
func (c *Client) Profile(ctx context.Context) (*model.User, error) {
	var resp struct {
		Success  bool   `json:"success"`
		Name     string `json:"name"`
		Email    string `json:"email"`
		HasPhoto bool   `json:"has_photo"`
	}
	if err := c.get(ctx, "/microsoft/profile", &resp); err != nil {
		return nil, err
	}
	return &model.User{Name: resp.Name, Email: resp.Email, HasPhoto: resp.HasPhoto}, nil
}

// ProfilePhoto fetches the user's photo as raw image bytes.
func (c *Client) ProfilePhoto(ctx context.Context) ([]byte, error) {
	return c.raw(ctx, "/microsoft/profile/photo")
}

// SyncFromRemote asks the backend to ingest (and optionally classify) new
// mail from the provider. Server-side state changes only; the local
// working set is unaffected until the next list fetch.
func (c *Client) SyncFromRemote(ctx context.Context, opts SyncOptions) (*SyncSummary, error) {
	var resp SyncSummary
	if err := c.post(ctx, "/emails/sync", opts, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SyncReadStatuses reconciles read/unread flags from the mail provider
// into backend storage.
func (c *Client) SyncReadStatuses(ctx context.Context, limit int) (*StatusSummary, error) {
	var resp StatusSummary
	body := map[string]int{"limit": limit}
	if err := c.post(ctx, "/emails/sync-status", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListEmails fetches the received list with classification fields, already
// normalized into canonical emails.
func (c *Client) ListEmails(ctx context.Context) ([]model.Email, error) {
	var resp struct {
		Success bool              `json:"success"`
		Emails  []json.RawMessage `json:"emails"`
	}
	if err := c.get(ctx, "/emails/", &resp); err != nil {
		return nil, err
	}

	emails := make([]model.Email, 0, len(resp.Emails))
	for _, raw := range resp.Emails {
		email, err := normalizeReceived(raw)
		if err != nil {
			return nil, fmt.Errorf("normalizing received email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// ListSentEmails fetches up to perPage sent/reply messages, normalized.
// Sent ids are namespaced with a "sent_" prefix so they can never collide
// with received ids in the combined working set.
func (c *Client) ListSentEmails(ctx context.Context, perPage int) ([]model.Email, error) {
	var resp struct {
		Success bool              `json:"success"`
		Emails  []json.RawMessage `json:"emails"`
	}
	path := fmt.Sprintf("/emails/sent?per_page=%d", perPage)
	if err := c.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	emails := make([]model.Email, 0, len(resp.Emails))
	for _, raw := range resp.Emails {
		email, err := normalizeSent(raw)
		if err != nil {
			return nil, fmt.Errorf("normalizing sent email: %w", err)
		}
		emails = append(emails, email)
	}
	return emails, nil
}

// MarkAsRead marks one email read in backend storage and at the mail
// provider. Idempotent on the backend side.
func (c *Client) MarkAsRead(ctx context.Context, id string) (*MarkReadResult, error) {
	var resp MarkReadResult
	path := fmt.Sprintf("/emails/%s/mark-read", id)
	if err := c.post(ctx, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// UpdateUrgency moves an email to a different urgency bucket on the
// backend. Moving to processed also marks it read server-side.
func (c *Client) UpdateUrgency(ctx context.Context, id string, urgency model.Urgency) error {
	if !urgency.Valid() {
		return &ValidationError{Message: fmt.Sprintf("invalid urgency %q", urgency)}
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	path := fmt.Sprintf("/emails/%s/update-urgency", id)
	body := map[string]string{"urgency_category": string(urgency)}
	if err := c.post(ctx, path, body, &resp); err != nil {
		return err
	}
	if !resp.Success {
		return &ServerError{Op: "POST " + path, Message: resp.Error}
	}
	return nil
}

// Reply sends a reply to the given email. The body must be non-empty after
// trimming; that is checked locally before any network I/O. A remote
// failure surfaces as a ReplyError carrying the server's message.
func (c *Client) Reply(ctx context.Context, id, body string) error {
	if strings.TrimSpace(body) == "" {
		return &ValidationError{Message: "reply body must not be empty"}
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	path := fmt.Sprintf("/emails/%s/reply", id)
	payload := map[string]string{"body": body}
	if err := c.post(ctx, path, payload, &resp); err != nil {
		var srvErr *ServerError
		if errors.As(err, &srvErr) {
			return &ReplyError{EmailID: id, Message: srvErr.Message}
		}
		return err
	}
	if !resp.Success {
		return &ReplyError{EmailID: id, Message: resp.Error}
	}
	return nil
}

// Ping checks backend liveness. Used by the keepalive loop.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, "GET", "/ping", nil, nil, false)
}
