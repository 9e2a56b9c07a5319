package gateway

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/asilva/triage/internal/model"
)

func TestClient_BearerHeader(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte(`{"success": true, "emails": []}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok-123"))
	if _, err := c.ListEmails(context.Background()); err != nil {
		t.Fatalf("ListEmails() error = %v", err)
	}

	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok-123")
	}
}

func TestClient_AuthEndpointsSkipToken(t *testing.T) {
	var gotAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth.Store(r.Header.Get("Authorization"))
		w.Write([]byte(`{"auth_url": "https://login.example.com"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("tok-123"))
	url, err := c.AuthURL(context.Background())
	if err != nil {
		t.Fatalf("AuthURL() error = %v", err)
	}
	if url != "https://login.example.com" {
		t.Errorf("AuthURL() = %q, want the login URL", url)
	}
	if got := gotAuth.Load().(string); got != "" {
		t.Errorf("Authorization = %q on auth endpoint, want empty", got)
	}
}

func TestClient_ErrorTaxonomy(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "401 maps to AuthError",
			status: http.StatusUnauthorized,
			body:   `{"success": false, "error": "token expired"}`,
			check: func(t *testing.T, err error) {
				if !IsAuthError(err) {
					t.Errorf("IsAuthError() = false for %v", err)
				}
			},
		},
		{
			name:   "500 maps to ServerError with message",
			status: http.StatusInternalServerError,
			body:   `{"success": false, "error": "database down"}`,
			check: func(t *testing.T, err error) {
				var srvErr *ServerError
				if !errors.As(err, &srvErr) {
					t.Fatalf("error %v is not a ServerError", err)
				}
				if srvErr.Status != http.StatusInternalServerError {
					t.Errorf("Status = %d, want 500", srvErr.Status)
				}
				if srvErr.Message != "database down" {
					t.Errorf("Message = %q, want %q", srvErr.Message, "database down")
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			c := NewClient(srv.URL, StaticToken("t"))
			_, err := c.ListEmails(context.Background())
			if err == nil {
				t.Fatal("ListEmails() = nil error, want error")
			}
			tt.check(t, err)
		})
	}
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL, StaticToken("t"))
	_, err := c.ListEmails(context.Background())
	if !IsNetworkError(err) {
		t.Errorf("IsNetworkError() = false for %v", err)
	}
}

func TestClient_Reply_EmptyBodyNoNetworkCall(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"))
	err := c.Reply(context.Background(), "e1", "   ")
	if !IsValidationError(err) {
		t.Errorf("Reply(empty) error = %v, want ValidationError", err)
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("network calls = %d, want 0", n)
	}
}

func TestClient_Reply_ServerMessageSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"success": false, "error": "mailbox quota exceeded"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"))
	err := c.Reply(context.Background(), "e1", "ok")

	var replyErr *ReplyError
	if !errors.As(err, &replyErr) {
		t.Fatalf("Reply() error = %v, want ReplyError", err)
	}
	if replyErr.Message != "mailbox quota exceeded" {
		t.Errorf("Message = %q, want server message", replyErr.Message)
	}
}

func TestClient_Reply_RejectedPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false, "error": "original email not found"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"))
	err := c.Reply(context.Background(), "e1", "ok")

	var replyErr *ReplyError
	if !errors.As(err, &replyErr) {
		t.Fatalf("Reply() error = %v, want ReplyError", err)
	}
}

func TestClient_MarkAsRead_Path(t *testing.T) {
	var gotPath, gotMethod string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		w.Write([]byte(`{"success": true, "microsoft_updated": true, "local_updated": true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"))
	res, err := c.MarkAsRead(context.Background(), "e9")
	if err != nil {
		t.Fatalf("MarkAsRead() error = %v", err)
	}

	if gotMethod != http.MethodPost || gotPath != "/emails/e9/mark-read" {
		t.Errorf("request = %s %s, want POST /emails/e9/mark-read", gotMethod, gotPath)
	}
	if !res.Success || !res.MicrosoftUpdated || !res.LocalUpdated {
		t.Errorf("result = %+v, want all flags set", res)
	}
}

func TestClient_UpdateUrgency_InvalidBucket(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"))
	err := c.UpdateUrgency(context.Background(), "e1", model.Urgency("critical"))
	if !IsValidationError(err) {
		t.Errorf("UpdateUrgency(invalid) error = %v, want ValidationError", err)
	}
	if calls.Load() != 0 {
		t.Error("invalid urgency reached the network")
	}
}

func TestClient_ListSentEmails_PerPage(t *testing.T) {
	var gotQuery string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Write([]byte(`{"success": true, "emails": [{"id": "s1", "sent_at": "2026-08-30T12:00:00Z"}]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, StaticToken("t"))
	emails, err := c.ListSentEmails(context.Background(), 50)
	if err != nil {
		t.Fatalf("ListSentEmails() error = %v", err)
	}

	if gotQuery != "per_page=50" {
		t.Errorf("query = %q, want per_page=50", gotQuery)
	}
	if len(emails) != 1 || emails[0].ID != "sent_s1" {
		t.Errorf("emails = %+v, want one namespaced sent_s1", emails)
	}
}
