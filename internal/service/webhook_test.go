package service

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/sungminna/marketer/internal/domain"
)

func newWebhookFixture(client *http.Client) (*WebhookService, *stubWebhookRepo) {
	repo := newStubWebhookRepo()
	svc := NewWebhookService(repo, client, testLogger())
	return svc, repo
}

func TestCreateSubscriptionValidation(t *testing.T) {
	svc, _ := newWebhookFixture(nil)
	ctx := context.Background()

	_, err := svc.CreateSubscription(ctx, "u1", "not a url", "", "", []string{domain.EventJobCompleted})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateSubscription(bad url) err = %v, want ErrValidation", err)
	}
	_, err = svc.CreateSubscription(ctx, "u1", "https://hooks.example/x", "", "", nil)
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateSubscription(no events) err = %v, want ErrValidation", err)
	}
	_, err = svc.CreateSubscription(ctx, "u1", "https://hooks.example/x", "", "", []string{"job.started"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateSubscription(unknown event) err = %v, want ErrValidation", err)
	}

	sub, err := svc.CreateSubscription(ctx, "u1", "https://hooks.example/x", "s3cret", "ci hook",
		[]string{domain.EventJobCompleted, domain.EventBatchFailed})
	if err != nil {
		t.Fatalf("CreateSubscription() err = %v", err)
	}
	if !sub.Active {
		t.Fatalf("sub.Active = false, want true on creation")
	}
}

func TestDeliverSignsAndStamps(t *testing.T) {
	var gotSig, gotUA string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("X-Webhook-Signature")
		gotUA = r.Header.Get("User-Agent")
		gotBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	svc, repo := newWebhookFixture(srv.Client())
	ctx := context.Background()
	sub, _ := svc.CreateSubscription(ctx, "u1", srv.URL, "s3cret", "", []string{domain.EventJobCompleted})

	attempt, err := svc.Deliver(ctx, sub, domain.EventJobCompleted, map[string]any{"job_id": "j1", "status": "completed"})
	if err != nil {
		t.Fatalf("Deliver() err = %v", err)
	}
	if !attempt.Delivered {
		t.Fatalf("attempt.Delivered = false, want true for 200")
	}
	if attempt.ResponseStatusCode == nil || *attempt.ResponseStatusCode != 200 {
		t.Fatalf("ResponseStatusCode = %v, want 200", attempt.ResponseStatusCode)
	}
	if attempt.DeliveredAt == nil {
		t.Fatalf("DeliveredAt = nil, want set")
	}
	if gotUA != "GTM-Asset-Generator-Webhook/1.0" {
		t.Fatalf("User-Agent = %q, want GTM-Asset-Generator-Webhook/1.0", gotUA)
	}

	mac := hmac.New(sha256.New, []byte("s3cret"))
	mac.Write(gotBody)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	if gotSig != want {
		t.Fatalf("signature = %q, want %q", gotSig, want)
	}

	var payload map[string]any
	if err := json.Unmarshal(gotBody, &payload); err != nil {
		t.Fatalf("unmarshal body: %v", err)
	}
	if payload["event"] != domain.EventJobCompleted {
		t.Fatalf("payload event = %v, want %v", payload["event"], domain.EventJobCompleted)
	}
	if payload["job_id"] != "j1" {
		t.Fatalf("payload job_id = %v, want j1", payload["job_id"])
	}
	if _, err := time.Parse(time.RFC3339, payload["timestamp"].(string)); err != nil {
		t.Fatalf("payload timestamp = %v, want RFC3339", payload["timestamp"])
	}

	saved, _ := repo.ListAttemptsByUser(ctx, "u1", 10, 0)
	if len(saved) != 1 {
		t.Fatalf("saved attempts = %d, want 1", len(saved))
	}
}

func TestDeliverRecordsFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("upstream sad"))
	}))
	defer srv.Close()

	svc, _ := newWebhookFixture(srv.Client())
	ctx := context.Background()
	sub, _ := svc.CreateSubscription(ctx, "u1", srv.URL, "", "", []string{domain.EventJobFailed})

	attempt, err := svc.Deliver(ctx, sub, domain.EventJobFailed, map[string]any{"job_id": "j1"})
	if err != nil {
		t.Fatalf("Deliver() err = %v", err)
	}
	if attempt.Delivered {
		t.Fatalf("attempt.Delivered = true, want false for 502")
	}
	if !strings.HasPrefix(attempt.ErrorMessage, "HTTP 502") {
		t.Fatalf("ErrorMessage = %q, want HTTP 502 prefix", attempt.ErrorMessage)
	}
}

func TestDeliverTruncatesResponseBody(t *testing.T) {
	big := strings.Repeat("x", 5000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(big))
	}))
	defer srv.Close()

	svc, _ := newWebhookFixture(srv.Client())
	ctx := context.Background()
	sub, _ := svc.CreateSubscription(ctx, "u1", srv.URL, "", "", []string{domain.EventJobFailed})

	attempt, _ := svc.Deliver(ctx, sub, domain.EventJobFailed, map[string]any{})
	if len(attempt.ResponseBody) != 1000 {
		t.Fatalf("len(ResponseBody) = %d, want 1000", len(attempt.ResponseBody))
	}
	if len(attempt.ErrorMessage) > len("HTTP 500: ")+200 {
		t.Fatalf("len(ErrorMessage) = %d, want snippet capped at 200", len(attempt.ErrorMessage))
	}
}

func TestRetryFailedRedelivers(t *testing.T) {
	fail := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, repo := newWebhookFixture(srv.Client())
	ctx := context.Background()
	sub, _ := svc.CreateSubscription(ctx, "u1", srv.URL, "", "", []string{domain.EventJobCompleted})

	attempt, _ := svc.Deliver(ctx, sub, domain.EventJobCompleted, map[string]any{"job_id": "j1"})
	if attempt.Delivered {
		t.Fatalf("setup: attempt delivered, want failure")
	}

	fail = false
	retried, err := svc.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed() err = %v", err)
	}
	if retried != 1 {
		t.Fatalf("retried = %d, want 1", retried)
	}
	saved := repo.attempts[attempt.ID]
	if saved == nil || !saved.Delivered {
		t.Fatalf("attempt after retry = %+v, want delivered on same record", saved)
	}
	if saved.RetryCount != 1 {
		t.Fatalf("RetryCount = %d, want 1", saved.RetryCount)
	}
	if len(repo.attempts) != 1 {
		t.Fatalf("attempt rows = %d, retry must not create a new record", len(repo.attempts))
	}
}

func TestRetryFailedHonorsCapAndWindow(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, repo := newWebhookFixture(srv.Client())
	ctx := context.Background()
	sub, _ := svc.CreateSubscription(ctx, "u1", srv.URL, "", "", []string{domain.EventJobCompleted})
	attempt, _ := svc.Deliver(ctx, sub, domain.EventJobCompleted, map[string]any{})

	for i := 0; i < 5; i++ {
		if _, err := svc.RetryFailed(ctx); err != nil {
			t.Fatalf("RetryFailed() err = %v", err)
		}
	}
	saved := repo.attempts[attempt.ID]
	if saved.RetryCount != webhookMaxRetries {
		t.Fatalf("RetryCount = %d, want capped at %d", saved.RetryCount, webhookMaxRetries)
	}

	// Push the record outside the 24h window; it must no longer be retried.
	saved.RetryCount = 0
	saved.CreatedAt = time.Now().UTC().Add(-25 * time.Hour)
	repo.attempts[attempt.ID] = saved
	retried, _ := svc.RetryFailed(ctx)
	if retried != 0 {
		t.Fatalf("retried = %d, want 0 outside window", retried)
	}
}

func TestRetryFailedSkipsInactiveSubscription(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	svc, repo := newWebhookFixture(srv.Client())
	ctx := context.Background()
	sub, _ := svc.CreateSubscription(ctx, "u1", srv.URL, "", "", []string{domain.EventJobCompleted})
	if _, err := svc.Deliver(ctx, sub, domain.EventJobCompleted, map[string]any{}); err != nil {
		t.Fatalf("Deliver() err = %v", err)
	}

	inactive := false
	if _, err := svc.UpdateSubscription(ctx, sub.ID, "u1", nil, nil, &inactive); err != nil {
		t.Fatalf("UpdateSubscription() err = %v", err)
	}
	retried, err := svc.RetryFailed(ctx)
	if err != nil {
		t.Fatalf("RetryFailed() err = %v", err)
	}
	if retried != 0 {
		t.Fatalf("retried = %d, want 0 for inactive subscription", retried)
	}
	for _, a := range repo.attempts {
		if a.RetryCount != 0 {
			t.Fatalf("RetryCount = %d, want 0", a.RetryCount)
		}
	}
}

func TestSendEventToSubscriptionsFiltersByEvent(t *testing.T) {
	hits := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	svc, _ := newWebhookFixture(srv.Client())
	ctx := context.Background()
	if _, err := svc.CreateSubscription(ctx, "u1", srv.URL, "", "", []string{domain.EventJobCompleted}); err != nil {
		t.Fatalf("CreateSubscription() err = %v", err)
	}
	if _, err := svc.CreateSubscription(ctx, "u1", srv.URL, "", "", []string{domain.EventBatchFailed}); err != nil {
		t.Fatalf("CreateSubscription() err = %v", err)
	}

	svc.SendEventToSubscriptions(ctx, "u1", domain.EventJobCompleted, map[string]any{"job_id": "j1"})
	if hits != 1 {
		t.Fatalf("endpoint hits = %d, want only the matching subscription", hits)
	}
}

func TestSignatureIsDeterministic(t *testing.T) {
	a := Signature("secret", []byte(`{"a":1}`))
	b := Signature("secret", []byte(`{"a":1}`))
	if a != b {
		t.Fatalf("Signature not deterministic: %q vs %q", a, b)
	}
	if Signature("other", []byte(`{"a":1}`)) == a {
		t.Fatalf("Signature ignores the secret")
	}
}
