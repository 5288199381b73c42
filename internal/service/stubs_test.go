package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/providers"
)

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}

type stubJobRepo struct {
	mu   sync.Mutex
	jobs map[string]*domain.Job

	// statuses records the status carried by each Update call, in order.
	statuses  []domain.JobStatus
	updateErr error
}

func newStubJobRepo() *stubJobRepo {
	return &stubJobRepo{jobs: make(map[string]*domain.Job)}
}

func (r *stubJobRepo) Create(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *job
	r.jobs[job.ID] = &cp
	return nil
}

func (r *stubJobRepo) GetByID(_ context.Context, jobID string) (*domain.Job, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	job, ok := r.jobs[jobID]
	if !ok {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	cp := *job
	return &cp, nil
}

func (r *stubJobRepo) GetForUser(ctx context.Context, jobID, userID string) (*domain.Job, error) {
	job, err := r.GetByID(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.UserID != userID {
		return nil, fmt.Errorf("%w: job %s", domain.ErrNotFound, jobID)
	}
	return job, nil
}

func (r *stubJobRepo) Update(_ context.Context, job *domain.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return r.updateErr
	}
	cp := *job
	r.jobs[job.ID] = &cp
	r.statuses = append(r.statuses, job.Status)
	return nil
}

func (r *stubJobRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Job, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Job
	for _, job := range r.jobs {
		if job.UserID == userID {
			out = append(out, *job)
		}
	}
	return out, len(out), nil
}

type stubBatchRepo struct {
	mu      sync.Mutex
	batches map[string]*domain.Batch
}

func newStubBatchRepo() *stubBatchRepo {
	return &stubBatchRepo{batches: make(map[string]*domain.Batch)}
}

func (r *stubBatchRepo) Create(_ context.Context, batch *domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *batch
	r.batches[batch.ID] = &cp
	return nil
}

func (r *stubBatchRepo) GetByID(_ context.Context, batchID string) (*domain.Batch, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	batch, ok := r.batches[batchID]
	if !ok {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	cp := *batch
	return &cp, nil
}

func (r *stubBatchRepo) GetForUser(ctx context.Context, batchID, userID string) (*domain.Batch, error) {
	batch, err := r.GetByID(ctx, batchID)
	if err != nil {
		return nil, err
	}
	if batch.UserID != userID {
		return nil, fmt.Errorf("%w: batch %s", domain.ErrNotFound, batchID)
	}
	return batch, nil
}

func (r *stubBatchRepo) Update(_ context.Context, batch *domain.Batch) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *batch
	r.batches[batch.ID] = &cp
	return nil
}

func (r *stubBatchRepo) ListByUser(_ context.Context, userID string, limit, offset int) ([]domain.Batch, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Batch
	for _, batch := range r.batches {
		if batch.UserID == userID {
			out = append(out, *batch)
		}
	}
	return out, len(out), nil
}

type stubQuotaRepo struct {
	mu     sync.Mutex
	quotas map[string]*domain.UserQuota
	usage  map[string]*domain.QuotaUsage
}

func newStubQuotaRepo() *stubQuotaRepo {
	return &stubQuotaRepo{
		quotas: make(map[string]*domain.UserQuota),
		usage:  make(map[string]*domain.QuotaUsage),
	}
}

func usageKey(userID string, month time.Time) string {
	return userID + "|" + month.Format("2006-01")
}

func (r *stubQuotaRepo) GetQuota(_ context.Context, userID string) (*domain.UserQuota, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	quota, ok := r.quotas[userID]
	if !ok {
		return nil, fmt.Errorf("%w: quota for %s", domain.ErrNotFound, userID)
	}
	cp := *quota
	return &cp, nil
}

func (r *stubQuotaRepo) SaveQuota(_ context.Context, quota *domain.UserQuota) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *quota
	r.quotas[quota.UserID] = &cp
	return nil
}

func (r *stubQuotaRepo) GetOrCreateUsage(_ context.Context, userID string, month time.Time) (*domain.QuotaUsage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageKey(userID, month)
	usage, ok := r.usage[key]
	if !ok {
		usage = &domain.QuotaUsage{UserID: userID, Month: month}
		r.usage[key] = usage
	}
	cp := *usage
	return &cp, nil
}

func (r *stubQuotaRepo) AddUsage(_ context.Context, userID string, month time.Time, images, videoSeconds int, costUSD float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := usageKey(userID, month)
	usage, ok := r.usage[key]
	if !ok {
		usage = &domain.QuotaUsage{UserID: userID, Month: month}
		r.usage[key] = usage
	}
	usage.ImagesUsed += images
	usage.VideoSecondsUsed += videoSeconds
	usage.CostUsedUSD += costUSD
	return nil
}

type stubWebhookRepo struct {
	mu       sync.Mutex
	subs     map[string]*domain.WebhookSubscription
	attempts map[string]*domain.WebhookDeliveryAttempt
}

func newStubWebhookRepo() *stubWebhookRepo {
	return &stubWebhookRepo{
		subs:     make(map[string]*domain.WebhookSubscription),
		attempts: make(map[string]*domain.WebhookDeliveryAttempt),
	}
}

func (r *stubWebhookRepo) CreateSubscription(_ context.Context, sub *domain.WebhookSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *stubWebhookRepo) GetSubscription(ctx context.Context, id, userID string) (*domain.WebhookSubscription, error) {
	sub, err := r.GetSubscriptionByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.UserID != userID {
		return nil, fmt.Errorf("%w: subscription %s", domain.ErrNotFound, id)
	}
	return sub, nil
}

func (r *stubWebhookRepo) GetSubscriptionByID(_ context.Context, id string) (*domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok {
		return nil, fmt.Errorf("%w: subscription %s", domain.ErrNotFound, id)
	}
	cp := *sub
	return &cp, nil
}

func (r *stubWebhookRepo) UpdateSubscription(_ context.Context, sub *domain.WebhookSubscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *sub
	r.subs[sub.ID] = &cp
	return nil
}

func (r *stubWebhookRepo) DeleteSubscription(_ context.Context, id, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[id]
	if !ok || sub.UserID != userID {
		return fmt.Errorf("%w: subscription %s", domain.ErrNotFound, id)
	}
	delete(r.subs, id)
	return nil
}

func (r *stubWebhookRepo) ListSubscriptions(_ context.Context, userID string) ([]domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookSubscription
	for _, sub := range r.subs {
		if sub.UserID == userID {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *stubWebhookRepo) ActiveSubscriptionsForEvent(_ context.Context, userID, event string) ([]domain.WebhookSubscription, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookSubscription
	for _, sub := range r.subs {
		if sub.UserID == userID && sub.Active && sub.WantsEvent(event) {
			out = append(out, *sub)
		}
	}
	return out, nil
}

func (r *stubWebhookRepo) CreateAttempt(_ context.Context, attempt *domain.WebhookDeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return nil
}

func (r *stubWebhookRepo) UpdateAttempt(_ context.Context, attempt *domain.WebhookDeliveryAttempt) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.attempts[attempt.ID]; !ok {
		return fmt.Errorf("%w: attempt %s", domain.ErrNotFound, attempt.ID)
	}
	cp := *attempt
	r.attempts[attempt.ID] = &cp
	return nil
}

func (r *stubWebhookRepo) ListUndelivered(_ context.Context, since time.Time, maxRetries int) ([]domain.WebhookDeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookDeliveryAttempt
	for _, attempt := range r.attempts {
		if !attempt.Delivered && attempt.RetryCount < maxRetries && attempt.CreatedAt.After(since) {
			out = append(out, *attempt)
		}
	}
	return out, nil
}

func (r *stubWebhookRepo) ListAttemptsByUser(_ context.Context, userID string, limit, offset int) ([]domain.WebhookDeliveryAttempt, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.WebhookDeliveryAttempt
	for _, attempt := range r.attempts {
		sub, ok := r.subs[attempt.SubscriptionID]
		if ok && sub.UserID == userID {
			out = append(out, *attempt)
		}
	}
	return out, nil
}

type stubUsageRepo struct {
	mu   sync.Mutex
	logs []domain.UsageLog
}

func (r *stubUsageRepo) Create(_ context.Context, log *domain.UsageLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *stubUsageRepo) ListByUser(_ context.Context, userID string, from, to time.Time, limit, offset int) ([]domain.UsageLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.UsageLog
	for _, log := range r.logs {
		if log.UserID == userID {
			out = append(out, log)
		}
	}
	return out, nil
}

func (r *stubUsageRepo) SummaryByUser(_ context.Context, userID string, from, to time.Time) ([]domain.UsageTotals, error) {
	return nil, nil
}

type stubCredRepo struct {
	tokens map[string]string
}

func (r *stubCredRepo) Token(_ context.Context, userID, provider string) (string, error) {
	token, ok := r.tokens[userID+"|"+provider]
	if !ok {
		return "", fmt.Errorf("%w: credential for %s", domain.ErrNotFound, provider)
	}
	return token, nil
}

type notifierEvent struct {
	UserID  string
	Event   string
	Payload map[string]any
}

type stubNotifier struct {
	mu     sync.Mutex
	events []notifierEvent
}

func (n *stubNotifier) SendEventToSubscriptions(_ context.Context, userID, event string, payload map[string]any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, notifierEvent{UserID: userID, Event: event, Payload: payload})
}

func (n *stubNotifier) all() []notifierEvent {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]notifierEvent(nil), n.events...)
}

type stubStore struct {
	mu   sync.Mutex
	puts map[string][]byte
}

func newStubStore() *stubStore {
	return &stubStore{puts: make(map[string][]byte)}
}

func (s *stubStore) Put(_ context.Context, key string, data []byte, contentType string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.puts[key] = data
	return "https://cdn.test/" + key, nil
}

func (s *stubStore) Get(_ context.Context, url string) ([]byte, error) {
	return nil, fmt.Errorf("%w: %s", domain.ErrNotFound, url)
}

// stubGateway lets each test script the provider behavior per call.
type stubGateway struct {
	generateImage   func(params domain.Params) ([]providers.Artifact, error)
	editImage       func(params domain.Params) ([]providers.Artifact, error)
	generateVideo   func(params domain.Params) (*providers.Artifact, error)
	videoFromImages func(params domain.Params) (*providers.Artifact, error)
	cost            float64
}

func (g *stubGateway) GenerateImage(_ context.Context, params domain.Params) ([]providers.Artifact, error) {
	if g.generateImage == nil {
		return nil, domain.ErrUnsupportedOperation
	}
	return g.generateImage(params)
}

func (g *stubGateway) EditImage(_ context.Context, params domain.Params) ([]providers.Artifact, error) {
	if g.editImage == nil {
		return nil, domain.ErrUnsupportedOperation
	}
	return g.editImage(params)
}

func (g *stubGateway) GenerateVideo(_ context.Context, params domain.Params) (*providers.Artifact, error) {
	if g.generateVideo == nil {
		return nil, domain.ErrUnsupportedOperation
	}
	return g.generateVideo(params)
}

func (g *stubGateway) VideoFromImages(_ context.Context, params domain.Params) (*providers.Artifact, error) {
	if g.videoFromImages == nil {
		return nil, domain.ErrUnsupportedOperation
	}
	return g.videoFromImages(params)
}

func (g *stubGateway) CalculateCost(_ domain.ResourceType, quantity int, _ domain.Params) float64 {
	return g.cost * float64(quantity)
}

func (g *stubGateway) Supports(_ providers.Feature) bool { return true }

type stubResolver struct {
	gateway    providers.Gateway
	err        error
	lastToken  string
	resolveCnt int
}

func (r *stubResolver) Resolve(provider, credential string) (providers.Gateway, error) {
	r.resolveCnt++
	r.lastToken = credential
	if r.err != nil {
		return nil, r.err
	}
	return r.gateway, nil
}
