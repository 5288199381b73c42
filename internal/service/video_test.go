package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sungminna/marketer/internal/domain"
	"github.com/sungminna/marketer/internal/providers"
)

func newVideoFixture(gw providers.Gateway, remover BackgroundRemover, client *http.Client) (*VideoService, *stubJobRepo, *stubUsageRepo, *stubQuotaRepo, *stubStore, *stubNotifier) {
	jobs := newStubJobRepo()
	usage := &stubUsageRepo{}
	quotaRepo := newStubQuotaRepo()
	store := newStubStore()
	notifier := &stubNotifier{}
	quota := NewQuotaService(quotaRepo, testLogger())
	svc := NewVideoService(jobs, usage, quota, store, &stubResolver{gateway: gw}, notifier, remover, client, testLogger())
	return svc, jobs, usage, quotaRepo, store, notifier
}

func TestVideoCreateJobValidation(t *testing.T) {
	svc, _, _, _, _, _ := newVideoFixture(&stubGateway{}, nil, nil)
	ctx := context.Background()

	_, err := svc.CreateJob(ctx, "u1", domain.JobKindImageGenerate, "veo", "", domain.Params{"prompt": "x"})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateJob(image kind) err = %v, want ErrValidation", err)
	}

	_, err = svc.CreateJob(ctx, "u1", domain.JobKindVideoBgRemove, "veo", "", domain.Params{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("CreateJob(bg remove, no video_url) err = %v, want ErrValidation", err)
	}
}

func TestVideoProcessJobDownloadsAndStores(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		w.Write([]byte("mp4-bytes"))
	}))
	defer srv.Close()

	gw := &stubGateway{
		generateVideo: func(params domain.Params) (*providers.Artifact, error) {
			return &providers.Artifact{URL: srv.URL + "/clip.mp4", MIME: "video/mp4", Seconds: 10}, nil
		},
	}
	svc, _, usage, quotaRepo, store, notifier := newVideoFixture(gw, nil, srv.Client())
	ctx := context.Background()

	job, err := svc.CreateJob(ctx, "u1", domain.JobKindVideoGenerate, "veo", "veo-3.1-fast-generate-preview-001",
		domain.Params{"prompt": "product spin", "length": 10})
	if err != nil {
		t.Fatalf("CreateJob() err = %v", err)
	}

	done, err := svc.ProcessJob(ctx, job.ID, "key")
	if err != nil {
		t.Fatalf("ProcessJob() err = %v", err)
	}
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("job.Status = %v, want %v", done.Status, domain.JobStatusCompleted)
	}
	wantURL := "https://cdn.test/generated/u1/" + job.ID + "/video.mp4"
	if len(done.OutputURLs) != 1 || done.OutputURLs[0] != wantURL {
		t.Fatalf("OutputURLs = %v, want [%s]", done.OutputURLs, wantURL)
	}
	if string(store.puts["generated/u1/"+job.ID+"/video.mp4"]) != "mp4-bytes" {
		t.Fatalf("stored video bytes = %q, want downloaded body", store.puts)
	}
	// veo fast model, 10 seconds at 0.15/s.
	if done.CostUSD == nil || *done.CostUSD != 1.50 {
		t.Fatalf("CostUSD = %v, want 1.50", done.CostUSD)
	}
	if got := done.Metadata.GetInt("duration_seconds", 0); got != 10 {
		t.Fatalf("duration_seconds = %d, want 10", got)
	}
	if len(usage.logs) != 1 || usage.logs[0].Quantity != 10 || usage.logs[0].ResourceType != domain.ResourceTypeVideo {
		t.Fatalf("usage logs = %+v, want one video entry for 10 seconds", usage.logs)
	}
	month := domain.MonthStart(done.CreatedAt)
	used := quotaRepo.usage[usageKey("u1", month)]
	if used == nil || used.VideoSecondsUsed != 10 {
		t.Fatalf("quota usage = %+v, want 10 video seconds", used)
	}
	events := notifier.all()
	if len(events) != 1 || events[0].Event != domain.EventJobCompleted {
		t.Fatalf("events = %+v, want one job.completed", events)
	}
}

func TestVideoProcessJobImageToVideo(t *testing.T) {
	fromImages := false
	gw := &stubGateway{
		videoFromImages: func(params domain.Params) (*providers.Artifact, error) {
			fromImages = true
			return &providers.Artifact{Data: []byte("mp4"), MIME: "video/mp4", Seconds: 4}, nil
		},
	}
	svc, _, _, _, _, _ := newVideoFixture(gw, nil, nil)
	ctx := context.Background()

	job, _ := svc.CreateJob(ctx, "u1", domain.JobKindImageToVideo, "sora", "sora-2",
		domain.Params{"prompt": "animate", "input_images": []any{"https://cdn.test/a.png"}})
	done, err := svc.ProcessJob(ctx, job.ID, "key")
	if err != nil {
		t.Fatalf("ProcessJob() err = %v", err)
	}
	if !fromImages {
		t.Fatalf("VideoFromImages not called for image_to_video job")
	}
	if done.Status != domain.JobStatusCompleted {
		t.Fatalf("job.Status = %v, want %v", done.Status, domain.JobStatusCompleted)
	}
}

func TestVideoProcessJobBgRemoveUnconfigured(t *testing.T) {
	svc, jobs, _, _, _, _ := newVideoFixture(&stubGateway{}, nil, nil)
	ctx := context.Background()

	job, _ := svc.CreateJob(ctx, "u1", domain.JobKindVideoBgRemove, "veo", "",
		domain.Params{"video_url": "https://cdn.test/in.mp4"})
	_, err := svc.ProcessJob(ctx, job.ID, "key")
	if !errors.Is(err, domain.ErrUnsupportedOperation) {
		t.Fatalf("ProcessJob() err = %v, want ErrUnsupportedOperation", err)
	}
	stored, _ := jobs.GetByID(ctx, job.ID)
	if stored.Status != domain.JobStatusFailed {
		t.Fatalf("job.Status = %v, want %v", stored.Status, domain.JobStatusFailed)
	}
}

func TestVideoProcessJobTerminalNoOp(t *testing.T) {
	svc, jobs, _, _, _, notifier := newVideoFixture(&stubGateway{}, nil, nil)
	ctx := context.Background()

	job := &domain.Job{
		ID:     "job-done",
		UserID: "u1",
		Kind:   domain.JobKindVideoGenerate,
		Status: domain.JobStatusFailed,
	}
	if err := jobs.Create(ctx, job); err != nil {
		t.Fatalf("Create() err = %v", err)
	}

	got, err := svc.ProcessJob(ctx, job.ID, "key")
	if !errors.Is(err, domain.ErrJobTerminal) {
		t.Fatalf("ProcessJob() err = %v, want ErrJobTerminal", err)
	}
	if got.Status != domain.JobStatusFailed {
		t.Fatalf("job.Status = %v, want %v", got.Status, domain.JobStatusFailed)
	}
	if len(jobs.statuses) != 0 {
		t.Fatalf("persisted updates = %d, want 0", len(jobs.statuses))
	}
	if len(notifier.all()) != 0 {
		t.Fatalf("events = %d, want 0", len(notifier.all()))
	}
}

func TestVideoProcessJobBgRemoveZeroCost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/out.mp4") {
			w.Write([]byte("matted"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	remover := removerFunc(func(ctx context.Context, videoURL string, params domain.Params) (*providers.Artifact, error) {
		return &providers.Artifact{URL: srv.URL + "/out.mp4", MIME: "video/mp4", Seconds: 6}, nil
	})
	svc, _, usage, _, _, _ := newVideoFixture(&stubGateway{}, remover, srv.Client())
	ctx := context.Background()

	job, _ := svc.CreateJob(ctx, "u1", domain.JobKindVideoBgRemove, "veo", "",
		domain.Params{"video_url": "https://cdn.test/in.mp4"})
	done, err := svc.ProcessJob(ctx, job.ID, "key")
	if err != nil {
		t.Fatalf("ProcessJob() err = %v", err)
	}
	if done.CostUSD == nil || *done.CostUSD != 0 {
		t.Fatalf("CostUSD = %v, want 0 for post-processing", done.CostUSD)
	}
	if len(usage.logs) != 1 || usage.logs[0].Quantity != 6 {
		t.Fatalf("usage logs = %+v, want one 6-second entry", usage.logs)
	}
}

type removerFunc func(ctx context.Context, videoURL string, params domain.Params) (*providers.Artifact, error)

func (f removerFunc) RemoveBackground(ctx context.Context, videoURL string, params domain.Params) (*providers.Artifact, error) {
	return f(ctx, videoURL, params)
}
