package v1

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andreyxaxa/Resale-Delister/internal/entity"
	"github.com/andreyxaxa/Resale-Delister/pkg/logger"
	"github.com/andreyxaxa/Resale-Delister/pkg/types/errs"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	stats      entity.QueueStats
	statsErr   error
	retry      entity.ProcessingStats
	retryErr   error
	retryLimit int
	escalated  []*entity.SaleEvent
	escLimit   int
}

func (f *fakeQueue) RunOnce(context.Context) entity.ProcessingStats { return entity.ProcessingStats{} }

func (f *fakeQueue) RetryFailed(_ context.Context, limit int) (entity.ProcessingStats, error) {
	f.retryLimit = limit
	return f.retry, f.retryErr
}

func (f *fakeQueue) Cleanup(context.Context, int) (entity.CleanupResult, error) {
	return entity.CleanupResult{}, nil
}

func (f *fakeQueue) EscalateExhausted(context.Context) (int, error) { return 0, nil }

func (f *fakeQueue) QueueStats(context.Context) (entity.QueueStats, error) {
	return f.stats, f.statsErr
}

func (f *fakeQueue) Escalated(_ context.Context, limit int) ([]*entity.SaleEvent, error) {
	f.escLimit = limit
	return f.escalated, nil
}

type fakeProcessor struct {
	res entity.ProcessResult
}

func (f *fakeProcessor) ProcessOne(_ context.Context, id uuid.UUID) entity.ProcessResult {
	r := f.res
	r.EventID = id
	return r
}

type fakeJobs struct {
	job    *entity.DelistingJob
	logs   []*entity.DelistingAuditLog
	err    error
	userID uuid.UUID
	reason string
}

func (f *fakeJobs) GetJob(context.Context, uuid.UUID) (*entity.DelistingJob, []*entity.DelistingAuditLog, error) {
	return f.job, f.logs, f.err
}

func (f *fakeJobs) ConfirmJob(_ context.Context, _, userID uuid.UUID) (*entity.DelistingJob, error) {
	f.userID = userID
	return f.job, f.err
}

func (f *fakeJobs) CancelJob(_ context.Context, _, userID uuid.UUID, reason string) (*entity.DelistingJob, error) {
	f.userID = userID
	f.reason = reason
	return f.job, f.err
}

type fixture struct {
	app       *fiber.App
	queue     *fakeQueue
	processor *fakeProcessor
	jobs      *fakeJobs
}

func newFixture() *fixture {
	f := &fixture{
		app:       fiber.New(),
		queue:     &fakeQueue{},
		processor: &fakeProcessor{},
		jobs:      &fakeJobs{},
	}

	NewRoutes(f.app.Group("/v1"), f.queue, f.processor, f.jobs, logger.NewNop())

	return f
}

func (f *fixture) do(t *testing.T, method, target, body string) (int, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := f.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))

	return resp.StatusCode, out
}

func pendingJob() *entity.DelistingJob {
	return &entity.DelistingJob{
		ID:                       uuid.New(),
		UserID:                   uuid.New(),
		Status:                   entity.JobPending,
		SoldOn:                   entity.Ebay,
		MarketplacesTargeted:     []entity.Marketplace{entity.Poshmark},
		RequiresUserConfirmation: true,
	}
}

func TestGetQueueStats(t *testing.T) {
	f := newFixture()
	f.queue.stats = entity.QueueStats{Unprocessed: 4, ProcessingErrors: 1, VerificationFailures: 2, Escalated: 1}

	code, body := f.do(t, http.MethodGet, "/v1/queue/stats", "")
	assert.Equal(t, http.StatusOK, code)
	assert.InDelta(t, 4, body["unprocessed"], 0)
	assert.InDelta(t, 1, body["escalated"], 0)
	assert.Equal(t, []any{}, body["hourly_activity"])
}

func TestGetQueueStats_StoreError(t *testing.T) {
	f := newFixture()
	f.queue.statsErr = errors.New("db down")

	code, body := f.do(t, http.MethodGet, "/v1/queue/stats", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Equal(t, "storage problems", body["error"])
}

func TestRetryFailed(t *testing.T) {
	f := newFixture()
	f.queue.retry = entity.ProcessingStats{Processed: 2, JobsCreated: 1}

	code, body := f.do(t, http.MethodPost, "/v1/queue/retry?limit=20", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 20, f.queue.retryLimit)
	assert.InDelta(t, 2, body["processed"], 0)
	assert.Equal(t, []any{}, body["errors"])
}

func TestRetryFailed_DefaultAndInvalidLimit(t *testing.T) {
	f := newFixture()

	code, _ := f.do(t, http.MethodPost, "/v1/queue/retry", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Zero(t, f.queue.retryLimit)

	code, _ = f.do(t, http.MethodPost, "/v1/queue/retry?limit=5000", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestListEscalated(t *testing.T) {
	f := newFixture()
	f.queue.escalated = []*entity.SaleEvent{
		{ID: uuid.New(), Marketplace: entity.Ebay, Provenance: entity.PollingProvenance{Data: []byte(`{}`)}},
	}

	code, body := f.do(t, http.MethodGet, "/v1/queue/escalated", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 50, f.queue.escLimit)
	assert.InDelta(t, 1, body["count"], 0)

	events, ok := body["events"].([]any)
	require.True(t, ok)
	require.Len(t, events, 1)
	ev, ok := events[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "polling", ev["provenance"])
	assert.Equal(t, "ebay", ev["marketplace"])

	code, _ = f.do(t, http.MethodGet, "/v1/queue/escalated?limit=0", "")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestProcessEvent(t *testing.T) {
	f := newFixture()
	jobID := uuid.New()
	f.processor.res = entity.ProcessResult{Success: true, JobID: &jobID}
	id := uuid.New()

	code, body := f.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%s/process", id), "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, id.String(), body["event_id"])
	assert.Equal(t, jobID.String(), body["job_id"])
	assert.Equal(t, true, body["success"])
}

func TestProcessEvent_RateLimited(t *testing.T) {
	f := newFixture()
	f.processor.res = entity.ProcessResult{
		Error: "429", Kind: errs.KindRateLimited, Retryable: true, RetryAfter: 90 * time.Second,
	}

	code, body := f.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%s/process", uuid.New()), "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "rate_limited", body["kind"])
	assert.Equal(t, true, body["retryable"])
	assert.InDelta(t, 90000, body["retry_after_ms"], 0)
}

func TestProcessEvent_NotFoundAndBadID(t *testing.T) {
	f := newFixture()
	f.processor.res = entity.ProcessResult{Error: "gone", Kind: errs.KindNotFound}

	code, _ := f.do(t, http.MethodPost, fmt.Sprintf("/v1/events/%s/process", uuid.New()), "")
	assert.Equal(t, http.StatusNotFound, code)

	code, body := f.do(t, http.MethodPost, "/v1/events/not-a-uuid/process", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, "invalid id", body["error"])
}

func TestGetJob(t *testing.T) {
	f := newFixture()
	f.jobs.job = pendingJob()
	f.jobs.logs = []*entity.DelistingAuditLog{{ID: uuid.New(), Action: entity.ActionSaleEventProcessed, Success: true}}

	code, body := f.do(t, http.MethodGet, "/v1/jobs/"+f.jobs.job.ID.String(), "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, f.jobs.job.ID.String(), body["id"])
	assert.Equal(t, true, body["awaiting_confirmation"])

	logs, ok := body["audit_log"].([]any)
	require.True(t, ok)
	assert.Len(t, logs, 1)
}

func TestGetJob_NotFound(t *testing.T) {
	f := newFixture()
	f.jobs.err = fmt.Errorf("x: %w", errs.ErrRecordNotFound)

	code, body := f.do(t, http.MethodGet, "/v1/jobs/"+uuid.NewString(), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "job not found", body["error"])
}

func TestConfirmJob(t *testing.T) {
	f := newFixture()
	job := pendingJob()
	f.jobs.job = job

	code, body := f.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/confirm",
		fmt.Sprintf(`{"user_id":%q}`, job.UserID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, job.UserID, f.jobs.userID)
	assert.Equal(t, "pending", body["status"])
}

func TestConfirmJob_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		err  error
		want int
	}{
		{name: "missing user", body: `{}`, want: http.StatusBadRequest},
		{name: "bad user", body: `{"user_id":"nope"}`, want: http.StatusBadRequest},
		{name: "bad json", body: `{`, want: http.StatusBadRequest},
		{name: "conflict", body: `{"user_id":"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11"}`,
			err: fmt.Errorf("x: %w", errs.ErrInvalidTransition), want: http.StatusConflict},
		{name: "not found", body: `{"user_id":"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11"}`,
			err: fmt.Errorf("x: %w", errs.ErrRecordNotFound), want: http.StatusNotFound},
		{name: "store", body: `{"user_id":"6f1c1f0e-8d8c-4b7a-9a5e-0f7c2b1f9d11"}`,
			err: errors.New("db down"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			f.jobs.job = pendingJob()
			f.jobs.err = tt.err

			code, _ := f.do(t, http.MethodPost, "/v1/jobs/"+uuid.NewString()+"/confirm", tt.body)
			assert.Equal(t, tt.want, code)
		})
	}
}

func TestCancelJob(t *testing.T) {
	f := newFixture()
	job := pendingJob()
	f.jobs.job = job

	code, _ := f.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/cancel",
		fmt.Sprintf(`{"user_id":%q,"reason":"  sold at the flea market  "}`, job.UserID))
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "  sold at the flea market  ", f.jobs.reason)

	code, _ = f.do(t, http.MethodPost, "/v1/jobs/"+job.ID.String()+"/cancel",
		fmt.Sprintf(`{"user_id":%q}`, job.UserID))
	assert.Equal(t, http.StatusBadRequest, code)
}
