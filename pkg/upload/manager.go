package upload

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/cuemby/glean/pkg/core"
	"github.com/cuemby/glean/pkg/events"
	"github.com/cuemby/glean/pkg/log"
	"github.com/cuemby/glean/pkg/metrics"
	"github.com/cuemby/glean/pkg/types"
	"github.com/rs/zerolog"
)

// Manager owns the queue of pings waiting to be uploaded. Pings enter
// through Update, are handed to the worker one at a time and leave the
// pending pings store once their upload reaches a final outcome.
type Manager struct {
	ctx      *core.Context
	uploader Uploader
	policy   Policy
	limiter  *RateLimiter
	endpoint string
	timeout  time.Duration
	worker   *Worker
	logger   zerolog.Logger

	mu                      sync.Mutex
	queue                   []types.QueuedPing
	processing              map[string]struct{}
	recoverableFailureCount int
	waitAttemptCount        int
}

// NewManager creates an upload manager sending through uploader
func NewManager(ctx *core.Context, uploader Uploader) *Manager {
	opts := ctx.Config.Upload
	m := &Manager{
		ctx:        ctx,
		uploader:   uploader,
		policy:     PolicyFromConfig(opts),
		limiter:    NewRateLimiter(ctx.Clock, opts.RateLimitInterval, opts.RateLimitMaxCount),
		endpoint:   strings.TrimSuffix(ctx.Config.ServerEndpoint, "/"),
		timeout:    opts.RequestTimeout,
		logger:     log.WithComponent("upload"),
		processing: make(map[string]struct{}),
	}
	m.worker = newWorker(m, ctx.Clock)
	return m
}

// Update enqueues a freshly recorded ping and wakes the worker. It is
// called by the pings database.
func (m *Manager) Update(identifier string, record types.PingRecord) {
	if m.enqueue(types.QueuedPing{Identifier: identifier, PingRecord: record}) {
		m.worker.Work()
	}
}

// enqueue appends ping unless it is already queued or being uploaded
func (m *Manager) enqueue(ping types.QueuedPing) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.processing[ping.Identifier]; ok {
		m.logger.Debug().Str("document_id", ping.Identifier).Msg("Ping is already being uploaded, ignoring")
		return false
	}
	for _, queued := range m.queue {
		if queued.Identifier == ping.Identifier {
			m.logger.Debug().Str("document_id", ping.Identifier).Msg("Ping is already enqueued, ignoring")
			return false
		}
	}

	m.queue = append(m.queue, ping)
	metrics.PingsPending.Set(float64(len(m.queue)))
	return true
}

// QueueLength returns the number of pings waiting for upload
func (m *Manager) QueueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.queue)
}

// GetUploadTask returns what the worker should do next. Waiting resets the
// failure budget and anything other than waiting resets the wait budget.
func (m *Manager) GetUploadTask() Task {
	m.mu.Lock()
	defer m.mu.Unlock()

	task := m.nextTask()
	if task.Kind != TaskWait {
		m.waitAttemptCount = 0
	}
	if task.Kind != TaskUpload {
		m.recoverableFailureCount = 0
	}
	return task
}

func (m *Manager) nextTask() Task {
	if m.recoverableFailureCount >= m.policy.MaxRecoverableFailures {
		m.logger.Warn().
			Int("failures", m.recoverableFailureCount).
			Msg("Reached maximum recoverable failures for this uploading window")
		return Task{Kind: TaskDone}
	}
	if len(m.queue) == 0 {
		return Task{Kind: TaskDone}
	}

	state, remaining := m.limiter.GetState()
	if state == Throttled {
		metrics.UploadThrottled.Inc()
		m.ctx.Broker.Publish(&events.Notification{
			Type:    events.NotificationUploadThrottled,
			Message: remaining.String(),
		})

		m.waitAttemptCount++
		if m.waitAttemptCount > m.policy.MaxWaitAttempts {
			m.logger.Warn().Int("attempts", m.waitAttemptCount).Msg("Reached maximum wait attempts for this uploading window")
			return Task{Kind: TaskDone}
		}
		return Task{Kind: TaskWait, Wait: remaining}
	}

	ping := m.queue[0]
	m.queue = m.queue[1:]
	m.processing[ping.Identifier] = struct{}{}
	metrics.PingsPending.Set(float64(len(m.queue)))
	return Task{Kind: TaskUpload, Ping: ping}
}

// upload sends one ping and records the outcome
func (m *Manager) upload(ctx context.Context, ping types.QueuedPing) {
	logger := log.WithPingID(m.logger, ping.Identifier)

	req, err := PrepareRequest(ping, m.policy.MaxPingBodySize, m.ctx.Clock.Now())
	if err != nil {
		logger.Error().Err(err).Msg("Failed to prepare ping request, dropping ping")
		m.ProcessPingUploadResponse(ping, types.UploadResult{Result: types.UploadResultUnrecoverableFailure})
		return
	}
	metrics.UploadBodyBytes.Observe(float64(len(req.Body)))

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	timer := metrics.NewTimer()
	result, err := m.uploader.Post(ctx, m.endpoint+req.Path, req.Body, req.Headers)
	timer.ObserveDuration(metrics.UploadDuration)
	if err != nil {
		logger.Warn().Err(err).Msg("Ping upload failed")
		if result.Result == "" {
			result.Result = types.UploadResultRecoverableFailure
		}
	}

	m.ProcessPingUploadResponse(ping, result)
}

// ProcessPingUploadResponse applies the outcome of an upload. Successful
// and permanently rejected pings are deleted from the pending pings store;
// anything else goes back to the end of the queue.
func (m *Manager) ProcessPingUploadResponse(ping types.QueuedPing, result types.UploadResult) {
	logger := log.WithPingID(m.logger, ping.Identifier)
	status := result.Status

	switch {
	case status >= 200 && status < 300, status == 0 && result.Result == types.UploadResultSuccess:
		logger.Info().Int("status", status).Msg("Ping successfully sent")
		metrics.UploadAttemptsTotal.WithLabelValues(string(types.UploadResultSuccess)).Inc()
		m.finish(ping, events.NotificationPingUploaded, "")

	case status >= 400 && status < 500, result.Result == types.UploadResultUnrecoverableFailure:
		logger.Warn().Int("status", status).Msg("Unrecoverable upload failure, deleting ping")
		metrics.UploadAttemptsTotal.WithLabelValues(string(types.UploadResultUnrecoverableFailure)).Inc()
		m.finish(ping, events.NotificationPingDropped, "unrecoverable failure")

	default:
		logger.Warn().Int("status", status).Msg("Recoverable upload failure, ping will be retried")
		metrics.UploadAttemptsTotal.WithLabelValues(string(types.UploadResultRecoverableFailure)).Inc()

		m.mu.Lock()
		delete(m.processing, ping.Identifier)
		m.recoverableFailureCount++
		ping.Retries++
		m.queue = append(m.queue, ping)
		metrics.PingsPending.Set(float64(len(m.queue)))
		m.mu.Unlock()

		m.ctx.Broker.Publish(&events.Notification{
			Type:       events.NotificationPingRetrying,
			DocumentID: ping.Identifier,
			Ping:       pingName(ping.Path),
		})
	}
}

func (m *Manager) finish(ping types.QueuedPing, notification events.NotificationType, message string) {
	if err := m.ctx.Pings.DeletePing(ping.Identifier); err != nil {
		m.logger.Error().Err(err).Str("document_id", ping.Identifier).Msg("Failed to delete ping")
	}

	m.mu.Lock()
	delete(m.processing, ping.Identifier)
	m.mu.Unlock()

	m.ctx.Broker.Publish(&events.Notification{
		Type:       notification,
		DocumentID: ping.Identifier,
		Ping:       pingName(ping.Path),
		Message:    message,
	})
}

// ClearPendingPingsQueue drops every pending ping except deletion-request
// pings, from the queue and from the pending pings store
func (m *Manager) ClearPendingPingsQueue() error {
	m.mu.Lock()
	kept := m.queue[:0]
	for _, ping := range m.queue {
		if ping.IsDeletionRequest() {
			kept = append(kept, ping)
		}
	}
	m.queue = kept
	metrics.PingsPending.Set(float64(len(m.queue)))
	m.mu.Unlock()

	return m.ctx.Pings.ClearAll(true)
}

// BlockOnOngoingUploads waits for the current upload job to finish. Any
// throttling wait is cut short.
func (m *Manager) BlockOnOngoingUploads(ctx context.Context) error {
	err := m.worker.BlockOnCurrentJob(ctx)
	if errors.Is(err, context.DeadlineExceeded) {
		m.logger.Warn().Msg("Timed out waiting for ongoing uploads")
	}
	return err
}

// pingName extracts the ping name from a submission path
func pingName(path string) string {
	parts := strings.Split(strings.TrimPrefix(path, "/"), "/")
	if len(parts) >= 3 && parts[0] == "submit" {
		return parts[2]
	}
	return ""
}
