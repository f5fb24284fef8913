package downloader

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"

	"github.com/slipstream/slskbridge/internal/downloader/types"
)

const (
	activeInterval      = 2 * time.Second
	defaultIdleInterval = 30 * time.Second

	syncTimeout = 10 * time.Second
)

// WebSocket message types sent by the broadcaster.
const (
	MessageQueueState      = "queue:state"
	MessageQueueError      = "queue:error"
	MessageReleaseFinished = "release:finished"
)

// Broadcaster defines the interface for broadcasting messages.
type Broadcaster interface {
	Broadcast(msgType string, payload interface{}) error
}

// QueueBroadcaster polls the queue and pushes it to WebSocket clients. It
// polls every activeInterval while anything is queued or downloading and
// falls back to the idle interval otherwise. Unchanged states are not
// re-sent on timer ticks. Releases that finish between polls are announced
// separately.
type QueueBroadcaster struct {
	service *Service
	hub     Broadcaster
	tracker *CompletionTracker
	logger  zerolog.Logger
	idle    time.Duration

	trigger chan struct{}
	last    uint64 // fingerprint of the last queue sent

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
	active bool
}

// NewQueueBroadcaster creates a new queue broadcaster.
func NewQueueBroadcaster(service *Service, hub Broadcaster, logger zerolog.Logger) *QueueBroadcaster {
	return &QueueBroadcaster{
		service: service,
		hub:     hub,
		tracker: NewCompletionTracker(),
		logger:  logger.With().Str("component", "queue-broadcaster").Logger(),
		idle:    defaultIdleInterval,
		trigger: make(chan struct{}, 1),
	}
}

// SetIdleInterval sets the polling interval used while nothing is
// transferring. Must be called before Start.
func (b *QueueBroadcaster) SetIdleInterval(d time.Duration) {
	if d >= activeInterval {
		b.idle = d
	}
}

// Start begins polling. It is a no-op when already running.
func (b *QueueBroadcaster) Start() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	b.cancel = cancel
	b.done = make(chan struct{})
	go b.run(ctx, b.done)

	b.logger.Info().
		Dur("activeInterval", activeInterval).
		Dur("idleInterval", b.idle).
		Msg("Queue broadcaster started")
}

// Stop stops polling and waits for an in-flight poll to finish.
func (b *QueueBroadcaster) Stop() {
	b.mu.Lock()
	cancel, done := b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	b.logger.Info().Msg("Queue broadcaster stopped")
}

// Trigger requests an immediate push of the current queue, even when it is
// unchanged. Call it after adding or removing a release, or when a client
// asks for a refresh.
func (b *QueueBroadcaster) Trigger() {
	select {
	case b.trigger <- struct{}{}:
	default:
		// one is already pending
	}
}

// ActiveMode reports whether the broadcaster is polling at the fast rate.
func (b *QueueBroadcaster) ActiveMode() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.active
}

func (b *QueueBroadcaster) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	timer := time.NewTimer(b.schedule(b.poll(ctx, true)))
	defer timer.Stop()

	for {
		var force bool
		select {
		case <-ctx.Done():
			return
		case <-b.trigger:
			force = true
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		case <-timer.C:
		}
		active := b.poll(ctx, force)
		// A trigger means something just changed; watch closely for a while.
		timer.Reset(b.schedule(active || force))
	}
}

func (b *QueueBroadcaster) schedule(active bool) time.Duration {
	b.mu.Lock()
	b.active = active
	b.mu.Unlock()
	if active {
		return activeInterval
	}
	return b.idle
}

// poll fetches the queue and pushes it when it changed or force is set. It
// reports whether any release is still queued or downloading.
func (b *QueueBroadcaster) poll(ctx context.Context, force bool) bool {
	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	queue, err := b.service.GetQueue(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		b.logger.Warn().Err(err).Msg("Failed to get queue for broadcast")
		b.last = 0
		b.send(MessageQueueError, map[string]string{"error": err.Error()})
		return false
	}

	if sum := fingerprint(queue); force || sum != b.last {
		b.last = sum
		b.send(MessageQueueState, queue)
	}

	for _, tr := range b.tracker.Observe(queue) {
		b.logger.Info().
			Str("id", tr.ID).
			Str("title", tr.Title).
			Str("status", string(tr.To)).
			Msg("Release finished")
		b.send(MessageReleaseFinished, tr)
	}

	for i := range queue {
		if queue[i].Status.IsActive() {
			return true
		}
	}
	return false
}

func (b *QueueBroadcaster) send(msgType string, payload interface{}) {
	if err := b.hub.Broadcast(msgType, payload); err != nil {
		b.logger.Debug().Err(err).Str("type", msgType).Msg("Failed to broadcast")
	}
}

func fingerprint(queue []types.Release) uint64 {
	data, err := json.Marshal(queue)
	if err != nil {
		return 0
	}
	return xxhash.Sum64(data)
}
