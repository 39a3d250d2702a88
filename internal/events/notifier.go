package events

import (
	"log/slog"
	"sync"
	"time"
)

// Status is the progress vocabulary published on the bus.
type Status string

// Status values emitted during task processing.
const (
	StatusQueued      Status = "queued"
	StatusProcessing  Status = "processing"
	StatusWaiting     Status = "waiting"
	StatusDownloading Status = "downloading"
	StatusDone        Status = "done"
	StatusError       Status = "error"
	StatusTimeout     Status = "timeout"

	// StatusFatalTimeout marks a task abandoned after repeated fatal-looking
	// errors persisted past the adapter's grace window.
	StatusFatalTimeout Status = "fatal_timeout"

	// Thumbnail fallback progression for providers that return no image.
	StatusRenderingThumbnail       Status = "generating_thumbnail"
	StatusRenderingThumbnailDone   Status = "generating_thumbnail_done"
	StatusRenderingThumbnailFailed Status = "generating_thumbnail_failed"
)

// Update is one status event for a task.
type Update struct {
	TaskID  string    `json:"task_id"`
	Status  Status    `json:"status"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

// Notifier publishes keyed status events to any number of live listeners.
type Notifier interface {
	// Publish delivers the event to all current subscribers of taskID.
	// Subscribers that are not currently connected simply miss the event.
	Publish(taskID string, status Status, message string)
}

// subscriberBuffer is the per-subscriber channel capacity. A subscriber
// that falls further behind than this drops events rather than blocking
// the publishing poll loop.
const subscriberBuffer = 16

// Broker is an in-memory Notifier that also provides the subscribe side
// of the bus. It owns no durable state.
type Broker struct {
	mu     sync.RWMutex
	subs   map[string]map[int]chan Update
	nextID int
	logger *slog.Logger
}

// NewBroker creates a new in-memory status broker.
func NewBroker(logger *slog.Logger) *Broker {
	return &Broker{
		subs:   make(map[string]map[int]chan Update),
		logger: logger.With("component", "status_broker"),
	}
}

// Publish delivers the event to all current subscribers of taskID.
// The send never blocks: a full subscriber channel drops the event.
func (b *Broker) Publish(taskID string, status Status, message string) {
	update := Update{
		TaskID:  taskID,
		Status:  status,
		Message: message,
		At:      time.Now().UTC(),
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	b.logger.Debug("publishing status update",
		"task_id", taskID,
		"status", status,
		"subscriber_count", len(b.subs[taskID]))

	for _, ch := range b.subs[taskID] {
		select {
		case ch <- update:
		default:
			b.logger.Warn("dropping status update for slow subscriber",
				"task_id", taskID,
				"status", status)
		}
	}
}

// Subscribe registers a listener for the given task identifier and returns
// the update channel along with a cancel function. The channel is closed
// when cancel is called; cancel is safe to call more than once.
func (b *Broker) Subscribe(taskID string) (<-chan Update, func()) {
	ch := make(chan Update, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	if b.subs[taskID] == nil {
		b.subs[taskID] = make(map[int]chan Update)
	}
	b.subs[taskID][id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs[taskID], id)
			if len(b.subs[taskID]) == 0 {
				delete(b.subs, taskID)
			}
			b.mu.Unlock()
			close(ch)
		})
	}

	return ch, cancel
}
