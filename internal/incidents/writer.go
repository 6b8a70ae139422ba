package incidents

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/incident-commander/internal/domain"
)

// Saver persists a full incident snapshot.
type Saver interface {
	Save(ctx context.Context, incident *domain.Incident) error
}

// WriterConfig contains writer configuration.
type WriterConfig struct {
	// FlushInterval bounds how long a snapshot may wait when no wake-up arrives.
	FlushInterval time.Duration
	// SaveTimeout limits a single Save call.
	SaveTimeout time.Duration
}

// DefaultWriterConfig returns default writer configuration.
func DefaultWriterConfig() WriterConfig {
	return WriterConfig{
		FlushInterval: 5 * time.Second,
		SaveTimeout:   10 * time.Second,
	}
}

// Writer saves incident snapshots in the background.
// Enqueue never blocks and never reports failures to the caller; when several
// snapshots of the same incident are queued only the latest one is written.
type Writer struct {
	config WriterConfig
	saver  Saver

	mu      sync.Mutex
	pending map[string]*domain.Incident
	order   []string

	wakeCh chan struct{}
	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewWriter creates a new background writer.
func NewWriter(config WriterConfig, saver Saver) *Writer {
	if config.FlushInterval <= 0 {
		config.FlushInterval = DefaultWriterConfig().FlushInterval
	}
	if config.SaveTimeout <= 0 {
		config.SaveTimeout = DefaultWriterConfig().SaveTimeout
	}
	return &Writer{
		config:  config,
		saver:   saver,
		pending: make(map[string]*domain.Incident),
		wakeCh:  make(chan struct{}, 1),
		stopCh:  make(chan struct{}),
	}
}

// Enqueue schedules a save of a copy of the incident.
func (w *Writer) Enqueue(incident *domain.Incident) {
	if incident == nil {
		return
	}
	snapshot := incident.Clone()

	w.mu.Lock()
	if _, queued := w.pending[snapshot.ID]; !queued {
		w.order = append(w.order, snapshot.ID)
	}
	w.pending[snapshot.ID] = snapshot
	recordPending(len(w.pending))
	w.mu.Unlock()

	select {
	case w.wakeCh <- struct{}{}:
	default:
	}
}

// Start launches the writer goroutine.
func (w *Writer) Start(ctx context.Context) {
	slog.Info("starting incident writer", "flush_interval", w.config.FlushInterval)

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the writer and writes whatever is still pending.
func (w *Writer) Stop() {
	close(w.stopCh)
	w.wg.Wait()
	w.Flush(context.Background())
	slog.Info("incident writer stopped")
}

func (w *Writer) run(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-w.wakeCh:
			w.Flush(ctx)
		case <-ticker.C:
			w.Flush(ctx)
		}
	}
}

// Flush writes every pending snapshot synchronously.
func (w *Writer) Flush(ctx context.Context) {
	for _, snapshot := range w.drain() {
		w.save(ctx, snapshot)
	}
}

func (w *Writer) drain() []*domain.Incident {
	w.mu.Lock()
	defer w.mu.Unlock()

	batch := make([]*domain.Incident, 0, len(w.order))
	for _, id := range w.order {
		batch = append(batch, w.pending[id])
	}
	w.pending = make(map[string]*domain.Incident)
	w.order = nil
	recordPending(0)
	return batch
}

func (w *Writer) save(ctx context.Context, incident *domain.Incident) {
	start := time.Now()

	saveCtx, cancel := context.WithTimeout(ctx, w.config.SaveTimeout)
	defer cancel()

	if err := w.saver.Save(saveCtx, incident); err != nil {
		recordSave("failed", time.Since(start))
		slog.Error("failed to save incident",
			"incident_id", incident.ID,
			"error", err,
		)
		return
	}

	recordSave("success", time.Since(start))
	slog.Debug("incident saved",
		"incident_id", incident.ID,
		"updates", len(incident.Updates),
		"duration", time.Since(start),
	)
}
