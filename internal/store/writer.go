package store

import (
	"sync"

	"go.uber.org/zap"
)

// SessionWriter persists the session collection from a single background
// goroutine. Notifications arriving while a write is in flight collapse into
// one follow-up write, and every write takes a fresh snapshot, so the stored
// state always ends at the latest mutation.
type SessionWriter struct {
	adapter  *Adapter
	snapshot func() []ChatSession
	log      *zap.Logger

	writeMu sync.Mutex
	notify  chan struct{}
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

func NewSessionWriter(adapter *Adapter, snapshot func() []ChatSession, log *zap.Logger) *SessionWriter {
	w := &SessionWriter{
		adapter:  adapter,
		snapshot: snapshot,
		log:      log,
		notify:   make(chan struct{}, 1),
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go w.run()
	return w
}

// Notify schedules a write. It never blocks.
func (w *SessionWriter) Notify() {
	select {
	case w.notify <- struct{}{}:
	default:
	}
}

func (w *SessionWriter) run() {
	defer close(w.done)
	for {
		select {
		case <-w.notify:
			w.Flush()
		case <-w.stop:
			w.Flush()
			return
		}
	}
}

// Flush writes the current snapshot synchronously.
func (w *SessionWriter) Flush() error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	if err := w.adapter.SaveSessions(w.snapshot()); err != nil {
		w.log.Error("sessions_write_failed", zap.Error(err))
		return err
	}
	return nil
}

// Close performs a final write and stops the background goroutine.
func (w *SessionWriter) Close() {
	w.once.Do(func() {
		close(w.stop)
		<-w.done
	})
}
