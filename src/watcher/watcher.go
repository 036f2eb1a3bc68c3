package watcher

import (
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"

	"certgallery/src/common"
	"certgallery/src/config"
)

const defaultDebounce = 500 * time.Millisecond

// Watcher monitors the certificate source folder and rebuilds the gallery on changes
type Watcher struct {
	cfg      *config.Config
	watcher  *fsnotify.Watcher
	events   chan Event
	rebuild  func() error
	log      *log.Logger
	debounce time.Duration

	mu      sync.Mutex
	timers  map[string]*time.Timer
	stopped bool
}

// Event represents a file system event
type Event struct {
	Type     EventType
	FilePath string
}

// EventType represents the type of file event
type EventType int

const (
	EventCreated EventType = iota
	EventModified
	EventDeleted
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventModified:
		return "modified"
	case EventDeleted:
		return "deleted"
	default:
		return fmt.Sprintf("EventType(%d)", int(t))
	}
}

// NewWatcher creates a new file watcher. rebuild is called after every
// debounced change to an image in the source folder.
func NewWatcher(cfg *config.Config, rebuild func() error, logger *log.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}

	return &Watcher{
		cfg:      cfg,
		watcher:  fsWatcher,
		events:   make(chan Event, 100),
		rebuild:  rebuild,
		log:      logger,
		debounce: defaultDebounce,
		timers:   make(map[string]*time.Timer),
	}, nil
}

// Start begins monitoring the source folder
func (w *Watcher) Start() error {
	if err := w.watcher.Add(w.cfg.SourceDir); err != nil {
		return fmt.Errorf("failed to watch folder %s: %w", w.cfg.SourceDir, err)
	}
	w.log.Info("👀 Watching folder", "path", w.cfg.SourceDir)

	go w.processEvents()

	return nil
}

// processEvents handles fsnotify events and converts them to our event type
func (w *Watcher) processEvents() {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}

			name := filepath.Base(event.Name)
			if !common.IsImageFile(name) {
				continue
			}

			// Debounce: editors and copy tools emit bursts of events per file
			w.mu.Lock()
			if w.stopped {
				w.mu.Unlock()
				return
			}
			if timer, exists := w.timers[event.Name]; exists {
				timer.Stop()
			}
			w.timers[event.Name] = time.AfterFunc(w.debounce, func() {
				w.mu.Lock()
				delete(w.timers, event.Name)
				w.mu.Unlock()
				w.handleEvent(event)
			})
			w.mu.Unlock()

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.Error("Watcher error", "err", err)
		}
	}
}

// handleEvent publishes a single debounced event and rebuilds the gallery
func (w *Watcher) handleEvent(event fsnotify.Event) {
	var eventType EventType

	switch {
	case event.Op&fsnotify.Create == fsnotify.Create:
		eventType = EventCreated
	case event.Op&fsnotify.Write == fsnotify.Write:
		eventType = EventModified
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		eventType = EventDeleted
	default:
		return // Ignore chmod
	}
	w.log.Info("📄 Certificate "+eventType.String(), "file", event.Name)

	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return
	}
	select {
	case w.events <- Event{Type: eventType, FilePath: event.Name}:
	default:
		w.log.Warn("Event channel full, dropping event", "file", event.Name)
	}
	w.mu.Unlock()

	if w.rebuild == nil {
		return
	}
	if err := w.rebuild(); err != nil {
		w.log.Error("Failed to rebuild gallery", "err", err)
	}
}

// Events returns the event channel
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Stop stops the watcher. Calling it more than once is a no-op.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil
	}
	w.stopped = true
	for name, timer := range w.timers {
		timer.Stop()
		delete(w.timers, name)
	}
	close(w.events)
	w.mu.Unlock()

	return w.watcher.Close()
}
