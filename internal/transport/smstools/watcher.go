package smstools

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// scriptPrefix marks smstools' own event-script files, which must never
// be treated as inbound messages.
const scriptPrefix = "smsd_script"

// Watcher turns filesystem activity in the inbound mail-drop directory
// into a stream of file paths. Files already present at startup are
// emitted first, so messages that arrived while the daemon was down are
// not lost.
type Watcher struct {
	dir    string
	fs     *fsnotify.Watcher
	events chan string
	log    *zerolog.Logger
}

// NewWatcher builds a watcher for the given inbound directory.
func NewWatcher(dir string, logger *zerolog.Logger) (*Watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fs.Add(dir); err != nil {
		fs.Close()
		return nil, err
	}
	return &Watcher{
		dir:    dir,
		fs:     fs,
		events: make(chan string, 64),
		log:    logger,
	}, nil
}

// Events is the stream of inbound file paths. It is closed when Run
// returns.
func (w *Watcher) Events() <-chan string {
	return w.events
}

// Run emits pre-existing files, then watches for new ones until the
// context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	defer w.fs.Close()

	if err := w.scanExisting(ctx); err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			w.emit(ctx, event.Name)

		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error().Err(err).Msg("watcher error")
		}
	}
}

// scanExisting queues files already sitting in the inbound directory.
func (w *Watcher) scanExisting(ctx context.Context) error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		w.emit(ctx, filepath.Join(w.dir, entry.Name()))
	}
	return nil
}

func (w *Watcher) emit(ctx context.Context, path string) {
	name := filepath.Base(path)
	if strings.HasPrefix(name, scriptPrefix) {
		w.log.Warn().Str("file", name).Msg("skipping smstools script file")
		return
	}
	select {
	case w.events <- path:
	case <-ctx.Done():
	}
}
