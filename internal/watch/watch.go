// Package watch reruns a build action whenever source files change.
//
// It is a development convenience around the normal pipeline: the staleness
// checks make the rerun cheap, so the loop just fires the whole action and
// lets fresh stages skip themselves.
package watch

import (
	"context"
	"log"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces editor save bursts into one rebuild.
const DefaultDebounce = 250 * time.Millisecond

// Loop rebuilds via action whenever anything under dirs changes.
//
// Events arriving within the debounce window collapse into a single rerun.
// Action failures are reported and the loop keeps watching; only watcher
// breakage or context cancellation ends the loop. Returns the context's
// error on cancellation.
type Loop struct {
	// Dirs are the directories to watch (non-recursive, deduplicated).
	Dirs []string

	// Debounce overrides DefaultDebounce when positive.
	Debounce time.Duration

	// Logger receives progress lines; defaults to the standard logger.
	Logger *log.Logger
}

// Run blocks, invoking action once immediately and then after every change
// burst, until ctx is cancelled or the watcher fails.
func (l *Loop) Run(ctx context.Context, action func(context.Context) error) error {
	logger := l.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "no2build: ", 0)
	}
	debounce := l.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	for _, dir := range dedupe(l.Dirs) {
		if err := w.Add(dir); err != nil {
			return err
		}
		logger.Printf("watching %s", dir)
	}

	runAction := func() {
		if err := action(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			logger.Printf("build failed: %v", err)
		}
	}
	runAction()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !relevant(ev) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
				fire = timer.C
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(debounce)
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return err
		case <-fire:
			timer = nil
			fire = nil
			runAction()
		}
	}
}

// relevant filters out events that cannot affect a build, chiefly the
// chmod-only noise some editors generate.
func relevant(ev fsnotify.Event) bool {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return false
	}
	// Ignore editor swap/backup files.
	base := filepath.Base(ev.Name)
	if len(base) > 0 && (base[0] == '.' || base[len(base)-1] == '~') {
		return false
	}
	return true
}

func dedupe(dirs []string) []string {
	seen := make(map[string]struct{}, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		clean := filepath.Clean(d)
		if _, ok := seen[clean]; ok {
			continue
		}
		seen[clean] = struct{}{}
		out = append(out, clean)
	}
	sort.Strings(out)
	return out
}
