// Package resources watches directories of definition files and reloads
// them when they change.
package resources

import (
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
)

// DefaultDebounce is how long a burst of changes must settle before the
// reload callback runs.
const DefaultDebounce = 500 * time.Millisecond

type Watcher struct {
	watcher  *fsnotify.Watcher
	debounce time.Duration
	callback func()
	log      logrus.FieldLogger

	done      chan struct{}
	closeOnce sync.Once
}

// WatchDir calls callback after files in directory are created, written or
// removed. Bursts of events collapse into one call.
func WatchDir(
	directory string,
	debounce time.Duration,
	callback func(),
	log logrus.FieldLogger,
) (
	*Watcher,
	error,
) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(directory); err != nil {
		watcher.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  watcher,
		debounce: debounce,
		callback: callback,
		log:      log.WithField("dir", directory),
		done:     make(chan struct{}),
	}

	reload := make(chan struct{}, 1)
	go w.scheduleReload(reload)
	go w.handleWatcher(reload)
	return w, nil
}

// Close stops watching. Pending reloads are dropped.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}

func (w *Watcher) handleWatcher(reload chan<- struct{}) {
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Remove) ||
				event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.log.WithError(err).Warn("resource watcher error")
		}
	}
}

func (w *Watcher) scheduleReload(reload <-chan struct{}) {
	var timer *time.Timer = nil
	var c <-chan time.Time = nil
	for {
		select {
		case <-w.done:
			if timer != nil {
				timer.Stop()
			}
			return

		case <-reload:
			if timer != nil {
				timer.Reset(w.debounce)
			} else {
				timer = time.NewTimer(w.debounce)
				c = timer.C
			}

		case <-c:
			c = nil
			timer = nil
			w.callback()
		}
	}
}
