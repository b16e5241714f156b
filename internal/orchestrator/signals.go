package orchestrator

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Signal file names under <state dir>/signals.
const (
	SignalStop  = "stop"
	SignalPause = "pause"
)

// SignalWatcher lets another process stop or pause a run by creating files
// in the signals directory. Creating "pause" pauses dispatch and removing it
// resumes; creating "stop" stops the run.
type SignalWatcher struct {
	dir string

	mu          sync.RWMutex
	stopSignal  bool
	pauseSignal bool
	controller  *PauseController

	watcher   *fsnotify.Watcher
	done      chan struct{}
	closeOnce sync.Once
}

// NewSignalWatcher creates a watcher for stateDir/signals, creating the
// directory if needed. If fsnotify is unavailable the watcher still answers
// ShouldStop and ShouldPause by checking the files directly.
func NewSignalWatcher(stateDir string) (*SignalWatcher, error) {
	dir := filepath.Join(stateDir, "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	sw := &SignalWatcher{
		dir:  dir,
		done: make(chan struct{}),
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return sw, nil
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return sw, nil
	}
	sw.watcher = watcher

	go sw.watchSignals()

	return sw, nil
}

// Attach forwards signals to controller. Signals already present on disk
// are applied immediately.
func (sw *SignalWatcher) Attach(controller *PauseController) {
	sw.mu.Lock()
	sw.controller = controller
	sw.mu.Unlock()

	if sw.ShouldPause() {
		controller.Pause()
	}
	if sw.ShouldStop() {
		controller.StopWithReason("stop signal file")
	}
}

// watchSignals monitors the signals directory for stop/pause files.
func (sw *SignalWatcher) watchSignals() {
	for {
		select {
		case <-sw.done:
			return
		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handle(event)
		case _, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
		}
	}
}

func (sw *SignalWatcher) handle(event fsnotify.Event) {
	created := event.Op&(fsnotify.Create|fsnotify.Write) != 0
	removed := event.Op&(fsnotify.Remove|fsnotify.Rename) != 0

	sw.mu.Lock()
	controller := sw.controller
	switch filepath.Base(event.Name) {
	case SignalStop:
		if created {
			sw.stopSignal = true
		}
	case SignalPause:
		if created {
			sw.pauseSignal = true
		} else if removed {
			sw.pauseSignal = false
		}
	}
	stop, pause := sw.stopSignal, sw.pauseSignal
	sw.mu.Unlock()

	if controller == nil {
		return
	}
	if stop {
		controller.StopWithReason("stop signal file")
	}
	if pause {
		controller.Pause()
	} else {
		controller.Resume()
	}
}

// ShouldStop returns true if a stop signal has been received.
func (sw *SignalWatcher) ShouldStop() bool {
	if _, err := os.Stat(filepath.Join(sw.dir, SignalStop)); err == nil {
		sw.mu.Lock()
		sw.stopSignal = true
		sw.mu.Unlock()
	}

	sw.mu.RLock()
	defer sw.mu.RUnlock()
	return sw.stopSignal
}

// ShouldPause returns true while the pause file exists.
func (sw *SignalWatcher) ShouldPause() bool {
	_, err := os.Stat(filepath.Join(sw.dir, SignalPause))

	sw.mu.Lock()
	defer sw.mu.Unlock()
	sw.pauseSignal = err == nil
	return sw.pauseSignal
}

// SendStop creates the stop signal file.
func (sw *SignalWatcher) SendStop() error {
	return SendSignal(filepath.Dir(sw.dir), SignalStop)
}

// SendPause creates the pause signal file.
func (sw *SignalWatcher) SendPause() error {
	return SendSignal(filepath.Dir(sw.dir), SignalPause)
}

// ClearSignals removes all signal files and resets signal state.
func (sw *SignalWatcher) ClearSignals() {
	sw.mu.Lock()
	defer sw.mu.Unlock()

	sw.stopSignal = false
	sw.pauseSignal = false

	os.Remove(filepath.Join(sw.dir, SignalStop))
	os.Remove(filepath.Join(sw.dir, SignalPause))
}

// Dir returns the signals directory.
func (sw *SignalWatcher) Dir() string {
	return sw.dir
}

// Close shuts down the watcher.
func (sw *SignalWatcher) Close() {
	sw.closeOnce.Do(func() {
		close(sw.done)
		if sw.watcher != nil {
			sw.watcher.Close()
		}
	})
}

// SendSignal writes a signal file for a run using stateDir. The CLI uses
// it from a separate process.
func SendSignal(stateDir, name string) error {
	dir := filepath.Join(stateDir, "signals")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, name), []byte(time.Now().Format(time.RFC3339)), 0644)
}

// ClearSignal removes a signal file. A missing file is not an error.
func ClearSignal(stateDir, name string) error {
	err := os.Remove(filepath.Join(stateDir, "signals", name))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
