package tuning

import (
	"context"
	"io"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 250 * time.Millisecond

// Watch reloads path whenever it changes and passes valid results to
// onChange. Invalid files are logged and ignored. Editors that replace the
// file are handled by watching the parent directory.
func Watch(ctx context.Context, path string, logger *log.Logger, onChange func(Tuning)) error {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.NewTimer(watchDebounce)
			timerCh = timer.C
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logger.Printf("tuning watch error: %v", err)
		case <-timerCh:
			timerCh = nil
			t, err := Load(abs)
			if err != nil {
				logger.Printf("tuning reload rejected: %v", err)
				continue
			}
			logger.Printf("tuning reloaded from %s", abs)
			onChange(t)
		}
	}
}
