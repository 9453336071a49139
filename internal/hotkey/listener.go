// Package hotkey registers the global toggle shortcut.
package hotkey

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	hook "github.com/robotn/gohook"
)

// defaultDebounce must outlast the OS initial key-repeat delay (commonly
// 250ms to 660ms), otherwise the first repeat of a held combo reads as a new
// press.
const defaultDebounce = 800 * time.Millisecond

// GohookListener listens for a global key combination with robotn/gohook.
// gohook keeps one process-wide event hook, so only one Listen may run at a
// time.
type GohookListener struct {
	debounce time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	running bool
}

func NewGohookListener(debounce time.Duration, logger *slog.Logger) *GohookListener {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GohookListener{debounce: debounce, logger: logger}
}

// Listen invokes handler on each press of combo until ctx is done. Key
// auto-repeat while the combo is held is folded into a single press: a new
// press needs a full debounce window of quiet first.
func (l *GohookListener) Listen(ctx context.Context, combo []string, handler func()) error {
	if len(combo) == 0 {
		return errors.New("hotkey combo is required")
	}
	if handler == nil {
		return errors.New("hotkey handler is required")
	}

	l.mu.Lock()
	if l.running {
		l.mu.Unlock()
		return errors.New("hotkey listener already running")
	}
	l.running = true
	l.mu.Unlock()
	defer func() {
		l.mu.Lock()
		l.running = false
		l.mu.Unlock()
	}()

	gate := newDebouncer(l.debounce, time.Now)
	hook.Register(hook.KeyDown, combo, func(hook.Event) {
		if !gate.allow() {
			return
		}
		handler()
	})

	events := hook.Start()
	processed := hook.Process(events)
	l.logger.Debug("hotkey hook started", "combo", Format(combo))

	select {
	case <-ctx.Done():
		hook.End()
		select {
		case <-processed:
		case <-time.After(time.Second):
			l.logger.Debug("hotkey hook did not drain before exit")
		}
		return nil
	case <-processed:
		return errors.New("hotkey hook stopped unexpectedly")
	}
}

// debouncer admits an event only after window has passed since the previous
// event, admitted or not. A held key keeps resetting the window, so its
// auto-repeat never triggers.
type debouncer struct {
	window time.Duration
	now    func() time.Time

	mu   sync.Mutex
	last time.Time
}

func newDebouncer(window time.Duration, now func() time.Time) *debouncer {
	return &debouncer{window: window, now: now}
}

func (d *debouncer) allow() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := d.now()
	quiet := d.last.IsZero() || now.Sub(d.last) >= d.window
	d.last = now
	return quiet
}
