package delivery

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/micmonay/keybd_event"
)

const defaultPasteSettle = 80 * time.Millisecond

// KeyboardPaster sends the platform paste shortcut (Cmd+V on macOS, Ctrl+V
// elsewhere) to the focused window.
type KeyboardPaster struct {
	settle time.Duration
	goos   string

	mu sync.Mutex
	kb *keybd_event.KeyBonding
}

// NewKeyboardPaster waits settle before each keystroke so the clipboard owner
// has published the new contents.
func NewKeyboardPaster(settle time.Duration) *KeyboardPaster {
	if settle < 0 {
		settle = defaultPasteSettle
	}
	return &KeyboardPaster{settle: settle, goos: runtime.GOOS}
}

func (p *KeyboardPaster) Paste(ctx context.Context) error {
	if p.settle > 0 {
		timer := time.NewTimer(p.settle)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// The virtual keyboard is created on first use: on Linux it needs
	// /dev/uinput, which most users only grant when they enable autopaste.
	if p.kb == nil {
		kb, err := keybd_event.NewKeyBonding()
		if err != nil {
			return fmt.Errorf("failed to create virtual keyboard: %w", err)
		}
		p.kb = &kb
	}

	p.kb.Clear()
	pasteModifier(p.kb, p.goos)
	p.kb.SetKeys(keybd_event.VK_V)
	if err := p.kb.Launching(); err != nil {
		return fmt.Errorf("failed to send paste keystroke: %w", err)
	}
	return nil
}

func pasteModifier(kb *keybd_event.KeyBonding, goos string) {
	if goos == "darwin" {
		kb.HasSuper(true)
		return
	}
	kb.HasCTRL(true)
}
