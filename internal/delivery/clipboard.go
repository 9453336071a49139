// Package delivery hands finished transcripts to the desktop: the system
// clipboard, a synthetic paste keystroke and optional notifications.
package delivery

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
)

var ErrClipboardUnsupported = errors.New("no clipboard utility available")

// Clipboard writes text through atotto/clipboard (pbcopy, xclip/xsel/wl-copy
// or the Windows API depending on the platform).
type Clipboard struct{}

func NewClipboard() *Clipboard {
	return &Clipboard{}
}

func (c *Clipboard) SetText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if clipboard.Unsupported {
		return ErrClipboardUnsupported
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}
