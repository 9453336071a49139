package usecase

import (
	"context"
	"log/slog"

	"hotmic/internal/domain"
	"hotmic/internal/metrics"
	"hotmic/internal/ports"
)

type transcriptDelivery struct {
	clipboard ports.Clipboard
	paster    ports.Paster
	events    ports.EventSink
	metrics   *metrics.Metrics
	logger    *slog.Logger
	autopaste bool
}

// Deliver copies text to the clipboard and, with autopaste, sends the paste
// keystroke. Failures are reported, never returned. A failed copy skips the
// paste so stale clipboard contents are not pasted. Delivery runs to
// completion even when ctx is cancelled mid-stop.
func (d transcriptDelivery) Deliver(ctx context.Context, text string) (domain.StopResult, domain.PhaseReason) {
	ctx = context.WithoutCancel(ctx)
	result := domain.StopResult{Transcript: text}

	if err := d.clipboard.SetText(ctx, text); err != nil {
		d.logger.Warn("clipboard write failed", "error", err)
		d.metrics.DeliveryFailed("clipboard")
		d.events.SessionError(domain.ErrorCodeClipboard, "transcript ready but clipboard write failed")
		return result, domain.ReasonTranscriptReadyClipboardFail
	}
	result.Copied = true

	if !d.autopaste || d.paster == nil {
		return result, domain.ReasonTranscriptCopied
	}

	if err := d.paster.Paste(ctx); err != nil {
		d.logger.Warn("paste keystroke failed", "error", err)
		d.metrics.DeliveryFailed("paste")
		d.events.SessionError(domain.ErrorCodePaste, "transcript copied but paste keystroke failed")
		return result, domain.ReasonTranscriptCopied
	}
	result.Pasted = true
	return result, domain.ReasonTranscriptPasted
}
