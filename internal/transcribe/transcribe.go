// Package transcribe adapts an external speech-recognition capability for
// the session engine.
package transcribe

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Transcriber turns captured audio into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// CaptureText transcribes audio under a bounded wait. Any failure (timeout,
// recognition error, missing transcriber) yields empty text so a spoken
// answer can never block the session.
func CaptureText(ctx context.Context, t Transcriber, audio []byte, timeout time.Duration, log *zap.Logger) string {
	if t == nil {
		return ""
	}

	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	text, err := t.Transcribe(ctx, audio)
	if err != nil {
		log.Warn("Speech transcription failed", zap.Error(err))
		return ""
	}
	return text
}
