package proctor

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"proctorview/internal/models"
)

// Flags attached to snapshots by the analysis pipeline.
const (
	FlagMultipleFaces  = "multiple_faces"
	FlagAnalysisFailed = "emotion_analysis_failed"
)

// EmotionReading is the dominant emotion of a frame with its confidence.
type EmotionReading struct {
	Label      string
	Confidence float64
}

// EmotionClassifier classifies a single video frame.
type EmotionClassifier interface {
	Classify(ctx context.Context, frame []byte) (EmotionReading, error)
}

// FaceCounter counts the faces present in a single video frame.
type FaceCounter interface {
	Count(ctx context.Context, frame []byte) (int, error)
}

// Monitor continuously consumes a live video stream and keeps the latest
// emotion/flag snapshot in a single slot. Frames are handed off to a worker
// goroutine, so a slow model call never delays frame delivery; it only
// delays the next published snapshot.
type Monitor struct {
	classifier EmotionClassifier
	counter    FaceCounter
	interval   time.Duration
	log        *zap.Logger

	// now is swappable for tests.
	now func() time.Time

	mu         sync.Mutex
	latest     models.FrameSnapshot
	hasLatest  bool
	lastSample time.Time

	frames chan []byte
	stop   chan struct{}
	done   chan struct{}
}

func NewMonitor(classifier EmotionClassifier, counter FaceCounter, interval time.Duration, log *zap.Logger) *Monitor {
	if interval <= 0 {
		interval = 3 * time.Second
	}
	return &Monitor{
		classifier: classifier,
		counter:    counter,
		interval:   interval,
		log:        log,
		now:        time.Now,
		frames:     make(chan []byte, 1),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Start runs the analysis worker in a goroutine.
func (m *Monitor) Start() {
	go func() {
		defer close(m.done)
		for {
			select {
			case <-m.stop:
				return
			case frame := <-m.frames:
				m.sample(frame)
			}
		}
	}()
}

// Stop shuts the worker down and waits for it to exit.
func (m *Monitor) Stop() {
	select {
	case <-m.stop:
		// already stopped
	default:
		close(m.stop)
	}
	<-m.done
}

// Submit hands a frame to the worker without ever blocking the caller.
// When the worker is busy the previous pending frame is dropped so the
// newest frame wins.
func (m *Monitor) Submit(frame []byte) {
	select {
	case m.frames <- frame:
		return
	default:
	}

	// Channel full: discard the stale pending frame and retry once.
	select {
	case <-m.frames:
	default:
	}
	select {
	case m.frames <- frame:
	default:
	}
}

// Latest returns the current snapshot without blocking. The second return
// is false until the first sample has been published or after a Reset.
func (m *Monitor) Latest() (models.FrameSnapshot, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.latest, m.hasLatest
}

// Reset clears the slot so a restarted session never reads a snapshot that
// belongs to the previous run.
func (m *Monitor) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latest = models.FrameSnapshot{}
	m.hasLatest = false
	m.lastSample = time.Time{}
}

// sample runs the pipeline for one frame if the cadence allows it.
func (m *Monitor) sample(frame []byte) {
	now := m.now()

	m.mu.Lock()
	if !m.lastSample.IsZero() && now.Sub(m.lastSample) <= m.interval {
		// Inside the sampling interval: pass the frame through unanalyzed.
		m.mu.Unlock()
		return
	}
	m.lastSample = now
	m.mu.Unlock()

	snapshot := m.Analyze(context.Background(), frame)
	m.publish(snapshot)
}

// Analyze runs the full pipeline on a single frame with no cadence check and
// no publication. Failures are absorbed into a degraded snapshot; Analyze
// never returns an error.
func (m *Monitor) Analyze(ctx context.Context, frame []byte) models.FrameSnapshot {
	snapshot := models.FrameSnapshot{CapturedAt: m.now()}

	reading, err := m.classifier.Classify(ctx, frame)
	if err != nil {
		m.log.Warn("Emotion classification failed", zap.Error(err))
		snapshot.Emotion = "unknown"
		snapshot.Confidence = 0
		snapshot.Flags = append(snapshot.Flags, FlagAnalysisFailed)
		return snapshot
	}

	snapshot.Emotion = reading.Label
	snapshot.Confidence = reading.Confidence

	count, err := m.counter.Count(ctx, frame)
	if err != nil {
		m.log.Warn("Face counting failed", zap.Error(err))
		snapshot.Flags = append(snapshot.Flags, FlagAnalysisFailed)
		return snapshot
	}
	if count > 1 {
		snapshot.Flags = append(snapshot.Flags, FlagMultipleFaces)
	}

	return snapshot
}

// Record publishes an externally produced snapshot into the slot. This is
// the one-shot frame-analysis boundary; sampling cadence is the caller's
// responsibility there.
func (m *Monitor) Record(snapshot models.FrameSnapshot) {
	m.publish(snapshot)
}

// publish atomically replaces the slot contents. Timestamps never go
// backwards across published snapshots.
func (m *Monitor) publish(snapshot models.FrameSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.hasLatest && snapshot.CapturedAt.Before(m.latest.CapturedAt) {
		snapshot.CapturedAt = m.latest.CapturedAt
	}
	m.latest = snapshot
	m.hasLatest = true
}
