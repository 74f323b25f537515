package identity

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	// Registered decoders for the still-image formats candidates upload.
	_ "image/jpeg"
	_ "image/png"

	"go.uber.org/zap"

	"proctorview/internal/models"
)

// ErrDecode marks malformed image input. It never escapes Verify; it is
// folded into the returned VerificationResult.
var ErrDecode = errors.New("image could not be decoded")

// Comparison is the raw output of a face-comparison model. Threshold is the
// model's own decision boundary; the gate never invents one.
type Comparison struct {
	Distance  float64
	Threshold float64
}

// FaceComparer computes a similarity distance between two face images.
type FaceComparer interface {
	Compare(ctx context.Context, reference, probe []byte) (Comparison, error)
}

// ArtifactStore persists per-candidate verification images. The store is
// needed for model interop only; a failed write does not fail verification.
type ArtifactStore interface {
	Save(candidateID, name string, data []byte) error
}

// Gate performs the one-shot identity check that precedes interview access.
type Gate struct {
	comparer FaceComparer
	store    ArtifactStore
	log      *zap.Logger
}

func NewGate(comparer FaceComparer, store ArtifactStore, log *zap.Logger) *Gate {
	return &Gate{comparer: comparer, store: store, log: log}
}

// Verify decodes both images, persists them for the candidate, and compares
// the faces. Verified is true iff the distance is below the model's own
// threshold; confidence is 1 - distance clamped to [0,1]. Any decode or
// model failure yields a not-verified result with Success=false; Verify
// never panics or returns an error past this boundary.
func (g *Gate) Verify(ctx context.Context, candidateID string, reference, probe []byte) models.VerificationResult {
	if err := decodeImage(reference); err != nil {
		return failure(fmt.Sprintf("registered image: %v", err))
	}
	if err := decodeImage(probe); err != nil {
		return failure(fmt.Sprintf("captured image: %v", err))
	}

	g.persist(candidateID, "registered.jpg", reference)
	g.persist(candidateID, "captured.jpg", probe)

	cmp, err := g.comparer.Compare(ctx, reference, probe)
	if err != nil {
		g.log.Error("Face comparison failed",
			zap.String("candidate", candidateID),
			zap.Error(err),
		)
		return failure(fmt.Sprintf("face comparison failed: %v", err))
	}

	verified := cmp.Distance < cmp.Threshold
	message := "Face mismatch"
	if verified {
		message = "Match success"
	}

	return models.VerificationResult{
		Verified:   verified,
		Confidence: clamp01(1 - cmp.Distance),
		Message:    message,
		Success:    true,
	}
}

func (g *Gate) persist(candidateID, name string, data []byte) {
	if g.store == nil {
		return
	}
	if err := g.store.Save(candidateID, name, data); err != nil {
		// Artifacts exist for model interop; losing one is not fatal.
		g.log.Warn("Failed to store verification image",
			zap.String("candidate", candidateID),
			zap.String("artifact", name),
			zap.Error(err),
		)
	}
}

func decodeImage(data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", ErrDecode)
	}
	if _, _, err := image.Decode(bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %v", ErrDecode, err)
	}
	return nil
}

func failure(message string) models.VerificationResult {
	return models.VerificationResult{Message: message}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
