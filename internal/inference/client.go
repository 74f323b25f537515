// Package inference is the HTTP client for the model-serving sidecar that
// hosts the face, emotion, and speech models. The interview core consumes
// these as opaque capabilities; only the wire contract lives here.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"go.uber.org/zap"

	"proctorview/internal/identity"
	"proctorview/internal/proctor"
)

// Client talks to the inference service. It satisfies identity.FaceComparer,
// proctor.EmotionClassifier, proctor.FaceCounter, and transcribe.Transcriber.
type Client struct {
	baseURL    string
	logger     *zap.Logger
	HTTPClient *http.Client
}

func New(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		logger:  logger,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

type verifyResponse struct {
	Distance  float64 `json:"distance"`
	Threshold float64 `json:"threshold"`
}

// Compare submits both face images and returns the model's raw distance and
// its own decision threshold.
func (c *Client) Compare(ctx context.Context, reference, probe []byte) (identity.Comparison, error) {
	var resp verifyResponse
	err := c.postFiles(ctx, "/verify", map[string][]byte{
		"registered": reference,
		"captured":   probe,
	}, &resp)
	if err != nil {
		return identity.Comparison{}, err
	}
	return identity.Comparison{Distance: resp.Distance, Threshold: resp.Threshold}, nil
}

type emotionResponse struct {
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}

// Classify returns the dominant emotion of the frame.
func (c *Client) Classify(ctx context.Context, frame []byte) (proctor.EmotionReading, error) {
	var resp emotionResponse
	if err := c.postFiles(ctx, "/emotion", map[string][]byte{"frame": frame}, &resp); err != nil {
		return proctor.EmotionReading{}, err
	}
	return proctor.EmotionReading{Label: resp.Emotion, Confidence: resp.Confidence}, nil
}

type facesResponse struct {
	Count int `json:"count"`
}

// Count returns the number of faces detected in the frame.
func (c *Client) Count(ctx context.Context, frame []byte) (int, error) {
	var resp facesResponse
	if err := c.postFiles(ctx, "/faces", map[string][]byte{"frame": frame}, &resp); err != nil {
		return 0, err
	}
	return resp.Count, nil
}

type transcribeResponse struct {
	Text string `json:"text"`
}

// Transcribe turns captured audio into text.
func (c *Client) Transcribe(ctx context.Context, audio []byte) (string, error) {
	var resp transcribeResponse
	if err := c.postFiles(ctx, "/transcribe", map[string][]byte{"audio": audio}, &resp); err != nil {
		return "", err
	}
	return resp.Text, nil
}

// postFiles sends the named payloads as a multipart form and decodes the
// JSON response into target.
func (c *Client) postFiles(ctx context.Context, path string, files map[string][]byte, target interface{}) error {
	var b bytes.Buffer
	w := multipart.NewWriter(&b)
	for name, data := range files {
		field, err := w.CreateFormFile(name, name)
		if err != nil {
			return err
		}
		if _, err := field.Write(data); err != nil {
			return err
		}
	}
	w.Close()

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &b)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", w.FormDataContentType())

	c.logger.Debug("make request", zap.String("url", url))
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bad status: %s", resp.Status)
	}

	if target == nil {
		return nil
	}
	return json.Unmarshal(body, target)
}
