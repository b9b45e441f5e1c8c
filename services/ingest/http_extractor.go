package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"body-measure/models"
)

// HTTPDoer is the part of *http.Client the extractor needs.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPExtractor sends each frame's image to a pose-detection service and
// parses the landmarks it returns. The service answers 204, or an empty
// landmark list, when nobody is in the frame.
type HTTPExtractor struct {
	endpoint string
	client   HTTPDoer
}

type poseResponse struct {
	Landmarks []ReplayLandmark `json:"landmarks"`
}

// NewHTTPExtractor builds an extractor for endpoint. A nil client gets an
// *http.Client with the given timeout.
func NewHTTPExtractor(endpoint string, timeout time.Duration, client HTTPDoer) (*HTTPExtractor, error) {
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, fmt.Errorf("pose service url: %w", err)
	}
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	return &HTTPExtractor{endpoint: endpoint, client: client}, nil
}

// Extract implements LandmarkExtractor.
func (e *HTTPExtractor) Extract(ctx context.Context, f *models.Frame) (*models.Detection, error) {
	if f == nil || len(f.Image) == 0 {
		return nil, nil
	}

	u, _ := url.Parse(e.endpoint)
	q := u.Query()
	q.Set("width", strconv.Itoa(f.Width))
	q.Set("height", strconv.Itoa(f.Height))
	q.Set("seq", strconv.FormatUint(f.Seq, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(f.Image))
	if err != nil {
		return nil, fmt.Errorf("build pose request: %w", err)
	}
	req.Header.Set("Content-Type", contentType(f.Format))
	req.Header.Set("Accept", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pose request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil, nil
	}
	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pose service returned %s: %s", resp.Status, bytes.TrimSpace(body))
	}

	var pr poseResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return nil, fmt.Errorf("decode pose response: %w", err)
	}
	if len(pr.Landmarks) == 0 {
		return nil, nil
	}
	kps := make(models.Keypoints, len(pr.Landmarks))
	for _, l := range pr.Landmarks {
		k, err := l.keypoint()
		if err != nil {
			return nil, fmt.Errorf("pose response: %w", err)
		}
		kps[k.Name] = k
	}
	return &models.Detection{Keypoints: kps}, nil
}

func contentType(format string) string {
	switch format {
	case "MJPEG", "JPEG", "jpeg", "jpg":
		return "image/jpeg"
	case "PNG", "png":
		return "image/png"
	default:
		return "application/octet-stream"
	}
}
