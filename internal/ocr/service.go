package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ServiceReader posts crops to a remote OCR service. The service accepts a
// multipart "image" field on /process_pubg and answers {"number": N}, using
// UnreadableAlive for anything it could not read.
type ServiceReader struct {
	endpoint   string
	httpClient *http.Client
}

// NewServiceReader returns a reader for the OCR service at baseURL.
func NewServiceReader(baseURL string, timeout time.Duration) *ServiceReader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &ServiceReader{
		endpoint:   strings.TrimRight(baseURL, "/") + "/process_pubg",
		httpClient: &http.Client{Timeout: timeout},
	}
}

type serviceResponse struct {
	Number json.Number `json:"number"`
}

// ReadCounter implements Reader.
func (r *ServiceReader) ReadCounter(ctx context.Context, cropPath string) (Reading, error) {
	img, err := os.ReadFile(cropPath)
	if err != nil {
		return Reading{}, fmt.Errorf("read crop: %w", err)
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("image", filepath.Base(cropPath))
	if err != nil {
		return Reading{}, err
	}
	if _, err := part.Write(img); err != nil {
		return Reading{}, err
	}
	if err := mw.Close(); err != nil {
		return Reading{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, &body)
	if err != nil {
		return Reading{}, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	res, err := r.httpClient.Do(req)
	if err != nil {
		return Reading{}, fmt.Errorf("ocr service: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return Reading{}, fmt.Errorf("ocr service: status %d: %s", res.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out serviceResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return Reading{}, fmt.Errorf("decode ocr response: %w", err)
	}

	text := out.Number.String()
	// The service may answer with a float; only whole numbers count.
	if f, err := strconv.ParseFloat(text, 64); err == nil && f == float64(int(f)) {
		text = strconv.Itoa(int(f))
	}
	reading := ParseCount(text)
	if reading.Readable && reading.Alive >= UnreadableAlive {
		return Unreadable(text), nil
	}
	return reading, nil
}
