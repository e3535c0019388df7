package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ram-tewari/neo-alexandria-sub020/internal/domain"
)

var ErrIngestUnavailable = errors.New("ingestion service is not configured")

type ClientConfig struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client talks to the ingestion service over HTTP.
type Client struct {
	baseURL    string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
}

func NewClient(config ClientConfig) *Client {
	if config.Timeout <= 0 {
		config.Timeout = 15 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(config.BaseURL), "/"),
		apiKey:     strings.TrimSpace(config.APIKey),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
	}
}

func (c *Client) Available() bool {
	return c.baseURL != ""
}

// Submit uploads a local payload or registers a remote reference. Upload
// progress is reported through the progress callback as the body streams out.
func (c *Client) Submit(ctx context.Context, payload domain.Payload, progress ProgressFunc) (string, error) {
	if !c.Available() {
		return "", ErrIngestUnavailable
	}
	if payload.Remote() {
		return c.submitReference(ctx, payload.RemoteURL, progress)
	}
	return c.submitFile(ctx, payload.LocalPath, progress)
}

func (c *Client) submitReference(ctx context.Context, url string, progress ProgressFunc) (string, error) {
	encoded, err := json.Marshal(map[string]string{"url": url})
	if err != nil {
		return "", fmt.Errorf("marshal reference payload: %w", err)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/v1/resources",
		bytes.NewReader(encoded),
	)
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	c.setCommonHeaders(request)
	request.Header.Set("Content-Type", "application/json")

	externalID, err := c.doSubmit(request)
	if err != nil {
		return "", err
	}
	// A reference submission has no byte stream to measure; the accepted call
	// is the whole transfer.
	if progress != nil {
		progress(100)
	}
	return externalID, nil
}

func (c *Client) submitFile(ctx context.Context, path string, progress ProgressFunc) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open payload: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return "", fmt.Errorf("stat payload: %w", err)
	}

	bodyReader, bodyWriter := io.Pipe()
	form := multipart.NewWriter(bodyWriter)

	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			bodyWriter.CloseWithError(err)
			return
		}
		var source io.Reader = file
		if progress != nil && info.Size() > 0 {
			source = &progressReader{reader: file, total: info.Size(), report: progress}
		}
		if _, err := io.Copy(part, source); err != nil {
			bodyWriter.CloseWithError(err)
			return
		}
		bodyWriter.CloseWithError(form.Close())
	}()

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodPost,
		c.baseURL+"/v1/resources",
		bodyReader,
	)
	if err != nil {
		return "", fmt.Errorf("create submit request: %w", err)
	}
	c.setCommonHeaders(request)
	request.Header.Set("Content-Type", form.FormDataContentType())

	return c.doSubmit(request)
}

// Status queries the pipeline state of a submitted resource.
func (c *Client) Status(ctx context.Context, externalID string) (StatusReport, error) {
	if !c.Available() {
		return StatusReport{}, ErrIngestUnavailable
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	request, err := http.NewRequestWithContext(
		timeoutCtx,
		http.MethodGet,
		c.baseURL+"/v1/resources/"+externalID+"/status",
		nil,
	)
	if err != nil {
		return StatusReport{}, fmt.Errorf("create status request: %w", err)
	}
	c.setCommonHeaders(request)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return StatusReport{}, fmt.Errorf("ingest status transport error: %w", err)
	}
	defer response.Body.Close()

	if response.StatusCode != http.StatusOK {
		return StatusReport{}, fmt.Errorf("ingest status returned %d: %s", response.StatusCode, readErrorBody(response.Body))
	}

	var report StatusReport
	if err := json.NewDecoder(response.Body).Decode(&report); err != nil {
		return StatusReport{}, fmt.Errorf("decode status response: %w", err)
	}
	return report, nil
}

func (c *Client) setCommonHeaders(request *http.Request) {
	request.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (c *Client) doSubmit(request *http.Request) (string, error) {
	response, err := c.httpClient.Do(request)
	if err != nil {
		return "", fmt.Errorf("ingest submit transport error: %w", err)
	}
	defer response.Body.Close()

	switch response.StatusCode {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted:
	default:
		return "", fmt.Errorf("ingest submit returned %d: %s", response.StatusCode, readErrorBody(response.Body))
	}

	var decoded struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if strings.TrimSpace(decoded.ID) == "" {
		return "", errors.New("ingest submit response missing id")
	}
	return decoded.ID, nil
}

func readErrorBody(body io.Reader) string {
	raw, _ := io.ReadAll(io.LimitReader(body, 512))
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty body"
	}
	return text
}

// progressReader reports cumulative upload percentage as bytes stream out.
// Percentages only ever move forward.
type progressReader struct {
	reader io.Reader
	total  int64
	read   int64
	last   int
	report ProgressFunc
}

func (r *progressReader) Read(p []byte) (int, error) {
	n, err := r.reader.Read(p)
	if n > 0 {
		r.read += int64(n)
		percent := int(r.read * 100 / r.total)
		if percent > 100 {
			percent = 100
		}
		if percent > r.last {
			r.last = percent
			r.report(percent)
		}
	}
	return n, err
}
