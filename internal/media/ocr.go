package media

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/ppiont/socratex/internal/llm"
)

const (
	defaultOCRTimeout  = 30 * time.Second
	maxOCRResponseSize = 1 << 20
)

// OCRResult is the structured reading of a photographed problem.
type OCRResult struct {
	Problem string `json:"problem" jsonschema_description:"The problem statement in plain words"`
	LaTeX   string `json:"latex,omitempty" jsonschema_description:"The mathematical content in LaTeX"`
}

// OCRConfig configures the math OCR client.
type OCRConfig struct {
	Endpoint   string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *log.Logger
}

// OCRClient extracts math problems from images via an OCR service
// that accepts a base64 image plus a JSON schema for its answer.
type OCRClient struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
	logger     *log.Logger
	schema     json.RawMessage
}

// NewOCRClient builds a client. The expected response schema is
// reflected once from OCRResult.
func NewOCRClient(cfg OCRConfig) (*OCRClient, error) {
	endpoint := strings.TrimSpace(cfg.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("media: ocr endpoint is required")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultOCRTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	reflector := jsonschema.Reflector{DoNotReference: true}
	schema, err := json.Marshal(reflector.Reflect(&OCRResult{}))
	if err != nil {
		return nil, fmt.Errorf("media: reflect ocr schema: %w", err)
	}

	return &OCRClient{
		endpoint:   endpoint,
		timeout:    timeout,
		httpClient: httpClient,
		logger:     logger,
		schema:     schema,
	}, nil
}

// Recognize sends an image part to the OCR service and returns its
// structured reading. A response that is not structured JSON degrades
// to the raw text as the problem statement.
func (c *OCRClient) Recognize(ctx context.Context, part llm.Part) (OCRResult, error) {
	if part.Type != llm.PartTypeImage || strings.TrimSpace(part.URL) == "" {
		return OCRResult{}, fmt.Errorf("media: ocr requires an image part")
	}

	body, err := c.buildRequestBody(part)
	if err != nil {
		return OCRResult{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return OCRResult{}, fmt.Errorf("media: build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OCRResult{}, fmt.Errorf("media: ocr request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxOCRResponseSize))
	if err != nil {
		return OCRResult{}, fmt.Errorf("media: read ocr response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return OCRResult{}, fmt.Errorf("media: ocr service returned %s", resp.Status)
	}

	return c.parseResponse(payload), nil
}

// buildRequestBody assembles the request JSON incrementally: the
// image payload, its media type, and the schema the service should
// answer with.
func (c *OCRClient) buildRequestBody(part llm.Part) ([]byte, error) {
	body, err := sjson.SetBytes(nil, "image", part.URL)
	if err != nil {
		return nil, fmt.Errorf("media: build ocr body: %w", err)
	}
	if part.MediaType != "" {
		if body, err = sjson.SetBytes(body, "media_type", part.MediaType); err != nil {
			return nil, fmt.Errorf("media: build ocr body: %w", err)
		}
	}
	if body, err = sjson.SetRawBytes(body, "schema", c.schema); err != nil {
		return nil, fmt.Errorf("media: build ocr body: %w", err)
	}
	return body, nil
}

// parseResponse pulls the structured fields out of the service
// response, falling back to treating the whole payload as plain text.
func (c *OCRClient) parseResponse(payload []byte) OCRResult {
	if gjson.ValidBytes(payload) {
		parsed := gjson.ParseBytes(payload)
		problem := parsed.Get("problem").String()
		latex := parsed.Get("latex").String()
		if problem != "" || latex != "" {
			return OCRResult{Problem: problem, LaTeX: latex}
		}
		if text := parsed.Get("text").String(); text != "" {
			return OCRResult{Problem: text}
		}
	}

	c.logger.Debug("ocr response was not structured, using raw text")
	return OCRResult{Problem: strings.TrimSpace(string(payload))}
}

// Prompt renders the result as a user-facing problem statement.
func (r OCRResult) Prompt() string {
	switch {
	case r.Problem != "" && r.LaTeX != "":
		return r.Problem + "\n\n" + r.LaTeX
	case r.LaTeX != "":
		return r.LaTeX
	default:
		return r.Problem
	}
}
