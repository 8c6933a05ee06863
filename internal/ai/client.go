package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Model is the transport to a hosted generative model.
type Model interface {
	Enabled() bool
	Generate(ctx context.Context, req Request) (string, error)
	Stream(ctx context.Context, req Request) (*Stream, error)
}

// Config holds Gemini configuration parameters.
type Config struct {
	APIKey            string
	Model             string
	ChatModel         string
	BaseURL           string
	Timeout           time.Duration
	Temperature       float64
	MaxOutputTokens   int
	RequestsPerSecond float64
}

// Client implements Model against the Gemini REST API.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	apiKey       string
	model        string
	chatModel    string
	baseURL      string
	temperature  float64
	maxTokens    int
	limiter      *rate.Limiter
}

// NewClient constructs a Client if the supplied configuration is valid.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrDisabled
	}
	cfg.Model = strings.TrimSpace(cfg.Model)
	if cfg.Model == "" {
		cfg.Model = "gemini-2.5-flash"
	}
	cfg.ChatModel = strings.TrimSpace(cfg.ChatModel)
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-3-pro-preview"
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com/v1beta"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 90 * time.Second
	}

	client := &Client{
		httpClient:   &http.Client{Timeout: cfg.Timeout},
		streamClient: &http.Client{},
		apiKey:       strings.TrimSpace(cfg.APIKey),
		model:        cfg.Model,
		chatModel:    cfg.ChatModel,
		baseURL:      cfg.BaseURL,
		temperature:  cfg.Temperature,
		maxTokens:    cfg.MaxOutputTokens,
	}
	if cfg.RequestsPerSecond > 0 {
		burst := int(cfg.RequestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}
	return client, nil
}

// Enabled reports whether the client can make outbound calls.
func (c *Client) Enabled() bool {
	return c != nil && c.apiKey != ""
}

// Models returns the analysis and chat model names.
func (c *Client) Models() (string, string) {
	if c == nil {
		return "", ""
	}
	return c.model, c.chatModel
}

// Generate submits a one-shot request and returns the model's raw reply text.
func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}
	resp, err := c.post(ctx, c.httpClient, c.endpoint(c.model, "generateContent"), req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", decoded.Error
	}
	text := decoded.text()
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Stream submits a chat request and returns the reply as a fragment stream.
// The response body is read only as the caller pulls fragments.
func (c *Client) Stream(ctx context.Context, req Request) (*Stream, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}
	ctx, cancel := context.WithCancel(ctx)
	resp, err := c.post(ctx, c.streamClient, c.endpoint(c.chatModel, "streamGenerateContent")+"?alt=sse", req)
	if err != nil {
		cancel()
		return nil, err
	}

	reader := bufio.NewReader(resp.Body)
	next := func() (string, error) {
		for {
			line, err := reader.ReadString('\n')
			if text, ok, decodeErr := decodeEvent(line); decodeErr != nil {
				return "", decodeErr
			} else if ok {
				return text, nil
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return "", io.EOF
				}
				if ctx.Err() != nil {
					return "", ctx.Err()
				}
				return "", fmt.Errorf("read stream: %w", err)
			}
		}
	}
	release := func() error {
		cancel()
		return resp.Body.Close()
	}
	return NewStream(next, release), nil
}

func decodeEvent(line string) (string, bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "data:") {
		return "", false, nil
	}
	payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
	if payload == "" || payload == "[DONE]" {
		return "", false, nil
	}
	var decoded generateResponse
	if err := json.Unmarshal([]byte(payload), &decoded); err != nil {
		return "", false, fmt.Errorf("decode stream chunk: %w", err)
	}
	if decoded.Error != nil {
		return "", false, decoded.Error
	}
	return decoded.text(), true, nil
}

func (c *Client) endpoint(model, method string) string {
	return fmt.Sprintf("%s/models/%s:%s", c.baseURL, url.PathEscape(model), method)
}

func (c *Client) post(ctx context.Context, httpClient *http.Client, endpoint string, req Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit: %w", err)
		}
	}

	body, err := json.Marshal(c.buildPayload(req))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var apiErr map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("gemini status %d: %v", resp.StatusCode, apiErr)
	}
	return resp, nil
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiTool struct {
	GoogleSearch *struct{} `json:"googleSearch,omitempty"`
	GoogleMaps   *struct{} `json:"googleMaps,omitempty"`
}

type generationConfig struct {
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxOutputTokens int      `json:"maxOutputTokens,omitempty"`
}

type generateRequest struct {
	Contents          []geminiContent   `json:"contents"`
	Tools             []geminiTool      `json:"tools,omitempty"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	Error *geminiError `json:"error,omitempty"`
}

type geminiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

func (e *geminiError) Error() string {
	return fmt.Sprintf("gemini error %d %s: %s", e.Code, e.Status, e.Message)
}

func (r generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	builder := &strings.Builder{}
	for _, part := range r.Candidates[0].Content.Parts {
		builder.WriteString(part.Text)
	}
	return builder.String()
}

func (c *Client) buildPayload(req Request) generateRequest {
	contents := make([]geminiContent, 0, len(req.History)+1)
	for _, turn := range req.History {
		role := "user"
		if turn.Role == RoleAssistant {
			role = "model"
		}
		contents = append(contents, geminiContent{Role: role, Parts: []geminiPart{{Text: turn.Text}}})
	}

	parts := make([]geminiPart, 0, len(req.Parts))
	for _, part := range req.Parts {
		if part.IsInline() {
			parts = append(parts, geminiPart{InlineData: &geminiInlineData{
				MimeType: part.MIMEType,
				Data:     base64.StdEncoding.EncodeToString(part.Data),
			}})
			continue
		}
		parts = append(parts, geminiPart{Text: part.Text})
	}
	contents = append(contents, geminiContent{Role: "user", Parts: parts})

	payload := generateRequest{Contents: contents}
	for _, tool := range req.Tools {
		switch tool {
		case ToolWebSearch:
			payload.Tools = append(payload.Tools, geminiTool{GoogleSearch: &struct{}{}})
		case ToolMapLookup:
			payload.Tools = append(payload.Tools, geminiTool{GoogleMaps: &struct{}{}})
		}
	}
	if strings.TrimSpace(req.SystemInstruction) != "" {
		payload.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: req.SystemInstruction}}}
	}
	if c.temperature > 0 || c.maxTokens > 0 {
		cfg := &generationConfig{MaxOutputTokens: c.maxTokens}
		if c.temperature > 0 {
			temp := c.temperature
			cfg.Temperature = &temp
		}
		payload.GenerationConfig = cfg
	}
	return payload
}
