package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/taxlens/docanalyzer/internal/core/domain"
	"github.com/taxlens/docanalyzer/internal/infrastructure/resilience"
)

// Client talks to a Gemini-compatible generateContent endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
}

// WithExecutor routes provider calls through the resilience executor.
func (c *Client) WithExecutor(executor *resilience.Executor) *Client {
	c.executor = executor
	return c
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Analyze sends the document inline with the analysis instruction and
// parses the model's JSON reply into a structured result.
func (c *Client) Analyze(ctx context.Context, data []byte, mimeType, filename string) (*domain.AnalysisResult, error) {
	request := generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: buildAnalysisPrompt(filename)},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(data),
				}},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMimeType: "application/json"},
	}

	var response generateResponse
	call := func(callCtx context.Context) error {
		return c.postJSON(callCtx, c.generatePath(), request, &response, "analyze")
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "gemini.analyze", call, classifyProviderError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "analyze document", err)
	}

	raw := responseText(response)
	if raw == "" {
		return nil, domain.WrapError(domain.ErrProvider, "analyze document", fmt.Errorf("empty model response"))
	}

	var result domain.AnalysisResult
	if err := json.Unmarshal([]byte(extractJSONObject(raw)), &result); err != nil {
		return nil, domain.WrapError(domain.ErrProvider, "analyze document", fmt.Errorf("parse analysis json: %w", err))
	}
	return &result, nil
}

func (c *Client) generatePath() string {
	return fmt.Sprintf("/v1beta/models/%s:generateContent", c.model)
}

func responseText(response generateResponse) string {
	for _, candidate := range response.Candidates {
		for _, p := range candidate.Content.Parts {
			if text := strings.TrimSpace(p.Text); text != "" {
				return text
			}
		}
	}
	return ""
}

func extractJSONObject(raw string) string {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1]
	}
	return raw
}
