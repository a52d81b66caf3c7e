// Package advisory asks a text-generation service for a short supportive
// note about a teacher's absences. It fails soft: callers always get text.
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"smartattend/internal/i18n"
)

const (
	// Unavailable is returned when the service cannot be reached or answers badly.
	Unavailable = "AI unavailable."
	// Nominal is returned when the service answers with no text.
	Nominal = "All systems nominal."
)

// Request describes the advice wanted.
type Request struct {
	TeacherName string
	AbsentCount int
	Language    i18n.Language
}

// Prompt renders the instruction sent to the model.
func (r Request) Prompt() string {
	return fmt.Sprintf("Based on %d absents in Professor %s's classes, give a 1-sentence supportive advice (max 8 words) in %s. No fluff.",
		r.AbsentCount, r.TeacherName, i18n.For(r.Language).Name)
}

// Client calls a generateContent-style endpoint.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
	Skip    bool
}

// New creates a client with configurable timeout.
func New(baseURL, apiKey, model string, skip bool) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		Skip:    skip,
		HTTP: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Advise returns one line of advice. Any failure yields Unavailable.
func (c *Client) Advise(ctx context.Context, req Request) string {
	if c == nil || c.Skip {
		return Unavailable
	}
	text, err := c.generate(ctx, req.Prompt())
	if err != nil {
		log.Printf("advisory: %v", err)
		return Unavailable
	}
	if text = strings.TrimSpace(text); text == "" {
		return Nominal
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("api key not configured")
	}
	body, err := json.Marshal(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}})
	if err != nil {
		return "", err
	}
	url := fmt.Sprintf("%s/models/%s:generateContent", c.BaseURL, c.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.APIKey)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("advisory request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("advisory service error %s: %s", resp.Status, string(bodyBytes))
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if len(out.Candidates) == 0 {
		return "", nil
	}
	var sb strings.Builder
	for _, p := range out.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), nil
}
