// Package gemini calls the Google Gemini generateContent API for food recognition and
// coaching text.
package gemini

import (
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

	"github.com/tidwall/gjson"

	"example.com/wellness/internal/domain"
	"example.com/wellness/internal/observability"
)

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("gemini returned no text")

const maxResponseBytes = 1 << 20

const recognitionPrompt = `Identify every food visible in this meal photo.
Respond with JSON only: an array of objects with fields "name" (a short generic food name suitable
for a nutrition database search, in English), "grams" (estimated portion weight) and "confidence"
(0 to 1). Respond with [] when the photo shows no food.`

// Client is a minimal Gemini REST client.
type Client struct {
	baseURL    string
	model      string
	apiKey     string
	httpClient *http.Client
}

// NewClient constructs a Client.
func NewClient(baseURL, model, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role"`
	Parts []part `json:"parts"`
}

type generationConfig struct {
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
	Temperature      float64 `json:"temperature"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

// RecognizeFoods asks the vision model which foods the photo shows.
func (c *Client) RecognizeFoods(ctx context.Context, image []byte, mimeType string) (foods []domain.RecognizedFood, err error) {
	start := time.Now()
	defer func() { observability.ObserveVendorCall("gemini", "recognize", start, err) }()

	text, err := c.generate(ctx, generateRequest{
		Contents: []content{{
			Role: domain.RoleUser,
			Parts: []part{
				{Text: recognitionPrompt},
				{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(image)}},
			},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json", Temperature: 0.1},
	})
	if err != nil {
		return nil, err
	}
	return parseFoods(text)
}

// GenerateText continues the conversation in history with prompt.
func (c *Client) GenerateText(ctx context.Context, history []domain.ChatMessage, prompt string) (text string, err error) {
	start := time.Now()
	defer func() { observability.ObserveVendorCall("gemini", "generate_text", start, err) }()

	contents := make([]content, 0, len(history)+1)
	for _, m := range history {
		contents = append(contents, content{Role: m.Role, Parts: []part{{Text: m.Text}}})
	}
	contents = append(contents, content{Role: domain.RoleUser, Parts: []part{{Text: prompt}}})

	text, err = c.generate(ctx, generateRequest{
		Contents:         contents,
		GenerationConfig: generationConfig{Temperature: 0.7},
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func (c *Client) generate(ctx context.Context, body generateRequest) (string, error) {
	if c.apiKey == "" {
		return "", errors.New("gemini api key is not configured")
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return "", err
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	// The key stays out of the URL so transport errors never carry it.
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", err
	}
	if resp.StatusCode >= 300 {
		msg := gjson.GetBytes(data, "error.message").String()
		if msg == "" {
			msg = strings.TrimSpace(string(data))
		}
		return "", fmt.Errorf("gemini error %d: %s", resp.StatusCode, msg)
	}

	var sb strings.Builder
	gjson.GetBytes(data, "candidates.0.content.parts.#.text").ForEach(func(_, value gjson.Result) bool {
		sb.WriteString(value.String())
		return true
	})
	if sb.Len() == 0 {
		if reason := gjson.GetBytes(data, "promptFeedback.blockReason").String(); reason != "" {
			return "", fmt.Errorf("gemini blocked the prompt: %s", reason)
		}
		return "", ErrEmptyResponse
	}
	return sb.String(), nil
}

// parseFoods reads the model's JSON answer, tolerating markdown fences and a wrapping object.
func parseFoods(text string) ([]domain.RecognizedFood, error) {
	raw := stripFences(text)
	if !gjson.Valid(raw) {
		return nil, fmt.Errorf("gemini returned malformed JSON")
	}
	list := gjson.Parse(raw)
	if list.IsObject() {
		list = list.Get("foods")
	}
	if !list.IsArray() {
		return nil, fmt.Errorf("gemini returned no food list")
	}

	foods := make([]domain.RecognizedFood, 0)
	list.ForEach(func(_, item gjson.Result) bool {
		name := strings.TrimSpace(item.Get("name").String())
		if name == "" {
			return true
		}
		foods = append(foods, domain.RecognizedFood{
			Name:       name,
			Grams:      item.Get("grams").Float(),
			Confidence: item.Get("confidence").Float(),
		})
		return true
	})
	return foods, nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
