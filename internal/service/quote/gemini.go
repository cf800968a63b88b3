package quote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/oshokin/morning-glow/internal/version"
)

// Prompt asks for a short morning quote.
const Prompt = `Generate a short, beautiful, and deeply inspiring morning quote to wake someone up with positivity and good luck.
It should be poetic but easy to understand.
Do not include the author's name.
Do not use quotes ("") in the output.
Max 30 words.`

const (
	defaultClientTimeout = 15 * time.Second
	defaultDialTimeout   = 3 * time.Second
)

var (
	// ErrNoAPIKey is returned when no API key is configured.
	ErrNoAPIKey = errors.New("quote API key not found")
	// ErrEmptyQuote is returned when the model answered without text.
	ErrEmptyQuote = errors.New("empty response from quote model")
	// ErrUnexpectedStatus is returned when the API answered with an error.
	ErrUnexpectedStatus = errors.New("unexpected quote API status")
)

// GeminiFetcher asks a Gemini model for a quote.
type GeminiFetcher struct {
	// client is nil when no API key is configured.
	client *genai.Client
	model  string
}

// NewGeminiFetcher creates a fetcher. A nil httpClient gets NewHTTPClient defaults,
// an empty endpoint the public Gemini API. Without apiKey every Fetch fails with ErrNoAPIKey.
func NewGeminiFetcher(ctx context.Context, httpClient *http.Client, endpoint, model, apiKey string) (*GeminiFetcher, error) {
	if apiKey == "" {
		return &GeminiFetcher{model: model}, nil
	}

	if httpClient == nil {
		httpClient = NewHTTPClient(defaultClientTimeout)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:     apiKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: httpClient,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: endpoint,
			Headers: http.Header{"User-Agent": []string{version.UserAgent()}},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &GeminiFetcher{
		client: client,
		model:  model,
	}, nil
}

// NewHTTPClient returns a client with bounded dial and overall timeouts.
func NewHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultClientTimeout
	}

	dialTimeout := min(timeout, defaultDialTimeout)

	return &http.Client{
		Timeout: timeout,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			DialContext:         (&net.Dialer{Timeout: dialTimeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:   true,
			MaxIdleConns:        4,
			IdleConnTimeout:     30 * time.Second,
			TLSHandshakeTimeout: dialTimeout,
		},
	}
}

// Fetch implements Fetcher.
func (g *GeminiFetcher) Fetch(ctx context.Context) (string, error) {
	if g.client == nil {
		return "", ErrNoAPIKey
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(Prompt), &genai.GenerateContentConfig{
		ThinkingConfig: &genai.ThinkingConfig{ThinkingBudget: genai.Ptr[int32](0)},
	})
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("%w: %d %s: %s", ErrUnexpectedStatus, apiErr.Code, apiErr.Status, apiErr.Message)
		}

		return "", fmt.Errorf("call quote API: %w", err)
	}

	quote := strings.Trim(strings.TrimSpace(resp.Text()), `"`)
	if quote == "" {
		return "", ErrEmptyQuote
	}

	return quote, nil
}
