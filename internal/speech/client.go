// Package speech is an HTTP client for a speech-recognition service. It
// keeps "could not understand" and "service unreachable" as distinct,
// user-distinguishable outcomes.
package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/parithi/bankassist/internal/modality"
)

const (
	defaultTimeout  = 15 * time.Second
	defaultLanguage = "en-IN"
)

// Client posts recorded audio to a recognize endpoint and returns the
// transcript. It satisfies modality.Speech.
type Client struct {
	endpoint   string
	apiKey     string
	language   string
	httpClient *http.Client
}

// NewClient creates a client for the given recognize endpoint.
func NewClient(endpoint, apiKey string) *Client {
	return &Client{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		language:   defaultLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
}

type recognizeRequest struct {
	Config struct {
		LanguageCode string `json:"languageCode"`
	} `json:"config"`
	Audio struct {
		Content string `json:"content"`
	} `json:"audio"`
}

type recognizeResponse struct {
	Results []struct {
		Alternatives []struct {
			Transcript string `json:"transcript"`
		} `json:"alternatives"`
	} `json:"results"`
}

// Recognize uploads the audio file and returns the best transcript.
// A transport failure or non-2xx status maps to ErrSpeechUnavailable; a
// well-formed response without a transcript maps to ErrUnintelligibleAudio.
func (c *Client) Recognize(ctx context.Context, audioPath string) (string, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return "", fmt.Errorf("reading audio file: %w", err)
	}

	var payload recognizeRequest
	payload.Config.LanguageCode = c.language
	payload.Audio.Content = base64.StdEncoding.EncodeToString(audio)

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	url := c.endpoint
	if c.apiKey != "" {
		url += "?key=" + c.apiKey
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", modality.ErrSpeechUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: status %d", modality.ErrSpeechUnavailable, resp.StatusCode)
	}

	var out recognizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decoding response: %v", modality.ErrSpeechUnavailable, err)
	}

	if len(out.Results) == 0 || len(out.Results[0].Alternatives) == 0 {
		return "", modality.ErrUnintelligibleAudio
	}
	transcript := strings.TrimSpace(out.Results[0].Alternatives[0].Transcript)
	if transcript == "" {
		return "", modality.ErrUnintelligibleAudio
	}
	return transcript, nil
}
