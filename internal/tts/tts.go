package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"podgen/internal/core"
	"podgen/internal/logger"
)

// Provider represents different TTS service providers
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderMock   Provider = "mock"
)

// MaxChunkChars bounds the text sent in one synthesis call. Long scripts
// are split on sentence boundaries and the audio concatenated in order.
const MaxChunkChars = 4000

const openAISpeechURL = "https://api.openai.com/v1/audio/speech"

// Config holds TTS configuration
type Config struct {
	Provider   Provider
	APIKey     string
	BaseURL    string // Overrides the OpenAI-compatible endpoint, mostly for tests
	Model      string
	HTTPClient *http.Client
}

// Client handles text-to-speech synthesis.
type Client struct {
	config Config
}

// speechRequest is the OpenAI-compatible synthesis request body.
type speechRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	ResponseFormat string  `json:"response_format"`
	Speed          float64 `json:"speed"`
}

// NewClient creates a TTS client.
func NewClient(config Config) *Client {
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
	if config.BaseURL == "" {
		config.BaseURL = openAISpeechURL
	}
	if config.Model == "" {
		config.Model = "tts-1"
	}
	return &Client{config: config}
}

// ValidateConfig checks a TTS configuration before use.
func ValidateConfig(config Config) error {
	switch config.Provider {
	case ProviderOpenAI:
		if config.APIKey == "" {
			return fmt.Errorf("%s requires an API key", config.Provider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unsupported TTS provider: %s", config.Provider)
	}
	return nil
}

// Synthesize converts the text to speech audio using the podcast's voice
// settings. Text over the per-call limit is chunked on sentence boundaries
// and the resulting audio concatenated in order.
func (c *Client) Synthesize(ctx context.Context, text string, voice core.VoiceConfig) ([]byte, error) {
	text = CleanText(text)
	if text == "" {
		return nil, fmt.Errorf("no text to synthesize")
	}

	speed := voice.Speed
	if speed < 0.5 || speed > 2.0 {
		speed = 1.0
	}

	chunks := ChunkText(text, MaxChunkChars)
	logger.Get().Info("Synthesizing audio", "provider", c.config.Provider, "chunks", len(chunks), "chars", len(text))

	var audio bytes.Buffer
	for i, chunk := range chunks {
		data, err := c.synthesizeChunk(ctx, chunk, voice.VoiceID, speed)
		if err != nil {
			return nil, fmt.Errorf("failed to synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		audio.Write(data)
	}
	return audio.Bytes(), nil
}

func (c *Client) synthesizeChunk(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	switch c.config.Provider {
	case ProviderOpenAI:
		return c.synthesizeOpenAI(ctx, text, voiceID, speed)
	case ProviderMock:
		return []byte(fmt.Sprintf("MOCKAUDIO[%d]", len(text))), nil
	default:
		return nil, fmt.Errorf("unsupported TTS provider: %s", c.config.Provider)
	}
}

// synthesizeOpenAI calls an OpenAI-compatible speech endpoint.
func (c *Client) synthesizeOpenAI(ctx context.Context, text, voiceID string, speed float64) ([]byte, error) {
	if c.config.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	if voiceID == "" {
		voiceID = "alloy"
	}

	body, err := json.Marshal(speechRequest{
		Model:          c.config.Model,
		Input:          text,
		Voice:          voiceID,
		ResponseFormat: "mp3",
		Speed:          speed,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.config.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.config.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		errBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("TTS API error %d: %s", resp.StatusCode, string(errBody))
	}

	return io.ReadAll(resp.Body)
}

// ChunkText splits text into pieces of at most maxChars, preferring
// sentence boundaries and falling back to word boundaries for a single
// overlong sentence. Concatenating the chunks loses no words.
func ChunkText(text string, maxChars int) []string {
	text = strings.TrimSpace(text)
	if len(text) <= maxChars {
		return []string{text}
	}

	var chunks []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
			current.Reset()
		}
	}

	for _, sentence := range splitSentences(text) {
		if len(sentence) > maxChars {
			// Overlong sentence: split on words.
			flush()
			for _, piece := range splitWords(sentence, maxChars) {
				chunks = append(chunks, piece)
			}
			continue
		}
		if current.Len()+len(sentence)+1 > maxChars {
			flush()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(sentence)
	}
	flush()
	return chunks
}

// splitSentences cuts text after sentence-ending punctuation.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '.', '?', '!':
			// Consume trailing punctuation runs like "?!" or "..."
			end := i + 1
			for end < len(text) && (text[end] == '.' || text[end] == '?' || text[end] == '!') {
				end++
			}
			if end >= len(text) || text[end] == ' ' || text[end] == '\n' {
				s := strings.TrimSpace(text[start:end])
				if s != "" {
					sentences = append(sentences, s)
				}
				start = end
				i = end - 1
			}
		}
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

// splitWords splits a single overlong sentence at word boundaries.
func splitWords(sentence string, maxChars int) []string {
	var pieces []string
	var current strings.Builder
	for _, word := range strings.Fields(sentence) {
		if current.Len()+len(word)+1 > maxChars && current.Len() > 0 {
			pieces = append(pieces, current.String())
			current.Reset()
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(word)
	}
	if current.Len() > 0 {
		pieces = append(pieces, current.String())
	}
	return pieces
}

// CleanText strips markup and symbols that read poorly when spoken.
func CleanText(text string) string {
	replacer := strings.NewReplacer(
		"**", "",
		"*", "",
		"_", "",
		"`", "",
		"#", "",
		"&", "and",
		"@", "at",
		"%", "percent",
		"$", "dollars",
	)
	text = replacer.Replace(text)

	words := strings.Fields(text)
	var clean []string
	for _, word := range words {
		if strings.HasPrefix(word, "http://") || strings.HasPrefix(word, "https://") {
			continue
		}
		clean = append(clean, word)
	}
	return strings.TrimSpace(strings.Join(clean, " "))
}

// EstimateAudioLength estimates audio length in minutes based on text.
func EstimateAudioLength(text string, speed float64) float64 {
	// Average speaking rate is about 150-160 words per minute
	if speed <= 0 {
		speed = 1.0
	}
	wordsPerMinute := 155.0 * speed
	return float64(len(strings.Fields(text))) / wordsPerMinute
}
