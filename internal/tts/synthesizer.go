// Package tts synthesizes agent speech through an ElevenLabs-style HTTP API
// with a local audio cache keyed by text hash.
package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/lososs/callagent/internal/config"
	apperrors "github.com/lososs/callagent/internal/errors"
	"github.com/lososs/callagent/internal/metrics"
)

// maxAudioBytes caps one synthesized clip. Responses are capped at 250
// characters upstream, so anything bigger than this is a provider fault.
const maxAudioBytes = 5 << 20

const (
	retryAttempts     = 2
	retryInitialDelay = 200 * time.Millisecond
	retryMaxDelay     = 2 * time.Second
)

// statusError is a non-200 response from the synthesis API. Whether it is
// worth retrying depends on the status code.
type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("synthesis API returned status %d", e.code)
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Synthesizer converts response text to audio. Synthesis is best-effort:
// on any failure the caller falls back to telephony-side speech.
type Synthesizer struct {
	apiURL          string
	apiKey          string
	voiceID         string
	stability       float64
	similarityBoost float64

	httpClient httpDoer
	cache      *Cache
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewSynthesizer creates a Synthesizer and its cache directory.
func NewSynthesizer(cfg *config.SpeechConfig, m *metrics.Metrics, logger *zap.Logger) (*Synthesizer, error) {
	cache, err := NewCache(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Synthesizer{
		apiURL:          cfg.APIURL,
		apiKey:          cfg.APIKey,
		voiceID:         cfg.VoiceID,
		stability:       cfg.Stability,
		similarityBoost: cfg.SimilarityBoost,
		httpClient:      &http.Client{Timeout: timeout},
		cache:           cache,
		metrics:         m,
		logger:          logger,
	}, nil
}

// Cache exposes the audio cache for the serving handler.
func (s *Synthesizer) Cache() *Cache {
	return s.cache
}

// Synthesize returns the cache key of the audio for text, synthesizing it
// if it is not cached yet.
func (s *Synthesizer) Synthesize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", fmt.Errorf("empty text")
	}

	key := Key(text, s.voiceID)
	if s.cache.Has(key) {
		if s.metrics != nil {
			s.metrics.RecordSynthesisCacheHit()
		}
		return key, nil
	}

	start := time.Now()
	var audio []byte

	operation := func() error {
		var reqErr error
		audio, reqErr = s.request(ctx, text)
		if reqErr == nil {
			return nil
		}
		var se *statusError
		if errors.As(reqErr, &se) && !retryableStatus(se.code) {
			return backoff.Permanent(reqErr)
		}
		return reqErr
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryInitialDelay
	bo.MaxInterval = retryMaxDelay
	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(bo, retryAttempts), ctx))

	if s.metrics != nil {
		s.metrics.RecordSynthesis(err == nil, time.Since(start))
	}

	if err != nil {
		s.logger.Warn("speech synthesis failed",
			zap.Int("text_length", len(text)),
			zap.Error(err),
		)
		return "", apperrors.SynthesisError(err)
	}

	if err := s.cache.Put(key, audio); err != nil {
		// The audio exists but cannot be served from disk. Treat as a miss.
		return "", apperrors.SynthesisError(err)
	}

	s.logger.Debug("speech synthesized",
		zap.String("key", key),
		zap.Int("bytes", len(audio)),
	)
	return key, nil
}

type synthesisRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

func (s *Synthesizer) request(ctx context.Context, text string) ([]byte, error) {
	body, err := json.Marshal(synthesisRequest{
		Text:    text,
		ModelID: "eleven_multilingual_v2",
		VoiceSettings: voiceSettings{
			Stability:       s.stability,
			SimilarityBoost: s.similarityBoost,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshaling synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/text-to-speech/%s", s.apiURL, s.voiceID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating synthesis request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/mpeg")
	req.Header.Set("xi-api-key", s.apiKey)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending synthesis request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &statusError{code: resp.StatusCode}
	}

	audio, err := io.ReadAll(io.LimitReader(resp.Body, maxAudioBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading audio: %w", err)
	}
	if len(audio) == 0 {
		return nil, fmt.Errorf("empty audio response")
	}
	if len(audio) > maxAudioBytes {
		return nil, fmt.Errorf("audio response exceeds %d bytes", maxAudioBytes)
	}

	return audio, nil
}
