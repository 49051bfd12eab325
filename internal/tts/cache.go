package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
)

var keyPattern = regexp.MustCompile(`^[0-9a-f]{64}$`)

// Cache stores synthesized audio on disk keyed by content hash. Keys are
// hex digests, so they are safe to expose in URLs.
type Cache struct {
	dir string
}

// NewCache creates the cache directory if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating audio cache dir: %w", err)
	}
	return &Cache{dir: dir}, nil
}

// Key derives the cache key for a text/voice pair. The voice id is part of
// the key so a voice change invalidates old entries.
func Key(text, voiceID string) string {
	sum := sha256.Sum256([]byte(voiceID + "\x00" + text))
	return hex.EncodeToString(sum[:])
}

// ValidKey reports whether key looks like a cache key. Used by the audio
// handler to reject path traversal attempts.
func ValidKey(key string) bool {
	return keyPattern.MatchString(key)
}

// Has reports whether audio for key is cached.
func (c *Cache) Has(key string) bool {
	if !ValidKey(key) {
		return false
	}
	info, err := os.Stat(c.Path(key))
	return err == nil && !info.IsDir()
}

// Path returns the file path for key.
func (c *Cache) Path(key string) string {
	return filepath.Join(c.dir, key+".mp3")
}

// Put writes audio for key atomically.
func (c *Cache) Put(key string, audio []byte) error {
	if !ValidKey(key) {
		return fmt.Errorf("invalid cache key %q", key)
	}

	tmp, err := os.CreateTemp(c.dir, "synth-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp audio file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(audio); err != nil {
		tmp.Close()
		return fmt.Errorf("writing audio: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing audio file: %w", err)
	}

	if err := os.Rename(tmp.Name(), c.Path(key)); err != nil {
		return fmt.Errorf("storing audio: %w", err)
	}
	return nil
}
