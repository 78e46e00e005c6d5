package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/labstack/echo/v4"
)

// Cache stores response blobs. A miss is reported as redis.Nil by every
// implementation so callers can check errors.Is(err, redis.Nil).
type Cache interface {
	Get(ctx context.Context, key string) (*Item, error)
	Set(ctx context.Context, key string, item *Item, duration time.Duration) error
}

type Item struct {
	Blob       []byte    `json:"blob,omitempty"`
	LastAccess time.Time `json:"last_access"`
	MimeType   string    `json:"mime_type,omitempty"`
	HitCount   int       `json:"hit_count,omitempty"`
	// Expires is zero for items that never expire.
	Expires time.Time `json:"expires,omitempty"`
}

func NewItem(blob []byte, mimeType string) *Item {
	return &Item{Blob: blob, MimeType: mimeType, LastAccess: time.Now().UTC()}
}

// MarshalBinary inlines JSON blobs instead of base64 encoding them.
func (item *Item) MarshalBinary() ([]byte, error) {
	if item.MimeType == echo.MIMEApplicationJSON && json.Valid(item.Blob) {
		shallow := *item
		shallow.Blob = nil
		b, err := json.Marshal(&shallow)
		if err != nil {
			return b, err
		}
		return bytes.Join(
			[][]byte{
				b[:len(b)-1],
				[]byte(`,"blob":`),
				item.Blob,
				[]byte("}"),
			}, nil), nil
	}
	return json.Marshal(item)
}

func (item *Item) UnmarshalBinary(b []byte) error {
	var raw struct {
		Blob       json.RawMessage `json:"blob"`
		LastAccess time.Time       `json:"last_access"`
		MimeType   string          `json:"mime_type"`
		HitCount   int             `json:"hit_count"`
		Expires    time.Time       `json:"expires"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	*item = Item{
		LastAccess: raw.LastAccess,
		MimeType:   raw.MimeType,
		HitCount:   raw.HitCount,
		Expires:    raw.Expires,
	}
	if len(raw.Blob) == 0 {
		return nil
	}
	if raw.Blob[0] == '"' {
		return json.Unmarshal(raw.Blob, &item.Blob)
	}
	item.Blob = bytes.Clone(raw.Blob)
	return nil
}

// Accessed pushes LastAccess forward with an exponential backoff on hits.
func (item *Item) Accessed() {
	backoff := int64(min(math.Pow(2, float64(item.HitCount-1)), 24*time.Hour.Seconds()))
	item.LastAccess = time.Now().Add(time.Duration(backoff) * time.Second)
	item.HitCount += 1
}

func (item *Item) expired(now time.Time) bool {
	return !item.Expires.IsZero() && now.After(item.Expires)
}

// Key hashes parts into a namespaced key. Parts are separated so that
// ("ab", "c") and ("a", "bc") differ.
func Key(namespace string, parts ...string) string {
	h := xxhash.New()
	for _, part := range parts {
		_, _ = h.WriteString(part)
		_, _ = h.Write([]byte{0})
	}
	return fmt.Sprintf("%s:%016x", strings.TrimSuffix(namespace, ":"), h.Sum64())
}
