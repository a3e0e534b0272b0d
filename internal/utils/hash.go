package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"sync"
)

// BodySigner signs request bodies with HMAC-SHA256 so the backend can reject
// uploads altered in transit. It is safe for concurrent use.
type BodySigner struct {
	pool sync.Pool
}

// NewBodySigner returns nil for an empty key; a nil signer signs nothing.
func NewBodySigner(key string) *BodySigner {
	if key == "" {
		return nil
	}
	s := &BodySigner{}
	s.pool.New = func() any { return hmac.New(sha256.New, []byte(key)) }
	return s
}

// Sum returns the raw MAC of body.
func (s *BodySigner) Sum(body []byte) []byte {
	if s == nil {
		return nil
	}
	mac := s.pool.Get().(hash.Hash)
	defer s.pool.Put(mac)

	mac.Reset()
	mac.Write(body)
	return mac.Sum(nil)
}

// Sign returns the hex MAC of body, or "" for a nil signer.
func (s *BodySigner) Sign(body []byte) string {
	if s == nil {
		return ""
	}
	return hex.EncodeToString(s.Sum(body))
}

// HashString is the one-shot form of Sign.
func HashString(data string, key string) string {
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(data))
	return hex.EncodeToString(mac.Sum(nil))
}
