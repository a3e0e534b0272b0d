package utils

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// LocalIDPrefix marks identifiers generated on the device.
const LocalIDPrefix = "offline_"

const localIDSuffixLen = 9

// LocalIDGenerator generates identifiers for records created offline:
// offline_<unix-nanos>_<random suffix>. The time component orders ids of one
// device, the suffix keeps ids of concurrent sessions apart.
type LocalIDGenerator struct {
	now    func() time.Time
	random func() string
}

// NewLocalIDGenerator returns a generator using the wall clock and UUIDv4
// randomness.
func NewLocalIDGenerator() *LocalIDGenerator {
	return &LocalIDGenerator{
		now:    time.Now,
		random: uuid.NewString,
	}
}

// WithClock returns a copy of g reading time from now.
func (g *LocalIDGenerator) WithClock(now func() time.Time) *LocalIDGenerator {
	c := *g
	c.now = now
	return &c
}

// Generate returns a new local identifier.
func (g *LocalIDGenerator) Generate() string {
	suffix := strings.ReplaceAll(g.random(), "-", "")
	if len(suffix) > localIDSuffixLen {
		suffix = suffix[:localIDSuffixLen]
	}
	return LocalIDPrefix + strconv.FormatInt(g.now().UnixNano(), 10) + "_" + suffix
}

// IsLocalID reports whether id was generated on the device.
func IsLocalID(id string) bool {
	return strings.HasPrefix(id, LocalIDPrefix)
}

// UUIDGenerator generates time-ordered UUIDs, falling back to random ones.
type UUIDGenerator struct {
}

func NewUUIDGenerator() *UUIDGenerator {
	return &UUIDGenerator{}
}

func (g *UUIDGenerator) Generate() string {
	v7, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}

	return v7.String()
}
