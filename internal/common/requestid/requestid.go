package requestid

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/valyala/fasthttp"
)

// Header carries the request ID in both directions.
const Header = "X-Request-ID"

const (
	// MaxLength matches the length of a UUID string.
	MaxLength    = 36
	prefixLength = 5
	maxClientLen = MaxLength - prefixLength - 1
)

var (
	invalidChars = regexp.MustCompile(`[^a-zA-Z0-9-]+`)
	hyphenRuns   = regexp.MustCompile(`-+`)
)

// New returns a request ID derived from a client-supplied one. The client
// part is reduced to [a-zA-Z0-9-] and prefixed with 5 random hex characters;
// when nothing usable is left a UUID is returned.
func New(clientID string) string {
	s := invalidChars.ReplaceAllString(strings.ReplaceAll(clientID, " ", "-"), "")
	s = strings.Trim(hyphenRuns.ReplaceAllString(s, "-"), "-")
	if s == "" {
		return uuid.NewString()
	}
	if len(s) > maxClientLen {
		s = s[:maxClientLen]
	}
	return randomPrefix() + "-" + s
}

// FromRequest returns the ID for ctx, generating it from the incoming header
// on first use and echoing it in the response header.
func FromRequest(ctx *fasthttp.RequestCtx) string {
	if id, ok := ctx.UserValue(Header).(string); ok {
		return id
	}
	id := New(string(ctx.Request.Header.Peek(Header)))
	ctx.SetUserValue(Header, id)
	ctx.Response.Header.Set(Header, id)
	return id
}

func randomPrefix() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return uuid.NewString()[:prefixLength]
	}
	return hex.EncodeToString(b)[:prefixLength]
}
