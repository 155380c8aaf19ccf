package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBearer(t *testing.T) {
	tests := []struct {
		header string
		token  string
		err    bool
	}{
		{"Bearer abc.def.ghi", "abc.def.ghi", false},
		{"bearer abc", "abc", false},
		{"BEARER   abc", "abc", false},
		{"", "", true},
		{"Bearer", "", true},
		{"Basic abc", "", true},
		{"Bearer abc extra", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			token, err := ParseBearer(tt.header)
			if tt.err {
				assert.True(t, errors.Is(err, ErrInvalidHeader))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.token, token)
		})
	}
}

func TestNewCodec(t *testing.T) {
	_, err := NewCodec("", "")
	assert.ErrorContains(t, err, "secret key is empty")

	_, err = NewCodec("secret", "RS256")
	assert.ErrorContains(t, err, "unsupported jwt algorithm")

	c, err := NewCodec("secret", "")
	require.NoError(t, err)
	assert.Equal(t, "HS256", c.method.Alg())
}

func TestCodec_RoundTrip(t *testing.T) {
	c, err := NewCodec("#MY_SeCrEt_KEy", "HS512")
	require.NoError(t, err)

	token, err := c.Encode(jwt.MapClaims{"user": "alice", "exp": time.Now().Add(time.Hour).Unix()})
	require.NoError(t, err)

	claims, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["user"])
}

func TestCodec_Decode_Rejects(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewCodec("secret", "")
	require.NoError(t, err)
	c.now = func() time.Time { return now }

	other, err := NewCodec("other-secret", "")
	require.NoError(t, err)

	sign := func(codec *Codec, claims jwt.MapClaims) string {
		token, err := codec.Encode(claims)
		require.NoError(t, err)
		return token
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(other, jwt.MapClaims{"user": "x"})},
		{"expired", sign(c, jwt.MapClaims{"exp": now.Add(-time.Second).Unix()})},
		{"issued in the future", sign(c, jwt.MapClaims{"iat": now.Add(time.Hour).Unix()})},
		{"malformed exp", sign(c, jwt.MapClaims{"exp": "tomorrow"})},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := c.Decode(tt.token)
			assert.Nil(t, claims)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}
}

func TestCodec_Decode_IgnoresNotBefore(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	c, err := NewCodec("secret", "")
	require.NoError(t, err)
	c.now = func() time.Time { return now }

	token, err := c.Encode(jwt.MapClaims{
		"nbf": now.Add(time.Hour).Unix(),
		"aud": "someone-else",
		"iat": now.Add(-time.Minute).Unix(),
	})
	require.NoError(t, err)

	claims, err := c.Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", claims["aud"])
}

func TestCodec_RejectsOtherAlgorithm(t *testing.T) {
	hs256, err := NewCodec("secret", "HS256")
	require.NoError(t, err)
	hs512, err := NewCodec("secret", "HS512")
	require.NoError(t, err)

	token, err := hs512.Encode(jwt.MapClaims{"user": "x"})
	require.NoError(t, err)

	_, err = hs256.Decode(token)
	assert.True(t, errors.Is(err, ErrInvalidToken))
}
