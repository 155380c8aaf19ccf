package strutil

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Supported HashString algorithms
const (
	AlgSHA1   = "sha1"
	AlgSHA224 = "sha224"
	AlgSHA256 = "sha256"
	AlgSHA384 = "sha384"
	AlgSHA512 = "sha512"
	AlgMD5    = "md5"
	AlgXXH64  = "xxh64"
)

var (
	// hex digests of 32-40, 52-60 or 92-100 characters
	hashPattern = regexp.MustCompile(`^(?:[a-fA-F\d]{32,40})$|^(?:[a-fA-F\d]{52,60})$|^(?:[a-fA-F\d]{92,100})$`)
	macPattern  = regexp.MustCompile(`^([0-9a-f]{2})([:-][0-9a-f]{2}){5}$`)
)

var hashers = map[string]func() hash.Hash{
	AlgSHA1:   sha1.New,
	AlgSHA224: sha256.New224,
	AlgSHA256: sha256.New,
	AlgSHA384: sha512.New384,
	AlgSHA512: sha512.New,
	AlgMD5:    md5.New,
	AlgXXH64:  func() hash.Hash { return xxhash.New() },
}

// HashString returns the hex digest of value. alg defaults to sha224.
func HashString(value, alg string) (string, error) {
	if alg == "" {
		alg = AlgSHA224
	}
	newHash, ok := hashers[strings.ToLower(alg)]
	if !ok {
		return "", fmt.Errorf("unsupported hash algorithm %q", alg)
	}
	h := newHash()
	h.Write([]byte(value))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// IsHashString reports whether value looks like a hex digest.
func IsHashString(value string) bool {
	return hashPattern.MatchString(value)
}

// IsValidIP reports whether value is an IPv4 or IPv6 address.
func IsValidIP(value string) bool {
	return net.ParseIP(value) != nil
}

// IsValidMAC reports whether value is a 6-octet MAC address separated by ':' or '-'.
func IsValidMAC(value string) bool {
	return macPattern.MatchString(strings.ToLower(value))
}

// IsNumber reports whether value parses as an integer, float or complex number.
func IsNumber(value string) bool {
	value = strings.TrimSpace(value)
	if value == "" {
		return false
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return true
	}
	_, err := strconv.ParseComplex(value, 128)
	return err == nil
}
