// Package canon reduces flag sets to a canonical string and a content hash.
//
// The canonical string is the whitespace-separated tokens sorted bytewise
// and joined by single spaces. Two flag sets share a canonical string, and
// therefore a hash, exactly when they hold the same multiset of tokens.
package canon

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"slices"
	"strings"
)

// String canonicalizes a raw flag string.
func String(raw string) string {
	tokens := strings.Fields(raw)
	slices.Sort(tokens)
	return strings.Join(tokens, " ")
}

// Join canonicalizes a token sequence. Tokens are joined before splitting
// so a sequence and the header line written from it always agree.
func Join(tokens []string) string {
	return String(strings.Join(tokens, " "))
}

// Scheme names the digest used for content hashes.
type Scheme string

const (
	SHA256 Scheme = "sha256"
	// MD5 matches output sets named by older experiment scripts.
	MD5 Scheme = "md5"
)

// DefaultScheme is used when a study does not name one.
const DefaultScheme = SHA256

// ParseScheme validates a scheme name. The empty string selects
// DefaultScheme.
func ParseScheme(name string) (Scheme, error) {
	switch s := Scheme(strings.ToLower(strings.TrimSpace(name))); s {
	case "":
		return DefaultScheme, nil
	case SHA256, MD5:
		return s, nil
	default:
		return "", fmt.Errorf("unknown hash scheme %q (want %q or %q)", name, SHA256, MD5)
	}
}

func (s Scheme) newHash() hash.Hash {
	switch s {
	case MD5:
		return md5.New()
	default:
		return sha256.New()
	}
}

// Sum returns the hex digest of an already canonical string.
func (s Scheme) Sum(canonical string) string {
	h := s.newHash()
	h.Write([]byte(canonical))
	return hex.EncodeToString(h.Sum(nil))
}

// Hash canonicalizes raw and returns its hex digest.
func (s Scheme) Hash(raw string) string { return s.Sum(String(raw)) }

// HashTokens canonicalizes tokens and returns their hex digest.
func (s Scheme) HashTokens(tokens []string) string { return s.Sum(Join(tokens)) }

// HexLen is the length of the scheme's hex digest.
func (s Scheme) HexLen() int { return 2 * s.newHash().Size() }
