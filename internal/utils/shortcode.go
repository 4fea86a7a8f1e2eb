// Package utils contains small shared helpers with no domain knowledge.
package utils

import (
	"crypto/rand"
	"strconv"
)

// codeAlphabet matches the original request-code alphabet: digits and
// uppercase letters only, so codes are easy to read aloud.
const codeAlphabet = "1234567890ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// CodeLength is the fixed length of a service request short code.
const CodeLength = 8

// ShortCode returns a random fixed-length code over codeAlphabet using
// crypto/rand. Collisions are possible (36^8 space) and are handled by the
// caller retrying on a unique-index violation.
func ShortCode() string {
	buf := make([]byte, CodeLength)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms.
		panic("shortcode: " + err.Error())
	}
	for i, b := range buf {
		buf[i] = codeAlphabet[int(b)%len(codeAlphabet)]
	}
	return string(buf)
}

// AtoiDefault parses s as an int, returning def when s is empty or invalid.
func AtoiDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return def
}
