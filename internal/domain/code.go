package domain

import (
	"strings"

	"github.com/google/uuid"
)

const (
	CodeLength    = 6
	maxCodeLength = 16
	codeAlphabet  = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// NewCode returns a random principal code of CodeLength uppercase
// alphanumeric characters, drawn uniformly from codeAlphabet.
func NewCode() string {
	code := make([]byte, 0, CodeLength)
	for len(code) < CodeLength {
		id := uuid.New()
		// bytes 6 and 8 carry the version and variant bits
		random := append(append(id[:6:6], id[7]), id[9:]...)
		code = appendCodeChars(code, random)
	}
	return string(code)
}

// appendCodeChars maps random bytes onto codeAlphabet until code is
// CodeLength long. Bytes at or above the largest multiple of the alphabet
// size are rejected so every character is equally likely.
func appendCodeChars(code []byte, random []byte) []byte {
	limit := 256 - 256%len(codeAlphabet)
	for _, b := range random {
		if len(code) == CodeLength {
			break
		}
		if int(b) >= limit {
			continue
		}
		code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
	}
	return code
}

// NormalizeCode upper-cases and trims a code typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func ValidCode(code string) bool {
	if code == "" || len(code) > maxCodeLength {
		return false
	}
	for _, r := range code {
		if !strings.ContainsRune(codeAlphabet, r) {
			return false
		}
	}
	return true
}
