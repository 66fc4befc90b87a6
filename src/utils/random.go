package utils

import (
	"crypto/rand"
)

// GenerateCode returns an n-character uppercase alphanumeric code for
// externally displayable order references. Ambiguous characters are
// left out of the charset.
func GenerateCode(n int) string {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

	code := make([]byte, n)
	rand.Read(code)
	for i := 0; i < n; i++ {
		code[i] = charset[int(code[i])%len(charset)]
	}
	return string(code)
}
