package transport

import "strings"

// EncodeUTF8 returns the UTF-8 bytes of s. Invalid byte sequences are
// replaced with U+FFFD so the result is always valid UTF-8.
func EncodeUTF8(s string) []byte {
	return []byte(strings.ToValidUTF8(s, "\uFFFD"))
}
