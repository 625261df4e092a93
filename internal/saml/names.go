package saml

import (
	"encoding/hex"
	"io"
	"strings"
	"unicode/utf8"
)

// uniqueProviderName appends a random hex suffix to base. The suffix gets
// roughly half the unused length, never fewer than 4 characters, and base is
// trimmed so the result stays under MaxProviderNameLen characters.
func uniqueProviderName(base string, random io.Reader) (string, error) {
	n := utf8.RuneCountInString(base)
	hexLen := 2 * ((MaxProviderNameLen - n) / 4)
	if hexLen < 4 {
		hexLen = 4
	}
	if keep := MaxProviderNameLen - 1 - 1 - hexLen; n > keep {
		base = strings.TrimRight(string([]rune(base)[:keep]), "-")
	}

	buf := make([]byte, hexLen/2)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", err
	}
	return base + "-" + hex.EncodeToString(buf), nil
}
