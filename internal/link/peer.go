package link

import (
	"fmt"
	"strings"
)

// ParsePeer validates a Bluetooth address of the form XX:XX:XX:XX:XX:XX
// and returns it upper-cased.
func ParsePeer(s string) (string, error) {
	s = strings.TrimSpace(s)
	if len(s) != 17 {
		return "", fmt.Errorf("%w: %q", ErrInvalidPeer, s)
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if i%3 == 2 {
			if c != ':' {
				return "", fmt.Errorf("%w: %q", ErrInvalidPeer, s)
			}
			continue
		}
		if !isHex(c) {
			return "", fmt.Errorf("%w: %q", ErrInvalidPeer, s)
		}
	}
	return strings.ToUpper(s), nil
}

func isHex(c byte) bool {
	return ('0' <= c && c <= '9') || ('a' <= c && c <= 'f') || ('A' <= c && c <= 'F')
}
