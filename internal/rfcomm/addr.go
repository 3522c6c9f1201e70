// Package rfcomm is the fallback socket strategy for link: a raw
// AF_BLUETOOTH/BTPROTO_RFCOMM stream socket connected straight to a channel
// number, for controllers or BlueZ setups that refuse the profile path.
package rfcomm

import (
	"fmt"
	"strconv"
	"strings"
)

// DefaultChannel is tried when no channel is configured.
const DefaultChannel uint8 = 1

// ParseAddr converts "XX:XX:XX:XX:XX:XX" into the little-endian byte order
// of bdaddr_t.
func ParseAddr(s string) ([6]uint8, error) {
	var addr [6]uint8
	parts := strings.Split(s, ":")
	if len(parts) != 6 {
		return addr, fmt.Errorf("rfcomm: bad address %q", s)
	}
	for i, p := range parts {
		if len(p) != 2 {
			return addr, fmt.Errorf("rfcomm: bad address %q", s)
		}
		b, err := strconv.ParseUint(p, 16, 8)
		if err != nil {
			return addr, fmt.Errorf("rfcomm: bad address %q: %w", s, err)
		}
		addr[5-i] = uint8(b)
	}
	return addr, nil
}
