// Package protocol decodes the "$IGX...*CS" text frames sent by IGX trackers.
package protocol

import (
	"fmt"
	"strings"
)

// Checksum XOR-folds every byte of payload and returns it as two uppercase hex digits.
func Checksum(payload []byte) string {
	var cs byte
	for _, b := range payload {
		cs ^= b
	}
	return fmt.Sprintf("%02X", cs)
}

// VerifyChecksum reports whether claimed matches the checksum of payload, ignoring case.
func VerifyChecksum(payload []byte, claimed string) bool {
	return strings.EqualFold(Checksum(payload), claimed)
}

// BuildFrame wraps payload (without the leading '$') into a complete frame.
func BuildFrame(payload string) string {
	return "$" + payload + "*" + Checksum([]byte(payload))
}
