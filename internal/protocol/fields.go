package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// IOFlagNames lists the named IO bits, least-significant first.
// Bits 8-15 are reserved and not surfaced.
var IOFlagNames = [8]string{
	"ignition_on",
	"external_power",
	"door_open",
	"panic_button",
	"towing",
	"geofence_active",
	"jamming_detected",
	"impact",
}

// ParseIOBitmask decodes the hex IO field into the named boolean flags.
// Every name in IOFlagNames is present in the result.
func ParseIOBitmask(ioHex string) (map[string]bool, error) {
	bits, err := strconv.ParseUint(ioHex, 16, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid IO bitmask %q", ioHex)
	}
	flags := make(map[string]bool, len(IOFlagNames))
	for i, name := range IOFlagNames {
		flags[name] = bits&(1<<uint(i)) != 0
	}
	return flags, nil
}

// ParseExtensions parses "k=v;k2=v2". Entries without '=' are skipped and
// later keys overwrite earlier ones.
func ParseExtensions(ext string) map[string]string {
	out := make(map[string]string)
	if ext == "" {
		return out
	}
	for _, part := range strings.Split(ext, ";") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}
