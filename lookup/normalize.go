// Package lookup builds the resource-to-service join index.
package lookup

import "strings"

const providersMarker = "/PROVIDERS/"

// Normalize canonicalizes a resource identifier for join-key equality.
// Identifiers differing only in case or surrounding whitespace collide.
func Normalize(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// MeterCategory pulls the two-segment category token out of an
// Azure-style resource path:
//
//	/subscriptions/x/providers/Microsoft.Compute/virtualMachines/vm1
//	-> Microsoft.Compute/virtualMachines
//
// The marker match is case-insensitive; the returned segments keep
// their original casing. Malformed input yields "".
func MeterCategory(path string) string {
	idx := indexMarker(path)
	if idx == -1 {
		return ""
	}

	rest := path[idx+len(providersMarker):]
	parts := strings.Split(rest, "/")
	if len(parts) >= 2 {
		return parts[0] + "/" + parts[1]
	}
	return parts[0]
}

// indexMarker finds providersMarker in path, folding ASCII case byte by
// byte. string.ToUpper is not byte-length-preserving for some runes, so
// an offset found in an uppercased copy cannot be used to slice path.
func indexMarker(path string) int {
	for i := 0; i+len(providersMarker) <= len(path); i++ {
		j := 0
		for j < len(providersMarker) && upperASCII(path[i+j]) == providersMarker[j] {
			j++
		}
		if j == len(providersMarker) {
			return i
		}
	}
	return -1
}

func upperASCII(b byte) byte {
	if 'a' <= b && b <= 'z' {
		return b - 'a' + 'A'
	}
	return b
}
