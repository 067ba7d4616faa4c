package storage

import (
	"strings"
	"unicode"
)

// SegmentForOperation turns an operation name into a directory name.
// Anything outside [A-Za-z0-9_-] becomes '_'; an empty name maps to
// "unknown".
func SegmentForOperation(operation string) string {
	op := strings.TrimSpace(operation)
	if op == "" {
		return "unknown"
	}
	var b strings.Builder
	for _, r := range op {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)), r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	seg := strings.Trim(b.String(), "_")
	if seg == "" {
		return "unknown"
	}
	return seg
}
