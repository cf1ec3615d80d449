package device

import "strings"

// Slugify canonicalizes a unit id: lowercase, alphanumeric runs joined
// by single dashes, everything else stripped. The slug form keys the
// registry, the AES key table and the message queue.
func Slugify(unitID string) string {
	var b strings.Builder
	b.Grow(len(unitID))

	lastDash := true // suppress leading dashes
	for _, r := range strings.ToLower(unitID) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}

	return strings.TrimRight(b.String(), "-")
}
