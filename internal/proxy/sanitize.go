package proxy

import "strings"

var headerBreakers = strings.NewReplacer("\r", "", "\n", "", `"`, "")

// SanitizeFilename makes a user or upstream supplied name safe to put in a
// Content-Disposition header. Anything outside [A-Za-z0-9._-] becomes '_'.
func SanitizeFilename(name string) string {
	name = headerBreakers.Replace(name)

	var b strings.Builder
	b.Grow(len(name))
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}

	out := b.String()
	if out == "" || strings.Trim(out, ".") == "" {
		return "download"
	}
	return out
}
