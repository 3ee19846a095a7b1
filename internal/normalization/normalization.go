package normalization

import (
  "strings"
)

// ParseInputString trims surrounding whitespace and collapses the value to
// lower case. All user-supplied identifiers (emails, language codes) go
// through here before touching the database.
func ParseInputString(s string) string {
  return strings.ToLower(strings.TrimSpace(s))
}

// TrimInputString trims whitespace only, preserving case. Used for free-form
// text such as chat titles.
func TrimInputString(s string) string {
  return strings.TrimSpace(s)
}
