package model

import "strings"

var textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// EscapeText escapes text for an HTML element body. Quotes are left alone.
func EscapeText(s string) string {
	return textEscaper.Replace(s)
}
