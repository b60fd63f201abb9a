package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// maxEntityDecodes bounds how many layers of entity encoding are peeled.
const maxEntityDecodes = 4

var (
	strictPolicy = bluemonday.StrictPolicy()
	angleRemover = strings.NewReplacer("<", "", ">", "")
)

// SanitizeName strips any markup from a display name and trims it. Entity
// encoded markup is decoded before the policy runs, so "&lt;b&gt;" is
// removed like "<b>". The result never contains angle brackets.
func SanitizeName(name string) string {
	for i := 0; i < maxEntityDecodes; i++ {
		decoded := html.UnescapeString(name)
		if decoded == name {
			break
		}
		name = decoded
	}
	clean := html.UnescapeString(strictPolicy.Sanitize(name))
	return strings.TrimSpace(angleRemover.Replace(clean))
}

// NormalizeEmail gives the form emails are stored and looked up by.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
