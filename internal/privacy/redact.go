// Package privacy keeps credentials in source references out of logs and output.
package privacy

import (
	"net/url"
	"regexp"
	"strings"
)

// Redacted replaces credential values.
const Redacted = "[REDACTED]"

// keyValueSecrets matches credentials in keyword/value connection strings
// ("host=db user=app password=hunter2") and query parameters.
var keyValueSecrets = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(password|passwd|pwd)=[^\s&]+`),
	regexp.MustCompile(`(?i)\b(sslpassword|sslkey)=[^\s&]+`),
	regexp.MustCompile(`(?i)\b(api[_-]?key|access[_-]?token|auth[_-]?token)=[^\s&]+`),
}

// RedactReference returns ref with the password of URL userinfo and any
// credential parameters replaced by Redacted. Plain paths are returned unchanged.
func RedactReference(ref string) string {
	if ref == "" {
		return ref
	}

	result := ref
	if strings.Contains(ref, "://") {
		if u, err := url.Parse(ref); err == nil && u.User != nil {
			if _, ok := u.User.Password(); ok {
				// url.Redacted masks the password as "xxxxx".
				result = strings.Replace(u.Redacted(), ":xxxxx@", ":"+Redacted+"@", 1)
			}
		}
	}

	for _, pattern := range keyValueSecrets {
		result = pattern.ReplaceAllStringFunc(result, func(match string) string {
			idx := strings.Index(match, "=")
			return match[:idx+1] + Redacted
		})
	}
	return result
}
