package intelligence

import (
	"strings"

	"handyfix/services/apperror"
)

var placeholderKeys = []string{
	"your_api_key",
	"your-api-key",
	"your_gemini_api_key",
	"changeme",
	"replace_me",
	"xxx",
}

// ValidateAPIKey rejects empty and placeholder credentials before any network call.
func ValidateAPIKey(key string) error {
	k := strings.TrimSpace(key)
	if k == "" {
		return apperror.Configuration("API key is missing")
	}
	lower := strings.ToLower(k)
	for _, p := range placeholderKeys {
		if lower == p {
			return apperror.Configuration("API key is a placeholder")
		}
	}
	if strings.HasPrefix(lower, "your") || (strings.HasPrefix(k, "<") && strings.HasSuffix(k, ">")) {
		return apperror.Configuration("API key is a placeholder")
	}
	return nil
}
