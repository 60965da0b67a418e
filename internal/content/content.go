package content

import (
	"errors"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policy = bluemonday.StrictPolicy()

	channelIDRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
)

// Sanitize strips all HTML from the input string. Chat text is plain
// text; anything markup-like is removed before the message is stored or
// broadcast.
func Sanitize(input string) string {
	return strings.TrimSpace(policy.Sanitize(input))
}

// ValidateChannelID checks that the channel id is non-empty and contains
// only allowed characters (alphanumeric, dot, dash, underscore).
func ValidateChannelID(id string) error {
	if id == "" {
		return errors.New("channel id cannot be empty")
	}
	if !channelIDRegex.MatchString(id) {
		return errors.New("channel id contains invalid characters (allowed: alphanumeric, dot, dash, underscore)")
	}
	return nil
}
