package topic

import (
	"strings"
	"unicode"

	"github.com/matheuskafuri/hrnews/internal/config"
)

// Tag is a short classification label from the closed HR tag set.
type Tag string

const (
	Leadership   Tag = "Leadership"
	Compliance   Tag = "Compliance"
	Talent       Tag = "Talent"
	Compensation Tag = "Compensation"
	Culture      Tag = "Culture"
	General      Tag = "General"
)

// AllTags returns the valid assignable tags in canonical order.
// General is a fallback only and never assigned by the classifier.
func AllTags() []Tag {
	return []Tag{Leadership, Compliance, Talent, Compensation, Culture}
}

// AllTagNames returns AllTags as plain strings.
func AllTagNames() []string {
	tags := AllTags()
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = string(t)
	}
	return names
}

// IsValidTag reports whether s is one of the assignable tags.
func IsValidTag(s string) bool {
	for _, t := range AllTags() {
		if string(t) == s {
			return true
		}
	}
	return false
}

var defaultTags = map[string]Tag{
	"hr strategy and leadership":          Leadership,
	"workforce compliance and regulation": Compliance,
	"talent acquisition and labor trends": Talent,
	"compensation, benefits and rewards":  Compensation,
	"people development and culture":      Culture,
}

// DefaultTag maps a topic name to its fallback tag, used when the
// classifier fails or returns something outside the closed set.
func DefaultTag(topicName string) Tag {
	if t, ok := defaultTags[strings.ToLower(topicName)]; ok {
		return t
	}
	return General
}

// Sanitize strips characters outside letters, digits, whitespace and basic
// punctuation (.,!?) and collapses runs of whitespace to single spaces.
func Sanitize(text string) string {
	var b strings.Builder
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		case r == '.' || r == ',' || r == '!' || r == '?':
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Resolve matches free-text input to a registered topic by case-insensitive
// substring containment, first match in registry order. Matching is
// deliberately loose: a short topic name contained in a longer query (or in
// another topic's name) wins if it comes first in the registry.
func Resolve(query string, topics []config.Topic) (config.Topic, bool) {
	q := strings.ToLower(query)
	for _, t := range topics {
		if strings.Contains(q, strings.ToLower(t.Name)) {
			return t, true
		}
	}
	return config.Topic{}, false
}
