// Package classify derives priority and sender category for decoded pages
// and decides which capcodes are admitted and how they are labelled.
package classify

import (
	"regexp"
	"strings"

	"github.com/dmitryelj/RPi-P2000Receiver/internal/models"
)

// priorityRules are evaluated in order against the first one or two words
// of a message; the first match wins.
var priorityRules = []struct {
	priority models.Priority
	pattern  *regexp.Regexp
}{
	{models.Priority1, regexp.MustCompile(`(?i)\b(A\s?1|PRIO\s?1)\b|^P\s?1\b`)},
	{models.Priority2, regexp.MustCompile(`(?i)\b(A\s?2|PRIO\s?2)\b|^P\s?2\b`)},
	{models.Priority3, regexp.MustCompile(`(?i)^B\s?[123]\b|\bPRIO\s?3\b|^P\s?3\b`)},
	{models.Priority4, regexp.MustCompile(`(?i)^PRIO\s?4\b|^P\s?4\b`)},
}

// Priority returns the urgency class of a message body, or PriorityNone.
func Priority(body string) models.Priority {
	words := strings.Fields(body)
	if len(words) > 2 {
		words = words[:2]
	}
	lead := strings.Join(words, " ")
	if lead == "" {
		return models.PriorityNone
	}

	for _, rule := range priorityRules {
		if rule.pattern.MatchString(lead) {
			return rule.priority
		}
	}
	return models.PriorityNone
}
