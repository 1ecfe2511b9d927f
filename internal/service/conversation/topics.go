package conversation

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	conv "github.com/virtualhq/agenthq/backend/internal/model/conversation"
)

// topicCandidates caps how many keywords one message may contribute.
const topicCandidates = 5

// minTopicLength filters out short filler words.
const minTopicLength = 4

// mergeTopics unions the message's topic candidates into the running set:
// whitespace-delimited words of at least four runes, lowercased, at most the
// first five per message. The set is kept sorted for deterministic output.
func mergeTopics(c *conv.Context, text string) {
	existing := make(map[string]struct{}, len(c.Topics))
	for _, t := range c.Topics {
		existing[t] = struct{}{}
	}

	taken := 0
	for _, word := range strings.Fields(text) {
		if taken == topicCandidates {
			break
		}
		if utf8.RuneCountInString(word) < minTopicLength {
			continue
		}
		taken++
		word = strings.ToLower(word)
		if _, ok := existing[word]; ok {
			continue
		}
		existing[word] = struct{}{}
		c.Topics = append(c.Topics, word)
	}
	sort.Strings(c.Topics)
}

// summarize produces the cheap heuristic summary regenerated every ten
// messages. Not a model call.
func summarize(topics []string, messageCount int) string {
	if len(topics) == 0 {
		return fmt.Sprintf("%d messages exchanged so far.", messageCount)
	}
	shown := topics
	const maxShown = 8
	if len(shown) > maxShown {
		shown = shown[:maxShown]
	}
	return fmt.Sprintf("%d messages exchanged; recurring topics: %s.", messageCount, strings.Join(shown, ", "))
}
