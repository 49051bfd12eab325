package conversation

import "strings"

// TruncateAtSentence cuts text at the last sentence boundary at or under
// maxLen so synthesized speech stays short. It never cuts mid-word: when
// no sentence boundary fits, it backs off to the last word boundary.
func TruncateAtSentence(text string, maxLen int) string {
	if maxLen <= 0 || len(text) <= maxLen {
		return text
	}

	head := text[:maxLen]
	if cut := lastSentenceEnd(head); cut > 0 {
		return strings.TrimSpace(head[:cut])
	}
	if space := strings.LastIndexByte(head, ' '); space > 0 {
		return strings.TrimSpace(head[:space]) + "."
	}
	return head
}

func lastSentenceEnd(s string) int {
	end := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '.', '!', '?':
			end = i + 1
		}
	}
	return end
}
