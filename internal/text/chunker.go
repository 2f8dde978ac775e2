package text

import "strings"

// DefaultMaxChars is the synthesis API's per-request input ceiling.
const DefaultMaxChars = 249

var sentenceEnds = []string{". ", "! ", "? "}

// Split cuts narration into chunks of at most maxChars runes. Each cut prefers
// the last sentence end in the back half of the window, then the last space in
// the back half, then a hard cut at maxChars. Chunks are trimmed and never empty.
func Split(text string, maxChars int) []string {
	if maxChars <= 0 {
		maxChars = DefaultMaxChars
	}
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	if len(runes) <= maxChars {
		return []string{text}
	}

	var chunks []string
	emit := func(r []rune) {
		if s := strings.TrimSpace(string(r)); s != "" {
			chunks = append(chunks, s)
		}
	}

	half := maxChars / 2
	for len(runes) > maxChars {
		window := string(runes[:maxChars])

		if i := lastSentenceEnd(window); i > half {
			emit(runes[:i+1])
			runes = runes[min(i+2, len(runes)):]
			continue
		}

		if i := lastRuneIndex(window, ' '); i > half {
			emit(runes[:i])
			runes = runes[i+1:]
			continue
		}

		emit(runes[:maxChars])
		runes = runes[maxChars:]
	}
	emit(runes)

	return chunks
}

// lastSentenceEnd returns the rune index of the punctuation mark of the last
// sentence terminator in window, or -1.
func lastSentenceEnd(window string) int {
	best := -1
	for _, end := range sentenceEnds {
		if i := strings.LastIndex(window, end); i >= 0 {
			if ri := runeIndex(window, i); ri > best {
				best = ri
			}
		}
	}
	return best
}

func lastRuneIndex(window string, r rune) int {
	i := strings.LastIndexByte(window, byte(r))
	if i < 0 {
		return -1
	}
	return runeIndex(window, i)
}

func runeIndex(s string, byteIdx int) int {
	return len([]rune(s[:byteIdx]))
}
