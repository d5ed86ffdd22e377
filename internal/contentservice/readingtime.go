package contentservice

import "strings"

const wordsPerMinute = 200

// ReadingTime estimates minutes to read text at 200 words per minute, rounded
// up. It never returns less than one.
func ReadingTime(text string) int {
	words := len(strings.Fields(text))
	minutes := (words + wordsPerMinute - 1) / wordsPerMinute
	if minutes < 1 {
		return 1
	}
	return minutes
}
