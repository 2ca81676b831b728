package game

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	maxNameLength    = 20
	maxCaptionLength = 120
)

var joinCodePattern = regexp.MustCompile(`^[0-9]{4}$`)

// ValidJoinCode reports whether code is exactly four ASCII digits.
func ValidJoinCode(code string) bool {
	return joinCodePattern.MatchString(code)
}

func validateName(name string) (string, error) {
	trimmed := normalizeText(name)
	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxNameLength || !isPrintable(trimmed) {
		return "", ErrInvalidName
	}
	return trimmed, nil
}

// normalizeCaptions returns exactly required captions, padding with blanks.
func normalizeCaptions(captions []string, required int) ([]string, error) {
	if len(captions) > required {
		return nil, ErrTooManyCaptions
	}
	out := make([]string, required)
	for i, caption := range captions {
		text := normalizeText(caption)
		if utf8.RuneCountInString(text) > maxCaptionLength {
			return nil, ErrCaptionTooLong
		}
		out[i] = text
	}
	return out, nil
}

// IsEligible reports whether at least half (rounded up) of a submission's
// caption fields are non-blank.
func IsEligible(sub *Submission, required int) bool {
	if sub == nil {
		return false
	}
	filled := 0
	for _, caption := range sub.Captions {
		if strings.TrimSpace(caption) != "" {
			filled++
		}
	}
	return filled >= (required+1)/2
}

func normalizeText(text string) string {
	return strings.Join(strings.Fields(text), " ")
}

func isPrintable(text string) bool {
	for _, r := range text {
		if !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
