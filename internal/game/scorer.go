// internal/game/scorer.go
//
// Word scoring for a duel round.
//
// A word is valid against a letter set when, after trimming and uppercasing:
//   - it has at least MinWordLength letters,
//   - every character is a letter,
//   - no letter is used more often than it appears in the set.
//
// The score of a valid word is its length; an invalid word scores 0. Both
// functions are pure so host and guest always agree on a round's points.

package game

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// NormalizeWord trims and uppercases a submitted word.
func NormalizeWord(word string) string {
	return strings.ToUpper(strings.TrimSpace(word))
}

// ValidateWord reports whether word can be built from letters.
func ValidateWord(letters, word string) bool {
	word = NormalizeWord(word)
	if utf8.RuneCountInString(word) < MinWordLength {
		return false
	}

	// Available multiset.
	counts := make(map[rune]int, len(letters))
	for _, r := range strings.ToUpper(letters) {
		if unicode.IsLetter(r) {
			counts[r]++
		}
	}

	// Consume one tile per character.
	for _, r := range word {
		if !unicode.IsLetter(r) {
			return false
		}
		if counts[r] == 0 {
			return false
		}
		counts[r]--
	}
	return true
}

// ScoreWord returns the points for word: its length if valid, else 0.
func ScoreWord(letters, word string) uint32 {
	if !ValidateWord(letters, word) {
		return 0
	}
	return uint32(utf8.RuneCountInString(NormalizeWord(word)))
}
