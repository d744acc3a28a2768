// internal/words/words.go
//
// Letter-set table for Word Duel matches.
//
// Responsibilities:
//   - Load the table of letter sets from an operator-provided file or fall back
//     to the embedded default (assets/letter_sets.txt).
//   - Map a match identifier onto one entry of the table (LettersForMatch).
//
// Table rules:
//   • One set per line, blank lines and "#" comments ignored.
//   • Sets are normalized to uppercase and must be alphabetic, 3+ letters.
//   • The lookup is a pure modulo index, so both replicas of a match agree
//     on the letters as long as they run with the same table.
//
// Initialization (Init):
//   1. If path is non-empty, read the table from that file.
//   2. Otherwise use the embedded default.
//   Init runs once; later calls return the first result.

package words

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/robalobadob/wordduel/assets"
)

// fallbackSet is used when the table was never initialized or is empty.
const fallbackSet = "ATRESN"

var (
	initOnce   sync.Once
	letterSets []string
	initialErr error
)

// Init loads the letter-set table exactly once.
// Returns an error if the resulting table is empty.
func Init(path string) error {
	initOnce.Do(func() {
		var list []string
		var err error
		if path != "" {
			list, err = readSetFile(path)
		} else {
			var raw []string
			raw, err = assets.LetterSets()
			list = normalize(raw)
		}
		if err != nil {
			initialErr = fmt.Errorf("words: load letter sets: %w", err)
			return
		}
		if len(list) == 0 {
			initialErr = errors.New("words: letter-set table is empty")
			return
		}
		letterSets = list
	})
	return initialErr
}

// readSetFile loads one set per line from a file.
func readSetFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var raw []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw = append(raw, line)
	}
	return normalize(raw), sc.Err()
}

// normalize uppercases entries and drops anything that is not a usable set.
func normalize(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = strings.ToUpper(strings.TrimSpace(s))
		if utf8.RuneCountInString(s) >= 3 && isAlpha(s) {
			out = append(out, s)
		}
	}
	return out
}

// isAlpha reports whether s consists only of letters.
func isAlpha(s string) bool {
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

// LettersForMatch returns the letter set for a match identifier.
func LettersForMatch(matchID uint64) string {
	return pick(Sets(), matchID)
}

func pick(sets []string, matchID uint64) string {
	if len(sets) == 0 {
		return fallbackSet
	}
	return sets[matchID%uint64(len(sets))]
}

// Sets returns the loaded table, initializing from the embedded default if
// Init has not run yet.
func Sets() []string {
	_ = Init("")
	return letterSets
}
