// assets/embed.go
//
// Embedded defaults shipped with the binary:
//   - letter_sets.txt: the fallback letter-set table used by the words package.
//   - sql/*.sql:       ordered schema migrations applied by the store package.

package assets

import (
	"bufio"
	"embed"
	"io/fs"
	"strings"
)

//go:embed letter_sets.txt sql/*.sql
var FS embed.FS

func readLines(name string) ([]string, error) {
	f, err := FS.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(sc.Text())
		if s == "" || strings.HasPrefix(s, "#") {
			continue
		}
		out = append(out, strings.ToUpper(s))
	}
	return out, sc.Err()
}

// LetterSets returns the embedded letter-set table (uppercased, comments skipped).
func LetterSets() ([]string, error) {
	return readLines("letter_sets.txt")
}

// Migrations returns the embedded migration files rooted at "sql".
func Migrations() (fs.FS, error) {
	return fs.Sub(FS, "sql")
}
