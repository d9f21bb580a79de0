package game

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// OptionsPerQuestion is the number of choices offered for each logo.
const OptionsPerQuestion = 3

// Chapter is one guessable chapter. File is the anonymised logo image shown with the
// question.
type Chapter struct {
	Name string
	File string
}

// RevealFile is the image shown after a correct guess: the chapter name lowercased,
// without "pyladies", spaces replaced by underscores.
func (c Chapter) RevealFile() string {
	name := strings.ReplaceAll(strings.ToLower(c.Name), "pyladies", "")
	return strings.ReplaceAll(name, " ", "_") + ".png"
}

// LoadChapters reads the chapter catalog CSV at path.
func LoadChapters(path string) ([]Chapter, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open chapters: %w", err)
	}
	defer f.Close()
	return ParseChapters(f)
}

// ParseChapters reads a CSV whose header names the columns Name and File in any order.
// Duplicate names keep the first row. At least OptionsPerQuestion chapters are required.
func ParseChapters(r io.Reader) ([]Chapter, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read chapters header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, required := range []string{"name", "file"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("chapters csv: missing column %q", required)
		}
	}

	var out []Chapter
	seen := map[string]bool{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("chapters csv line %d: %w", line, err)
		}
		c := Chapter{
			Name: strings.TrimSpace(rec[cols["name"]]),
			File: strings.TrimSpace(rec[cols["file"]]),
		}
		if c.Name == "" || seen[c.Name] {
			continue
		}
		seen[c.Name] = true
		out = append(out, c)
	}

	if len(out) < OptionsPerQuestion {
		return nil, fmt.Errorf("chapters csv: need at least %d chapters, got %d", OptionsPerQuestion, len(out))
	}
	return out, nil
}
