package schedule

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Folder is where a speaker uploads their recording, and the Q&A mode they chose.
type Folder struct {
	ID string
	QA string
}

// LoadFolders reads the speaker folder CSV at path.
func LoadFolders(path string) (map[string]Folder, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open speaker folders: %w", err)
	}
	defer f.Close()
	return ParseFolders(f)
}

// ParseFolders reads rows of speaker code, folder id and Q&A mode after a header row.
// Later rows for the same speaker win.
func ParseFolders(r io.Reader) (map[string]Folder, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.FieldsPerRecord = -1

	if _, err := cr.Read(); err != nil {
		return nil, fmt.Errorf("read speaker folders header: %w", err)
	}

	out := map[string]Folder{}
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("speaker folders csv line %d: %w", line, err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("speaker folders csv line %d: want speaker code and folder id", line)
		}
		code := strings.TrimSpace(rec[0])
		if code == "" {
			continue
		}
		f := Folder{ID: strings.TrimSpace(rec[1])}
		if len(rec) > 2 {
			f.QA = strings.TrimSpace(rec[2])
		}
		out[code] = f
	}
	return out, nil
}
