package ledger

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// FileLedger stores one record per line as "key\tRFC3339 timestamp". Lines holding only
// a key are accepted on load. The whole file is read once at open; every Record appends
// and fsyncs before it returns.
type FileLedger struct {
	mu   sync.RWMutex
	path string
	f    *os.File
	size int64
	keys map[string]time.Time
	now  Clock
}

// OpenFile opens or creates the ledger file at path, creating parent directories. A file
// whose last line lacks its newline is terminated before the first append.
func OpenFile(path string) (*FileLedger, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create ledger dir: %w", err)
		}
	}

	keys, err := loadFile(path)
	if err != nil {
		return nil, err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_RDWR, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	size, err := terminate(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open ledger %s: %w", path, err)
	}

	return &FileLedger{path: path, f: f, size: size, keys: keys, now: time.Now}, nil
}

// terminate appends a newline when the file does not end with one and returns the
// resulting size.
func terminate(f *os.File) (int64, error) {
	info, err := f.Stat()
	if err != nil {
		return 0, err
	}
	size := info.Size()
	if size == 0 {
		return 0, nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, size-1); err != nil {
		return 0, err
	}
	if last[0] == '\n' {
		return size, nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return 0, err
	}
	if err := f.Sync(); err != nil {
		return 0, err
	}
	return size + 1, nil
}

func loadFile(path string) (map[string]time.Time, error) {
	keys := make(map[string]time.Time)

	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return keys, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		key, stamp, _ := strings.Cut(line, "\t")
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		var at time.Time
		if stamp != "" {
			at, _ = time.Parse(time.RFC3339Nano, strings.TrimSpace(stamp))
		}
		if _, ok := keys[key]; !ok {
			keys[key] = at
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger %s: %w", path, err)
	}
	return keys, nil
}

// IsRecorded reports whether key is in the ledger.
func (l *FileLedger) IsRecorded(_ context.Context, key string) (bool, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok, nil
}

// Record appends key to the file. The in-memory set is only updated once the line has
// been synced, so a failed write leaves the key unrecorded. A partial line left by a
// failed write is truncated away.
func (l *FileLedger) Record(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.f == nil {
		return fmt.Errorf("ledger %s: closed", l.path)
	}
	if _, ok := l.keys[key]; ok {
		return duplicate(key)
	}

	at := l.now().UTC()
	line := key + "\t" + at.Format(time.RFC3339Nano) + "\n"
	if _, err := l.f.WriteString(line); err != nil {
		if terr := l.f.Truncate(l.size); terr != nil {
			return fmt.Errorf("append ledger %s: %w (truncate: %v)", l.path, err, terr)
		}
		return fmt.Errorf("append ledger %s: %w", l.path, err)
	}
	if err := l.f.Sync(); err != nil {
		return fmt.Errorf("sync ledger %s: %w", l.path, err)
	}

	l.size += int64(len(line))
	l.keys[key] = at
	return nil
}

// Len returns the number of recorded keys.
func (l *FileLedger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}

// Close releases the file handle. Further writes fail.
func (l *FileLedger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.f == nil {
		return nil
	}
	err := l.f.Close()
	l.f = nil
	return err
}
