package game

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"
)

// FileStore persists scores as a JSON object keyed by user id. Every Save first copies
// the current file into the backup directory as "<name>.bak.<unix seconds>".
type FileStore struct {
	path      string
	backupDir string
	now       func() time.Time
}

// NewFileStore creates a store for path. An empty backupDir disables backups.
func NewFileStore(path, backupDir string) *FileStore {
	return &FileStore{path: path, backupDir: backupDir, now: time.Now}
}

// Load reads the score file. A missing file is an empty game.
func (s *FileStore) Load() (map[string]*Player, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]*Player{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read scores %s: %w", s.path, err)
	}

	players := map[string]*Player{}
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("decode scores %s: %w", s.path, err)
	}
	for id, p := range players {
		if p == nil {
			delete(players, id)
			continue
		}
		if p.Seen == nil {
			p.Seen = []string{}
		}
	}
	return players, nil
}

// Save backs up the current file, then replaces it atomically with players.
func (s *FileStore) Save(players map[string]Player) error {
	if err := s.backup(); err != nil {
		return err
	}

	data, err := json.Marshal(players)
	if err != nil {
		return fmt.Errorf("encode scores: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create scores dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create scores temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write scores: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync scores: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close scores: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace scores %s: %w", s.path, err)
	}
	return nil
}

func (s *FileStore) backup() error {
	if s.backupDir == "" {
		return nil
	}
	src, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("open scores for backup: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	name := filepath.Base(s.path) + ".bak." + strconv.FormatInt(s.now().Unix(), 10)
	dst, err := os.Create(filepath.Join(s.backupDir, name))
	if err != nil {
		return fmt.Errorf("create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return fmt.Errorf("copy backup: %w", err)
	}
	return dst.Close()
}
