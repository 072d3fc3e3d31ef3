package browser

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// sessionStore keeps session metadata in a JSON file so a later run can
// list the tabs a previous one worked on. An empty path disables it.
type sessionStore struct {
	path string
}

func (s sessionStore) save(sessions []Session) error {
	if s.path == "" {
		return nil
	}
	slices.SortFunc(sessions, func(a, b Session) int {
		return a.OpenedAt.Compare(b.OpenedAt)
	})
	data, err := json.MarshalIndent(sessions, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sessions: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create session store dir: %w", err)
	}
	return os.WriteFile(s.path, data, 0o644)
}

// load returns the stored sessions marked as restored. A missing file is
// an empty store.
func (s sessionStore) load() ([]Session, error) {
	if s.path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session store: %w", err)
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	var sessions []Session
	if err := json.Unmarshal(data, &sessions); err != nil {
		return nil, fmt.Errorf("decode session store %s: %w", s.path, err)
	}
	for i := range sessions {
		sessions[i].State = StateRestored
	}
	return sessions, nil
}
