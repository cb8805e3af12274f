// Package state persists the counters that must survive a restart: the
// trade gate's clock and the equity protector's breakers. Everything else
// is rebuilt from the exchange on boot.
package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"talon/internal/logger"
	"talon/internal/safety"

	"gopkg.in/yaml.v3"
)

// Snapshot is the on-disk layout.
type Snapshot struct {
	RunID     string                `yaml:"run_id"`
	Gate      safety.GateState      `yaml:"gate"`
	Protector safety.ProtectorState `yaml:"protector"`
	UpdatedAt time.Time             `yaml:"updated_at"`
}

// File reads and writes a single snapshot at a fixed path.
type File struct {
	path string
}

func NewFile(path string) *File {
	return &File{path: strings.TrimSpace(path)}
}

func (f *File) Enabled() bool { return f != nil && f.path != "" }

// Load returns the saved snapshot, or (zero, false) when the file does not
// exist yet. A corrupt file is logged and treated as absent rather than
// wedging the boot.
func (f *File) Load() (Snapshot, bool) {
	if !f.Enabled() {
		return Snapshot{}, false
	}
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.Warnf("state: read %s: %v", f.path, err)
		}
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := yaml.Unmarshal(raw, &snap); err != nil {
		logger.Warnf("state: corrupt snapshot %s, starting fresh: %v", f.path, err)
		return Snapshot{}, false
	}
	return snap, true
}

// Save writes the snapshot atomically via a temp file rename.
func (f *File) Save(snap Snapshot) error {
	if !f.Enabled() {
		return nil
	}
	snap.UpdatedAt = time.Now().UTC()
	raw, err := yaml.Marshal(snap)
	if err != nil {
		return fmt.Errorf("state: marshal snapshot: %w", err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("state: create dir %s: %w", dir, err)
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("state: write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("state: rename %s: %w", f.path, err)
	}
	return nil
}
