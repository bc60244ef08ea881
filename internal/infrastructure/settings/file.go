package settings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"titleCountdown/internal/domain"
)

var ErrEmpty = errors.New("settings: file is empty")

// Load parses a YAML settings file:
//
//	duration: 60
//	channel_name: teststreamer
//	enable_script: true
func Load(path string) (domain.Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("settings: read %s: %w", path, err)
	}

	if len(bytes.TrimSpace(raw)) == 0 {
		return domain.Settings{}, ErrEmpty
	}

	var s domain.Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return domain.Settings{}, fmt.Errorf("settings: decode %s: %w", path, err)
	}

	return s.Normalized(), nil
}

func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Watcher calls back with freshly parsed settings every time the file is saved.
type Watcher struct {
	path   string
	logger *zap.Logger
}

func NewWatcher(path string, logger *zap.Logger) *Watcher {
	return &Watcher{path: path, logger: logger}
}

// Watch blocks until ctx is done. The parent directory is watched so editors
// that replace the file on save are still observed.
func (w *Watcher) Watch(ctx context.Context, onChange func(domain.Settings)) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("settings: watcher: %w", err)
	}
	defer fw.Close()

	dir := filepath.Dir(w.path)
	if err := fw.Add(dir); err != nil {
		return fmt.Errorf("settings: watch %s: %w", dir, err)
	}

	target := filepath.Clean(w.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}

			s, err := Load(w.path)
			if err != nil {
				// editors may truncate before writing; the next event carries the content
				if !errors.Is(err, os.ErrNotExist) && !errors.Is(err, ErrEmpty) {
					w.logger.Warn("failed to reload settings", zap.Error(err))
				}
				continue
			}
			onChange(s)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("settings watcher error", zap.Error(err))
		}
	}
}
