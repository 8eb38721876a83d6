// Package rules loads the external policy document embedded in the system prompt.
package rules

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"unicode/utf8"

	apperrors "brand-zoning/internal/common/errors"
	"brand-zoning/internal/common/logger"
)

// Loader reads the rules document from Path. It never fails: unreadable or
// missing documents degrade to an empty policy text.
type Loader struct {
	Path   string
	logger logger.Logger
}

func NewLoader(path string, log logger.Logger) *Loader {
	return &Loader{
		Path:   path,
		logger: log.With(map[string]interface{}{"component": "rules", "path": path}),
	}
}

// Load returns the rules text or "" when the file is absent or unreadable.
func (l *Loader) Load() string {
	text, err := l.read()
	switch {
	case err == nil:
		l.logger.Info("rules file loaded", map[string]interface{}{"chars": len(text)})
		return text
	case errors.Is(err, fs.ErrNotExist):
		l.logger.Debug("rules file not found, using empty rules", nil)
	default:
		l.logger.Warn("failed to load rules file", map[string]interface{}{
			"error": apperrors.NewRulesUnreadableError(l.Path, err).Error(),
		})
	}
	return ""
}

// Exists reports whether Path names a regular file.
func (l *Loader) Exists() bool {
	if l.Path == "" {
		return false
	}
	info, err := os.Stat(l.Path)
	return err == nil && info.Mode().IsRegular()
}

func (l *Loader) read() (string, error) {
	if l.Path == "" {
		return "", fs.ErrNotExist
	}
	data, err := os.ReadFile(l.Path)
	if err != nil {
		return "", err
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("rules file is not valid UTF-8")
	}
	return string(data), nil
}
