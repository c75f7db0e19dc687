// Package theme reads the editor styling the extension's panels follow.
package theme

import (
	"context"

	"go.uber.org/zap"

	"scope/pkg/logger"
	"scope/pkg/settings"
)

const (
	Section            = "workbench"
	PanelBackgroundKey = "panel.background"
)

// Color is a reference to a colour of the active theme, resolved by the
// editor rather than stored in settings.
type Color struct {
	ID string `json:"id"`
}

// ActivityBarBackground is the theme colour the extension's activity view
// is drawn against.
var ActivityBarBackground = Color{ID: "activityBar.background"}

// Reader reads theme settings.
type Reader struct {
	settings settings.Reader
	logger   *zap.Logger
}

// NewReader creates a Reader. A nil logger uses the global logger.
func NewReader(s settings.Reader, log *zap.Logger) *Reader {
	return &Reader{settings: s, logger: logger.OrGlobal(log).Named("theme")}
}

// PanelBackground returns workbench.panel.background, nil when unset.
// Settings read errors are returned unchanged.
func (r *Reader) PanelBackground(ctx context.Context) (any, error) {
	value, err := r.settings.Get(Section, PanelBackgroundKey)
	if err != nil {
		return nil, err
	}
	r.logger.Debug("Theme",
		zap.Any("panel_background", value),
		zap.String("color", ActivityBarBackground.ID),
	)
	return value, nil
}
