package browser

import (
	"fmt"
	"io"

	"github.com/pkg/browser"
	"go.uber.org/zap"

	"titleCountdown/internal/domain"
)

// NewOpener returns a domain.URLOpener backed by the OS default browser.
// Output of the launcher process is discarded; failures are returned.
func NewOpener(logger *zap.Logger) domain.URLOpener {
	browser.Stdout = io.Discard
	browser.Stderr = io.Discard

	return func(url string) error {
		logger.Debug("opening browser", zap.String("url", url))
		if err := browser.OpenURL(url); err != nil {
			return fmt.Errorf("browser: open: %w", err)
		}
		return nil
	}
}
