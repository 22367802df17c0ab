package sources

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yukikurage/task-sync/internal/config"
	"github.com/yukikurage/task-sync/internal/models"
	"github.com/yukikurage/task-sync/internal/repository"
)

// ErrNotConfigured is returned for a tracker without an integration backend.
var ErrNotConfigured = stderrors.New("integration not configured")

// Factory builds the adapter of an origin for a workspace.
type Factory struct {
	cfg        *config.Config
	repo       repository.TaskRepository
	log        *slog.Logger
	httpClient *http.Client
}

func NewFactory(cfg *config.Config, repo repository.TaskRepository, log *slog.Logger) *Factory {
	return &Factory{cfg: cfg, repo: repo, log: log}
}

// WithHTTPClient makes tracker adapters use hc instead of a bearer-token client.
func (f *Factory) WithHTTPClient(hc *http.Client) *Factory {
	f.httpClient = hc
	return f
}

func (f *Factory) Adapter(origin models.Origin, workspaceID uint64) (Adapter, error) {
	switch origin {
	case models.OriginNative:
		return NewNativeAdapter(f.repo, workspaceID, f.log), nil
	case models.OriginTrackerA:
		if !f.cfg.TrackerA.Enabled() {
			return nil, fmt.Errorf("%s: %w", origin, ErrNotConfigured)
		}
		return NewTrackerAAdapter(strconv.FormatUint(workspaceID, 10), f.options(f.cfg.TrackerA)), nil
	case models.OriginTrackerB:
		if !f.cfg.TrackerB.Enabled() {
			return nil, fmt.Errorf("%s: %w", origin, ErrNotConfigured)
		}
		return NewTrackerBAdapter(strconv.FormatUint(workspaceID, 10), f.options(f.cfg.TrackerB)), nil
	default:
		return nil, fmt.Errorf("unknown origin %q", origin)
	}
}

// Configured reports whether origin can be opened at all.
func (f *Factory) Configured(origin models.Origin) bool {
	switch origin {
	case models.OriginNative:
		return true
	case models.OriginTrackerA:
		return f.cfg.TrackerA.Enabled()
	case models.OriginTrackerB:
		return f.cfg.TrackerB.Enabled()
	default:
		return false
	}
}

func (f *Factory) options(t config.TrackerConfig) TrackerOptions {
	return TrackerOptions{
		BaseURL:    t.BaseURL,
		BrowseURL:  t.BrowseURL,
		Token:      t.Token,
		Timeout:    f.cfg.TrackerTimeout,
		HTTPClient: f.httpClient,
		Logger:     f.log,
	}
}
