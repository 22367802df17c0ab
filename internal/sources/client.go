package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apierrors "github.com/yukikurage/task-sync/internal/errors"
	"github.com/yukikurage/task-sync/internal/models"
	"golang.org/x/oauth2"
)

const maxErrorBody = 4 << 10

// envelope is the integration backend's response wrapper.
type envelope struct {
	Success *bool           `json:"success"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// TrackerOptions configures a tracker adapter's HTTP access.
type TrackerOptions struct {
	BaseURL   string
	BrowseURL string
	Token     string
	Timeout   time.Duration

	// HTTPClient overrides the bearer-token client built from Token.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Now        func() time.Time
}

// trackerClient performs JSON requests against an integration backend and
// turns every failure into a DispatchError.
type trackerClient struct {
	origin  models.Origin
	baseURL string
	http    *http.Client
}

func newTrackerClient(origin models.Origin, opts TrackerOptions) *trackerClient {
	hc := opts.HTTPClient
	if hc == nil {
		if opts.Token != "" {
			src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token, TokenType: "Bearer"})
			hc = oauth2.NewClient(context.Background(), src)
		} else {
			hc = &http.Client{}
		}
		hc.Timeout = opts.Timeout
	}
	return &trackerClient{origin: origin, baseURL: opts.BaseURL, http: hc}
}

func (c *trackerClient) fail(op, taskID string, reason apierrors.DispatchReason, status int, err error) error {
	return &apierrors.DispatchError{
		Origin:     string(c.origin),
		Op:         op,
		TaskID:     taskID,
		Reason:     reason,
		StatusCode: status,
		Err:        err,
	}
}

// do sends body as JSON and decodes the envelope's data into out when out is non-nil.
func (c *trackerClient) do(ctx context.Context, op, taskID, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return c.fail(op, taskID, apierrors.ReasonValidation, 0, fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return c.fail(op, taskID, apierrors.ReasonNetwork, 0, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return c.fail(op, taskID, apierrors.ReasonNetwork, 0, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var env envelope
		msg := string(bytes.TrimSpace(raw))
		if json.Unmarshal(raw, &env) == nil && env.Message != "" {
			msg = env.Message
		}
		return c.fail(op, taskID, apierrors.ReasonForStatus(resp.StatusCode), resp.StatusCode,
			fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return c.fail(op, taskID, apierrors.ReasonRemote, resp.StatusCode, fmt.Errorf("decode response: %w", err))
	}
	if env.Success != nil && !*env.Success {
		return c.fail(op, taskID, apierrors.ReasonRemote, resp.StatusCode, fmt.Errorf("remote rejected request: %s", env.Message))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return c.fail(op, taskID, apierrors.ReasonRemote, resp.StatusCode, fmt.Errorf("decode data: %w", err))
	}
	return nil
}

// decodeItems decodes each raw item on its own so one malformed entry cannot
// hide the rest of the collection.
func decodeItems[T any](raw []json.RawMessage, log *slog.Logger, origin models.Origin) []T {
	items := make([]T, 0, len(raw))
	for i, r := range raw {
		var item T
		if err := json.Unmarshal(r, &item); err != nil {
			log.Warn("skipping undecodable item", "origin", origin, "index", i, "error", err)
			continue
		}
		items = append(items, item)
	}
	return items
}
