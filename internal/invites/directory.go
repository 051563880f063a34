package invites

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/campuslink/arena/internal/models"
)

// ErrEndpointUnavailable signals that the discovery endpoint does not exist
// in this deployment. It is a feature probe, not a transient failure: the
// poller stops permanently on first sight of it.
var ErrEndpointUnavailable = errors.New("session discovery endpoint unavailable")

// Directory is the query surface the poller reconciles against.
type Directory interface {
	LobbySessions(ctx context.Context) ([]models.SessionSummary, error)
}

// HTTPDirectory queries the control plane's listSessions endpoint.
type HTTPDirectory struct {
	baseURL      string
	viewerUserID string
	client       *http.Client
}

// NewHTTPDirectory creates a directory client against the engine's control
// plane.
func NewHTTPDirectory(baseURL, viewerUserID string) *HTTPDirectory {
	return &HTTPDirectory{
		baseURL:      baseURL,
		viewerUserID: viewerUserID,
		client:       &http.Client{Timeout: 10 * time.Second},
	}
}

// LobbySessions fetches sessions currently in lobby state. A 404 from the
// server means the deployment does not expose discovery at all and maps to
// ErrEndpointUnavailable.
func (d *HTTPDirectory) LobbySessions(ctx context.Context) ([]models.SessionSummary, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.baseURL+"/v1/sessions?status=lobby", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-User-ID", d.viewerUserID)

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrEndpointUnavailable
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("list sessions: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Sessions []models.SessionSummary `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("decode session list: %w", err)
	}
	return body.Sessions, nil
}
