package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wilsbb/tor-accreditation-api/internal/models"
	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

// ProfileSource supplies applicant identity metadata. Read-only.
type ProfileSource interface {
	FetchProfile(ctx context.Context, applicantID string) (*models.ApplicantProfile, error)
}

// ProfileClient reads applicant profiles from the external profile store.
type ProfileClient struct {
	baseURL string
	client  *http.Client
}

// NewProfileClient constructs a profile client with a bounded request timeout.
func NewProfileClient(baseURL string, timeout time.Duration) *ProfileClient {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &ProfileClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchProfile returns the applicant's profile, or NotFound when the profile
// store has no record for the ID.
func (c *ProfileClient) FetchProfile(ctx context.Context, applicantID string) (*models.ApplicantProfile, error) {
	endpoint := fmt.Sprintf("%s/profile/%s/", c.baseURL, url.PathEscape(applicantID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build profile request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "profile store unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant profile not found")
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, appErrors.Clone(appErrors.ErrUpstreamUnavailable, fmt.Sprintf("profile store returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "read profile response")
	}

	data, err := decodeEnvelope(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed profile response")
	}

	// Legacy endpoints sometimes answer with a single-element array.
	if len(data) > 0 && data[0] == '[' {
		var profiles []models.ApplicantProfile
		if err := json.Unmarshal(data, &profiles); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed profile list")
		}
		if len(profiles) == 0 {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "applicant profile not found")
		}
		return &profiles[0], nil
	}

	var profile models.ApplicantProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed profile payload")
	}
	return &profile, nil
}
