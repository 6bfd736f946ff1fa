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

	appErrors "github.com/wilsbb/tor-accreditation-api/pkg/errors"
)

// TranscriptRow is one raw OCR-extracted subject record, prior to
// classification.
type TranscriptRow struct {
	SubjectCode        string `json:"subject_code"`
	SubjectDescription string `json:"subject_description"`
	Units              string `json:"units"`
	FinalGrade         string `json:"final_grade"`
}

// TranscriptSource supplies OCR comparison rows for an applicant.
type TranscriptSource interface {
	FetchComparisonRows(ctx context.Context, applicantID string) ([]TranscriptRow, error)
}

// OCRClient reads extracted transcript rows from the OCR comparison service.
type OCRClient struct {
	baseURL string
	client  *http.Client
}

// NewOCRClient constructs an OCR client with a bounded request timeout.
func NewOCRClient(baseURL string, timeout time.Duration) *OCRClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &OCRClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}
}

// FetchComparisonRows retrieves the comparison result for the applicant.
// A zero-row response is returned as an empty slice, not an error; transport
// and non-2xx failures surface as UpstreamUnavailable and are never retried
// here.
func (c *OCRClient) FetchComparisonRows(ctx context.Context, applicantID string) ([]TranscriptRow, error) {
	endpoint := fmt.Sprintf("%s/compareResultTOR/%s/", c.baseURL, url.PathEscape(applicantID))

	raw, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}

	data, err := decodeEnvelope(raw)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed OCR response")
	}

	var rows []TranscriptRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "malformed OCR rows")
	}
	return rows, nil
}

func (c *OCRClient) get(ctx context.Context, endpoint string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "build OCR request")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "OCR service unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, appErrors.Clone(appErrors.ErrUpstreamUnavailable, fmt.Sprintf("OCR service returned status %d", resp.StatusCode))
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUpstreamUnavailable.Code, appErrors.ErrUpstreamUnavailable.Status, "read OCR response")
	}
	return raw, nil
}
