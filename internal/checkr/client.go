package checkr

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/believeinme/background-check-service/internal/config"
	"github.com/believeinme/background-check-service/internal/metrics"
	"github.com/believeinme/background-check-service/internal/models"
)

// ReportIncludes are the screenings expanded when a report is fetched.
var ReportIncludes = []string{
	models.ScreeningSSNTrace,
	models.ScreeningSexOffenderSearch,
	models.ScreeningGlobalWatchlistSearch,
	models.ScreeningNationalCriminalSearch,
}

// Client talks to the Checkr REST API using basic auth with the API key.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a client from configuration. Provider calls carry no
// client timeout; they are bounded by the request context only.
func NewClient(cfg config.CheckrConfig) *Client {
	return NewClientWithHTTP(cfg.BaseURL, cfg.APIKey, &http.Client{})
}

// NewClientWithHTTP creates a client using the given http.Client.
func NewClientWithHTTP(baseURL, apiKey string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: httpClient,
	}
}

// CreateCandidate registers a candidate and returns its id
func (c *Client) CreateCandidate(ctx context.Context, pii models.LeadPII) (string, error) {
	var candidate Candidate
	if err := c.do(ctx, "create_candidate", http.MethodPost, "/v1/candidates", nil, pii, &candidate); err != nil {
		return "", err
	}
	return candidate.ID, nil
}

type createReportRequest struct {
	Package     string `json:"package"`
	CandidateID string `json:"candidate_id"`
}

// CreateReport orders a report of the given package for the candidate
func (c *Client) CreateReport(ctx context.Context, candidateID, pkg string) (string, error) {
	var report Report
	body := createReportRequest{Package: pkg, CandidateID: candidateID}
	if err := c.do(ctx, "create_report", http.MethodPost, "/v1/reports", nil, body, &report); err != nil {
		return "", err
	}
	return report.ID, nil
}

// GetReport fetches a report with its screenings expanded
func (c *Client) GetReport(ctx context.Context, reportID string) (*Report, error) {
	query := url.Values{}
	query.Set("include", strings.Join(ReportIncludes, ","))

	var report Report
	path := "/v1/reports/" + url.PathEscape(reportID)
	if err := c.do(ctx, "get_report", http.MethodGet, path, query, nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

func (c *Client) do(ctx context.Context, operation, method, path string, query url.Values, in, out interface{}) error {
	timer := prometheus.NewTimer(metrics.ExternalCallDuration.WithLabelValues("checkr", operation))
	defer timer.ObserveDuration()

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reqBody io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode %s request: %w", operation, err)
		}
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.SetBasicAuth(c.apiKey, "")
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return newAPIError(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s response: %w", operation, err)
	}
	return nil
}
