// Package report provides the client for the external build-report
// service that tracks build health and cross-job dependency
// relationships.
package report

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a build-report service over JSON HTTP.
type Client struct {
	baseURL string
	project string
	site    string
	token   string
	http    *http.Client
}

// New creates a report client. The token is only needed for build group
// administration and may be empty otherwise.
func New(baseURL, project, site, token string) *Client {
	return &Client{
		baseURL: baseURL,
		project: project,
		site:    site,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// RelateBuilds posts one "depends on" relationship record between two
// registered builds. Callers treat failures as soft: the artifact's
// correctness does not depend on the relationship record existing.
func (c *Client) RelateBuilds(ctx context.Context, jobID, dependencyID string) error {
	payload := map[string]string{
		"project":      c.project,
		"buildid":      jobID,
		"relatedid":    dependencyID,
		"relationship": "depends on",
	}
	if err := c.post(ctx, http.MethodPost, "/api/v1/relateBuilds.php", payload, nil); err != nil {
		return fmt.Errorf("relate builds %s -> %s: %w", jobID, dependencyID, err)
	}
	return nil
}

// PopulateBuildGroup creates the build group (and its "Latest" shadow
// group) and fills it with the expected job names, so the report
// dashboard shows pending entries for the whole release set up front.
func (c *Client) PopulateBuildGroup(ctx context.Context, jobNames []string, groupName string) error {
	parentID, err := c.createBuildGroup(ctx, groupName, "Daily")
	if err != nil {
		return fmt.Errorf("populate build group %s: %w", groupName, err)
	}
	latestID, err := c.createBuildGroup(ctx, "Latest "+groupName, "Latest")
	if err != nil {
		return fmt.Errorf("populate build group %s: %w", groupName, err)
	}

	entries := make([]map[string]interface{}, len(jobNames))
	for i, name := range jobNames {
		entries[i] = map[string]interface{}{
			"match":         name,
			"parentgroupid": parentID,
			"site":          c.site,
		}
	}
	payload := map[string]interface{}{
		"project":      c.project,
		"buildgroupid": latestID,
		"dynamiclist":  entries,
	}

	if err := c.post(ctx, http.MethodPut, "/api/v1/buildgroup.php", payload, nil); err != nil {
		return fmt.Errorf("populate build group %s: %w", groupName, err)
	}
	return nil
}

// createBuildGroup creates one build group and returns its identifier.
func (c *Client) createBuildGroup(ctx context.Context, name, groupType string) (json.Number, error) {
	payload := map[string]string{
		"newbuildgroup": name,
		"project":       c.project,
		"type":          groupType,
	}
	var resp struct {
		ID json.Number `json:"id"`
	}
	if err := c.post(ctx, http.MethodPost, "/api/v1/buildgroup.php", payload, &resp); err != nil {
		return "", err
	}
	if resp.ID.String() == "" {
		return "", fmt.Errorf("no group id in response for %q", name)
	}
	return resp.ID, nil
}

// post sends a JSON request and decodes the JSON response into out when
// out is non-nil. Non-2xx responses are errors.
func (c *Client) post(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, bytes.TrimSpace(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
