package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/terraphim/kgsearchd/internal/types"
)

// restClient is the shared low-level HTTP helper the ClickUp, Jira and
// Discourse indexers use — each of those services is a bearer- or
// token-authenticated JSON REST API, differing only in endpoint shape and
// response schema.
type restClient struct {
	client *http.Client
}

func newRESTClient() *restClient {
	return &restClient{client: &http.Client{Timeout: 15 * time.Second}}
}

func (c *restClient) getJSON(ctx context.Context, endpoint string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("rest: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("rest: fetch %q: %w", endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("rest: fetch %q: status %d", endpoint, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("rest: decode %q: %w", endpoint, err)
	}
	return nil
}

// ClickUpIndexer searches tasks in a ClickUp team (workspace) via the v2 REST
// API. haystack.Location is the team ID; haystack.Extra["api_token"]
// authenticates.
type ClickUpIndexer struct{ rest *restClient }

func NewClickUpIndexer() *ClickUpIndexer { return &ClickUpIndexer{rest: newRESTClient()} }

type clickUpTaskList struct {
	Tasks []struct {
		ID          string `json:"id"`
		Name        string `json:"name"`
		Description string `json:"description"`
		URL         string `json:"url"`
	} `json:"tasks"`
}

func (c *ClickUpIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	endpoint := fmt.Sprintf("https://api.clickup.com/api/v2/team/%s/task?%s",
		url.PathEscape(haystack.Location), url.Values{"query": {needle}}.Encode())

	var parsed clickUpTaskList
	headers := map[string]string{"Authorization": haystack.Extra["api_token"]}
	if err := c.rest.getJSON(ctx, endpoint, headers, &parsed); err != nil {
		return types.Index{}, fmt.Errorf("clickup: %w", err)
	}

	idx := types.NewIndex()
	for _, t := range parsed.Tasks {
		idx.Insert(types.Document{ID: t.ID, Title: t.Name, Body: t.Description, Description: t.Description, URL: t.URL})
	}
	return idx, nil
}

// JiraIndexer searches issues on a Jira Cloud/Server instance via its REST
// search (JQL) API. haystack.Location is the base URL;
// haystack.Extra["basic_auth"] holds the already base64-encoded basic-auth
// credentials (for Jira Cloud, "email:api_token"), sent as-is after "Basic ".
type JiraIndexer struct{ rest *restClient }

func NewJiraIndexer() *JiraIndexer { return &JiraIndexer{rest: newRESTClient()} }

type jiraSearchResponse struct {
	Issues []struct {
		Key    string `json:"key"`
		Fields struct {
			Summary     string `json:"summary"`
			Description string `json:"description"`
		} `json:"fields"`
	} `json:"issues"`
}

func (j *JiraIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	jql := fmt.Sprintf("text ~ %q", needle)
	endpoint := fmt.Sprintf("%s/rest/api/2/search?%s", haystack.Location, url.Values{"jql": {jql}}.Encode())

	var parsed jiraSearchResponse
	headers := map[string]string{"Authorization": "Basic " + haystack.Extra["basic_auth"]}
	if err := j.rest.getJSON(ctx, endpoint, headers, &parsed); err != nil {
		return types.Index{}, fmt.Errorf("jira: %w", err)
	}

	idx := types.NewIndex()
	for _, issue := range parsed.Issues {
		idx.Insert(types.Document{
			ID:          issue.Key,
			Title:       issue.Fields.Summary,
			Body:        issue.Fields.Description,
			Description: issue.Fields.Description,
			URL:         haystack.Location + "/browse/" + issue.Key,
		})
	}
	return idx, nil
}

// DiscourseIndexer searches topics on a Discourse forum via its public JSON
// search endpoint. haystack.Location is the forum base URL.
type DiscourseIndexer struct{ rest *restClient }

func NewDiscourseIndexer() *DiscourseIndexer { return &DiscourseIndexer{rest: newRESTClient()} }

type discourseSearchResponse struct {
	Topics []struct {
		ID    int    `json:"id"`
		Title string `json:"title"`
		Slug  string `json:"slug"`
	} `json:"topics"`
}

func (d *DiscourseIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	endpoint := fmt.Sprintf("%s/search.json?%s", haystack.Location, url.Values{"q": {needle}}.Encode())

	var parsed discourseSearchResponse
	headers := map[string]string{}
	if key := haystack.Extra["api_key"]; key != "" {
		headers["Api-Key"] = key
	}
	if err := d.rest.getJSON(ctx, endpoint, headers, &parsed); err != nil {
		return types.Index{}, fmt.Errorf("discourse: %w", err)
	}

	idx := types.NewIndex()
	for _, t := range parsed.Topics {
		id := fmt.Sprintf("%d", t.ID)
		idx.Insert(types.Document{
			ID:    id,
			Title: t.Title,
			URL:   fmt.Sprintf("%s/t/%s/%d", haystack.Location, t.Slug, t.ID),
		})
	}
	return idx, nil
}
