package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/terraphim/kgsearchd/internal/types"
)

// GmailIndexer searches a Gmail mailbox via the Gmail REST API's
// users.messages.list + get endpoints. haystack.Location is the mailbox
// address used only for labeling; haystack.Extra["access_token"] is an
// OAuth2 bearer token obtained by the caller ahead of time — this indexer
// does not perform the OAuth flow itself.
type GmailIndexer struct {
	client *http.Client
}

func NewGmailIndexer() *GmailIndexer {
	return &GmailIndexer{client: &http.Client{Timeout: 15 * time.Second}}
}

type gmailListResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type gmailMessage struct {
	ID      string `json:"id"`
	Snippet string `json:"snippet"`
	Payload struct {
		Headers []struct {
			Name  string `json:"name"`
			Value string `json:"value"`
		} `json:"headers"`
	} `json:"payload"`
}

func (g *GmailIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	token := haystack.Extra["access_token"]
	if token == "" {
		return types.Index{}, fmt.Errorf("gmail: haystack %q missing access_token", haystack.Location)
	}

	listURL := "https://gmail.googleapis.com/gmail/v1/users/me/messages?" +
		url.Values{"q": {needle}, "maxResults": {"25"}}.Encode()
	var list gmailListResponse
	if err := getBearerJSON(ctx, g.client, listURL, token, &list); err != nil {
		return types.Index{}, fmt.Errorf("gmail: list messages: %w", err)
	}

	idx := types.NewIndex()
	for _, m := range list.Messages {
		msgURL := fmt.Sprintf("https://gmail.googleapis.com/gmail/v1/users/me/messages/%s", m.ID)
		var msg gmailMessage
		if err := getBearerJSON(ctx, g.client, msgURL, token, &msg); err != nil {
			continue
		}
		idx.Insert(types.Document{
			ID:    msg.ID,
			Title: headerValue(msg.Payload.Headers, "Subject"),
			Body:  msg.Snippet,
			URL:   "https://mail.google.com/mail/u/0/#inbox/" + msg.ID,
		})
	}
	return idx, nil
}

func headerValue(headers []struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}, name string) string {
	for _, h := range headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

func getBearerJSON(ctx context.Context, client *http.Client, endpoint, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// JMAPIndexer searches a mailbox over JMAP (RFC 8620/8621), the
// session-then-method-call protocol most non-Gmail mail providers (Fastmail
// and others) expose in place of a bespoke REST API.
// haystack.Location is the JMAP session endpoint;
// haystack.Extra["api_token"] authenticates as a bearer token.
type JMAPIndexer struct {
	client *http.Client
}

func NewJMAPIndexer() *JMAPIndexer {
	return &JMAPIndexer{client: &http.Client{Timeout: 15 * time.Second}}
}

type jmapSession struct {
	APIURL      string            `json:"apiUrl"`
	PrimaryAcct map[string]string `json:"primaryAccounts"`
}

func (j *JMAPIndexer) Index(ctx context.Context, needle string, haystack types.Haystack) (types.Index, error) {
	token := haystack.Extra["api_token"]
	if token == "" {
		return types.Index{}, fmt.Errorf("jmap: haystack %q missing api_token", haystack.Location)
	}

	var session jmapSession
	if err := getBearerJSON(ctx, j.client, haystack.Location, token, &session); err != nil {
		return types.Index{}, fmt.Errorf("jmap: fetch session: %w", err)
	}
	accountID := session.PrimaryAcct["urn:ietf:params:jmap:mail"]
	if accountID == "" {
		return types.Index{}, fmt.Errorf("jmap: no mail account in session")
	}

	call := map[string]any{
		"using": []string{"urn:ietf:params:jmap:core", "urn:ietf:params:jmap:mail"},
		"methodCalls": []any{
			[]any{"Email/query", map[string]any{
				"accountId": accountID,
				"filter":    map[string]any{"text": needle},
				"limit":     25,
			}, "0"},
		},
	}
	body, err := json.Marshal(call)
	if err != nil {
		return types.Index{}, fmt.Errorf("jmap: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, session.APIURL, strings.NewReader(string(body)))
	if err != nil {
		return types.Index{}, fmt.Errorf("jmap: build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.client.Do(req)
	if err != nil {
		return types.Index{}, fmt.Errorf("jmap: query: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return types.Index{}, fmt.Errorf("jmap: query: status %d", resp.StatusCode)
	}

	var result struct {
		MethodResponses []json.RawMessage `json:"methodResponses"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return types.Index{}, fmt.Errorf("jmap: decode response: %w", err)
	}

	idx := types.NewIndex()
	for _, raw := range result.MethodResponses {
		var tuple []json.RawMessage
		if err := json.Unmarshal(raw, &tuple); err != nil || len(tuple) < 2 {
			continue
		}
		var payload struct {
			IDs []string `json:"ids"`
		}
		if err := json.Unmarshal(tuple[1], &payload); err != nil {
			continue
		}
		for _, id := range payload.IDs {
			idx.Insert(types.Document{ID: id, Title: id, URL: "jmap://" + accountID + "/" + id})
		}
	}
	return idx, nil
}
