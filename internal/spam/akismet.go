package spam

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// AkismetClient calls an akismet-compatible comment-check endpoint.
type AkismetClient struct {
	apiKey     string
	endpoint   string
	siteURL    string
	httpClient *http.Client
}

func NewAkismetClient(apiKey, endpoint, siteURL string) *AkismetClient {
	return &AkismetClient{
		apiKey:   apiKey,
		endpoint: endpoint,
		siteURL:  siteURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *AkismetClient) Classify(ctx context.Context, content Content) (Verdict, error) {
	form := url.Values{}
	form.Set("api_key", c.apiKey)
	form.Set("blog", c.siteURL)
	form.Set("comment_type", "comment")
	form.Set("comment_content", content.Text)
	form.Set("comment_author", content.AuthorName)
	form.Set("comment_author_email", content.AuthorEmail)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint,
		strings.NewReader(form.Encode()))
	if err != nil {
		return VerdictUnknown, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return VerdictUnknown, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return VerdictUnknown, fmt.Errorf("spam api returned status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if err != nil {
		return VerdictUnknown, err
	}

	switch strings.TrimSpace(string(body)) {
	case "true":
		return VerdictSpam, nil
	case "false":
		return VerdictHam, nil
	default:
		return VerdictUnknown, fmt.Errorf("spam api returned unexpected body %q", body)
	}
}
