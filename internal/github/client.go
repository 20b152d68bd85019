package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

var ErrInvalidRepoURL = errors.New("repository URL does not look like owner/repo")

// Client fetches commit history for public repositories via the GitHub
// REST API. Used by manual and automatic commit sync; the webhook path
// does not need it.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client. baseURL is normally https://api.github.com.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// RepoCommit is one commit as returned by the commits endpoint.
type RepoCommit struct {
	URL         string
	AuthorName  string
	AuthorLogin string
	Message     string
	Timestamp   time.Time
}

// ParseRepoURL extracts owner and repo from a clone or web URL.
func ParseRepoURL(repoURL string) (owner, repo string, err error) {
	clean := strings.TrimSuffix(strings.TrimRight(repoURL, "/"), ".git")
	parts := strings.Split(clean, "/")
	if len(parts) < 2 {
		return "", "", ErrInvalidRepoURL
	}
	owner, repo = parts[len(parts)-2], parts[len(parts)-1]
	if owner == "" || repo == "" {
		return "", "", ErrInvalidRepoURL
	}
	return owner, repo, nil
}

// ListCommits returns the repository's recent commits.
func (c *Client) ListCommits(ctx context.Context, repoURL string) ([]RepoCommit, error) {
	owner, repo, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/repos/%s/%s/commits", c.baseURL, owner, repo)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "devtrack")
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch commits: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("github api returned status %d", resp.StatusCode)
	}

	var raw []struct {
		HTMLURL string `json:"html_url"`
		Commit  struct {
			Message string `json:"message"`
			Author  struct {
				Name string    `json:"name"`
				Date time.Time `json:"date"`
			} `json:"author"`
		} `json:"commit"`
		Author *struct {
			Login string `json:"login"`
		} `json:"author"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode commits: %w", err)
	}

	commits := make([]RepoCommit, 0, len(raw))
	for _, item := range raw {
		commit := RepoCommit{
			URL:        item.HTMLURL,
			AuthorName: item.Commit.Author.Name,
			Message:    item.Commit.Message,
			Timestamp:  item.Commit.Author.Date,
		}
		if item.Author != nil {
			commit.AuthorLogin = item.Author.Login
		}
		commits = append(commits, commit)
	}
	return commits, nil
}
