package github

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseRepoURL(t *testing.T) {
	tests := []struct {
		url   string
		owner string
		repo  string
		err   bool
	}{
		{url: "https://github.com/devtrackhq/devtrack", owner: "devtrackhq", repo: "devtrack"},
		{url: "https://github.com/devtrackhq/devtrack.git", owner: "devtrackhq", repo: "devtrack"},
		{url: "https://github.com/devtrackhq/devtrack/", owner: "devtrackhq", repo: "devtrack"},
		{url: "devtrackhq/devtrack", owner: "devtrackhq", repo: "devtrack"},
		{url: "justaword", err: true},
		{url: "", err: true},
	}

	for _, tt := range tests {
		owner, repo, err := ParseRepoURL(tt.url)
		if tt.err {
			require.ErrorIs(t, err, ErrInvalidRepoURL, tt.url)
			continue
		}
		require.NoError(t, err, tt.url)
		require.Equal(t, tt.owner, owner)
		require.Equal(t, tt.repo, repo)
	}
}

func TestClient_ListCommits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repos/devtrackhq/devtrack/commits", r.URL.Path)
		require.Equal(t, "devtrack", r.Header.Get("User-Agent"))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[
			{
				"html_url": "https://github.com/devtrackhq/devtrack/commit/abc",
				"commit": {
					"message": "fixes #12",
					"author": {"name": "Dana", "date": "2026-08-30T10:00:00Z"}
				},
				"author": {"login": "dana"}
			},
			{
				"html_url": "https://github.com/devtrackhq/devtrack/commit/def",
				"commit": {
					"message": "wip task-3",
					"author": {"name": "Rob", "date": "2026-08-31T09:00:00Z"}
				},
				"author": null
			}
		]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	commits, err := client.ListCommits(context.Background(), "https://github.com/devtrackhq/devtrack")
	require.NoError(t, err)
	require.Len(t, commits, 2)

	require.Equal(t, "fixes #12", commits[0].Message)
	require.Equal(t, "Dana", commits[0].AuthorName)
	require.Equal(t, "dana", commits[0].AuthorLogin)
	require.Equal(t, "https://github.com/devtrackhq/devtrack/commit/abc", commits[0].URL)

	// A commit whose author has no account still comes through.
	require.Equal(t, "Rob", commits[1].AuthorName)
	require.Empty(t, commits[1].AuthorLogin)
}

func TestClient_ListCommitsUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewClient(srv.URL)
	_, err := client.ListCommits(context.Background(), "https://github.com/devtrackhq/devtrack")
	require.Error(t, err)
}
