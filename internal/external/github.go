package external

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v57/github"
	"github.com/kjannette/portfolio-analytics/internal/logging"
	"github.com/kjannette/portfolio-analytics/internal/models"
	"golang.org/x/oauth2"
)

// maxCommitPages bounds commit pagination at 100 commits per page.
const maxCommitPages = 10

type GitHubClient struct {
	client *github.Client
}

// NewGitHubClient authenticates with token when set. Unauthenticated clients
// work but hit GitHub's much lower anonymous rate limit.
func NewGitHubClient(token string, timeout time.Duration) *GitHubClient {
	var hc *http.Client
	if token != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
		hc = oauth2.NewClient(context.Background(), ts)
	} else {
		hc = &http.Client{}
	}
	if timeout > 0 {
		hc.Timeout = timeout
	}
	return &GitHubClient{client: github.NewClient(hc)}
}

// withBaseURL points the client at another API root, for tests.
func (g *GitHubClient) withBaseURL(raw string) error {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	g.client.BaseURL = u
	return nil
}

// ParseRepoURL extracts owner and repo from a github.com repository URL.
func ParseRepoURL(raw string) (owner, repo string, ok bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !strings.EqualFold(strings.TrimPrefix(u.Host, "www."), "github.com") {
		return "", "", false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], strings.TrimSuffix(parts[1], ".git"), true
}

// RepoActivity returns repository counters plus the number of commits since
// since. An unknown repository yields nil.
func (g *GitHubClient) RepoActivity(ctx context.Context, repoURL string, since time.Time) (*models.RepoActivity, error) {
	owner, name, ok := ParseRepoURL(repoURL)
	if !ok {
		return nil, fmt.Errorf("not a github repository url: %q", repoURL)
	}
	logger := logging.For("github")

	repo, _, err := g.client.Repositories.Get(ctx, owner, name)
	if err != nil {
		if isNotFound(err) {
			logger.Info().Str("repo", owner+"/"+name).Msg("repository not found, treating as empty")
			return nil, nil
		}
		return nil, fmt.Errorf("github repo %s/%s: %w", owner, name, err)
	}

	out := &models.RepoActivity{
		Owner:      owner,
		Repo:       name,
		Stars:      repo.GetStargazersCount(),
		Forks:      repo.GetForksCount(),
		OpenIssues: repo.GetOpenIssuesCount(),
		Since:      since,
	}

	opts := &github.CommitsListOptions{Since: since, ListOptions: github.ListOptions{PerPage: 100}}
	for page := 0; page < maxCommitPages; page++ {
		commits, resp, err := g.client.Repositories.ListCommits(ctx, owner, name, opts)
		if err != nil {
			// an empty repository answers 409
			var ge *github.ErrorResponse
			if errors.As(err, &ge) && ge.Response != nil && ge.Response.StatusCode == http.StatusConflict {
				break
			}
			return nil, fmt.Errorf("github commits %s/%s: %w", owner, name, err)
		}
		out.Commits += len(commits)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	logger.Debug().Str("repo", owner+"/"+name).Int("commits", out.Commits).Time("since", since).Msg("repo activity fetched")
	return out, nil
}

func isNotFound(err error) bool {
	var ge *github.ErrorResponse
	return errors.As(err, &ge) && ge.Response != nil && ge.Response.StatusCode == http.StatusNotFound
}
