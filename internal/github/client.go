// Package github adapts the GitHub REST API to the review collaborators:
// diff source, status check sink and review sink.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v72/github"

	"github.com/prreviewer/internal/diff"
	"github.com/prreviewer/internal/review"
)

// DefaultCheckName names the status check created for every review.
const DefaultCheckName = "AI Code Review"

// maxCheckSummary is the GitHub limit for a check run output summary.
const maxCheckSummary = 65535

// TokenSource yields a bearer token for each request.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticToken is a personal access token.
type StaticToken string

// Token implements TokenSource.
func (t StaticToken) Token(context.Context) (string, error) {
	if t == "" {
		return "", errors.New("empty GitHub token")
	}
	return string(t), nil
}

// ClientConfig configures a Client.
type ClientConfig struct {
	Tokens            TokenSource
	BaseURL           string
	CheckName         string
	RequestsPerSecond float64
	// Transport is the underlying round tripper. Nil means http.DefaultTransport.
	Transport http.RoundTripper
	Timeout   time.Duration
}

// Client talks to the GitHub REST API.
type Client struct {
	gh        *github.Client
	checkName string
}

var (
	_ review.DiffSource = (*Client)(nil)
	_ review.CheckSink  = (*Client)(nil)
	_ review.ReviewSink = (*Client)(nil)
)

// NewClient creates a client. Requests are rate limited and authenticated
// with a token from cfg.Tokens.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Tokens == nil {
		return nil, errors.New("github client requires a token source")
	}

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	httpClient := &http.Client{
		Transport: &tokenTransport{
			tokens: cfg.Tokens,
			base:   newRateLimitedTransport(base, cfg.RequestsPerSecond),
		},
		Timeout: cfg.Timeout,
	}

	gh := github.NewClient(httpClient)
	if cfg.BaseURL != "" {
		u, err := parseBaseURL(cfg.BaseURL)
		if err != nil {
			return nil, err
		}
		gh.BaseURL = u
	}

	name := cfg.CheckName
	if name == "" {
		name = DefaultCheckName
	}
	return &Client{gh: gh, checkName: name}, nil
}

func parseBaseURL(raw string) (*url.URL, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub base URL %q: %w", raw, err)
	}
	return u, nil
}

// FetchDiff implements review.DiffSource.
func (c *Client) FetchDiff(ctx context.Context, owner, repo string, number int) (string, error) {
	raw, _, err := c.gh.PullRequests.GetRaw(ctx, owner, repo, number, github.RawOptions{Type: github.Diff})
	if err != nil {
		return "", fmt.Errorf("get diff for %s/%s#%d: %w", owner, repo, number, err)
	}
	return raw, nil
}

// HeadSHA returns the current head commit of a pull request.
func (c *Client) HeadSHA(ctx context.Context, owner, repo string, number int) (string, error) {
	pr, _, err := c.gh.PullRequests.Get(ctx, owner, repo, number)
	if err != nil {
		return "", fmt.Errorf("get pull request %s/%s#%d: %w", owner, repo, number, err)
	}
	sha := pr.GetHead().GetSHA()
	if sha == "" {
		return "", fmt.Errorf("pull request %s/%s#%d has no head SHA", owner, repo, number)
	}
	return sha, nil
}

// OpenCheck implements review.CheckSink.
func (c *Client) OpenCheck(ctx context.Context, owner, repo, headSHA string) (review.CheckRun, error) {
	run, _, err := c.gh.Checks.CreateCheckRun(ctx, owner, repo, github.CreateCheckRunOptions{
		Name:    c.checkName,
		HeadSHA: headSHA,
		Status:  github.Ptr("in_progress"),
	})
	if err != nil {
		return review.CheckRun{}, fmt.Errorf("create check run: %w", err)
	}
	return review.CheckRun{Owner: owner, Repo: repo, ID: run.GetID()}, nil
}

// CloseCheck implements review.CheckSink.
func (c *Client) CloseCheck(ctx context.Context, run review.CheckRun, conclusion review.Conclusion, summary string) error {
	_, _, err := c.gh.Checks.UpdateCheckRun(ctx, run.Owner, run.Repo, run.ID, github.UpdateCheckRunOptions{
		Name:       c.checkName,
		Status:     github.Ptr("completed"),
		Conclusion: github.Ptr(string(conclusion)),
		Output: &github.CheckRunOutput{
			Title:   github.Ptr(c.checkName),
			Summary: github.Ptr(diff.Truncate(summary, maxCheckSummary)),
		},
	})
	if err != nil {
		return fmt.Errorf("update check run %d: %w", run.ID, err)
	}
	return nil
}

// SubmitReview implements review.ReviewSink. All comments go in one review on
// the RIGHT side of the diff.
func (c *Client) SubmitReview(ctx context.Context, sub review.Submission) error {
	comments := make([]*github.DraftReviewComment, 0, len(sub.Comments))
	for _, cm := range sub.Comments {
		comments = append(comments, &github.DraftReviewComment{
			Path: github.Ptr(cm.Path),
			Line: github.Ptr(cm.Line),
			Side: github.Ptr("RIGHT"),
			Body: github.Ptr(cm.Body),
		})
	}

	_, _, err := c.gh.PullRequests.CreateReview(ctx, sub.Owner, sub.Repo, sub.PRNumber, &github.PullRequestReviewRequest{
		CommitID: github.Ptr(sub.HeadSHA),
		Body:     github.Ptr(sub.Body),
		Event:    github.Ptr(string(sub.Disposition)),
		Comments: comments,
	})
	if err != nil {
		return fmt.Errorf("create review on %s/%s#%d: %w", sub.Owner, sub.Repo, sub.PRNumber, err)
	}
	return nil
}
