// Package codehost is the code-host client external collaborator: fetch
// an issue, open a change request, leave a comment. It is grounded on the
// repository's own earlier gh-CLI-shelling client but talks to a typed
// REST API instead, since a durable, resumable engine should not depend
// on an interactively-authenticated binary being present on PATH.
package codehost

import (
	"context"
	"fmt"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"

	"github.com/lucasnoah/forgebot/internal/workflow"
)

// Client provides code-host operations over the GitHub REST API.
type Client struct {
	gh *github.Client
}

// NewClient builds a Client authenticated with a static personal access
// token. An empty token produces an unauthenticated client, suitable only
// for public read operations and low rate limits.
func NewClient(token string) *Client {
	if token == "" {
		return &Client{gh: github.NewClient(nil)}
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	return &Client{gh: github.NewClient(oauth2.NewClient(context.Background(), ts))}
}

// GetIssue fetches a single issue and adapts it to the workflow package's
// Issue type.
func (c *Client) GetIssue(ctx context.Context, owner, repo string, number int) (*workflow.Issue, error) {
	if number <= 0 {
		return nil, fmt.Errorf("invalid issue number %d: must be positive", number)
	}
	issue, _, err := c.gh.Issues.Get(ctx, owner, repo, number)
	if err != nil {
		return nil, fmt.Errorf("get issue %s/%s#%d: %w", owner, repo, number, err)
	}
	return &workflow.Issue{
		Number: issue.GetNumber(),
		Title:  issue.GetTitle(),
		Body:   issue.GetBody(),
		URL:    issue.GetHTMLURL(),
	}, nil
}

// CreateChangeRequest opens a pull request from branch against the
// repository's default branch.
func (c *Client) CreateChangeRequest(ctx context.Context, owner, repo, branch, title, body string) (*workflow.Submission, error) {
	if branch == "" {
		return nil, fmt.Errorf("create change request: empty branch")
	}
	pr, _, err := c.gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: github.String(title),
		Head:  github.String(branch),
		Base:  github.String("main"),
		Body:  github.String(body),
	})
	if err != nil {
		return nil, fmt.Errorf("create pull request on %s/%s: %w", owner, repo, err)
	}
	return &workflow.Submission{PRNumber: pr.GetNumber(), PRURL: pr.GetHTMLURL()}, nil
}

// Comment leaves an issue comment.
func (c *Client) Comment(ctx context.Context, owner, repo string, number int, body string) error {
	_, _, err := c.gh.Issues.CreateComment(ctx, owner, repo, number, &github.IssueComment{Body: github.String(body)})
	if err != nil {
		return fmt.Errorf("comment on %s/%s#%d: %w", owner, repo, number, err)
	}
	return nil
}
