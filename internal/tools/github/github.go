// Package github provides the github:* tools. Every tool returns mock data,
// except create_issue which posts to a real API when a base URL is configured.
package github

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/klubi/relay/internal/httpfetch"
	"github.com/klubi/relay/internal/tools"
)

// Tool names.
const (
	CreateIssue   = "github:create_issue"
	GetPR         = "github:get_pr"
	ListPRs       = "github:list_prs"
	MergePR       = "github:merge_pr"
	ListRepos     = "github:list_repos"
	GetRepo       = "github:get_repo"
	CreateComment = "github:create_comment"
)

// Options configures the registry.
type Options struct {
	APIURL  string        // empty keeps create_issue mocked
	Token   string        // bearer token for APIURL
	Timeout time.Duration // per request; zero uses the fetch default
}

type toolset struct {
	opts   Options
	client *httpfetch.Client
	logger *zap.Logger
}

// NewRegistry returns a registry holding every github tool. Tools are built
// on first resolution.
func NewRegistry(opts Options, client *httpfetch.Client, logger *zap.Logger, regOpts ...tools.Option) (*tools.Registry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if client == nil {
		client = httpfetch.New(nil, logger)
	}
	ts := &toolset{opts: opts, client: client, logger: logger}

	r := tools.NewRegistry(append([]tools.Option{tools.WithLogger(logger)}, regOpts...)...)
	loaders := map[string]tools.Loader{
		CreateIssue:   func() (tools.Tool, error) { return ts.createIssue(), nil },
		GetPR:         func() (tools.Tool, error) { return ts.getPR(), nil },
		ListPRs:       func() (tools.Tool, error) { return ts.listPRs(), nil },
		MergePR:       func() (tools.Tool, error) { return ts.mergePR(), nil },
		ListRepos:     func() (tools.Tool, error) { return ts.listRepos(), nil },
		GetRepo:       func() (tools.Tool, error) { return ts.getRepo(), nil },
		CreateComment: func() (tools.Tool, error) { return ts.createComment(), nil },
	}
	for name, load := range loaders {
		if err := r.Register(name, load); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// CreateIssueInput is the input of github:create_issue.
type CreateIssueInput struct {
	Repo      string   `json:"repo" validate:"required,contains=/" desc:"Repository in owner/name form"`
	Title     string   `json:"title" validate:"required,min=1,max=200" desc:"Issue title"`
	Body      string   `json:"body,omitempty" desc:"Issue body (markdown)"`
	Labels    []string `json:"labels,omitempty" validate:"omitempty,dive,required" desc:"Labels to apply"`
	Assignees []string `json:"assignees,omitempty" validate:"omitempty,dive,required" desc:"Users to assign"`
}

// Issue is a created issue.
type Issue struct {
	IssueNumber int    `json:"issueNumber"`
	URL         string `json:"url"`
	State       string `json:"state"`
}

func (ts *toolset) createIssue() tools.Tool {
	return tools.New(CreateIssue, "Create a new GitHub issue",
		func(ctx context.Context, in CreateIssueInput) (Issue, error) {
			ts.logger.Info("Creating GitHub issue",
				zap.String("repo", in.Repo),
				zap.String("title", in.Title),
			)
			if ts.opts.APIURL == "" {
				return Issue{
					IssueNumber: 42,
					URL:         fmt.Sprintf("https://github.com/%s/issues/42", in.Repo),
					State:       "open",
				}, nil
			}
			return ts.postIssue(ctx, in)
		})
}

type apiIssue struct {
	Number  int    `json:"number"`
	HTMLURL string `json:"html_url"`
	State   string `json:"state"`
}

func (ts *toolset) postIssue(ctx context.Context, in CreateIssueInput) (Issue, error) {
	headers := map[string]string{"Accept": "application/vnd.github+json"}
	if ts.opts.Token != "" {
		headers["Authorization"] = "Bearer " + ts.opts.Token
	}
	resp, err := httpfetch.Fetch[apiIssue](ctx, ts.client, httpfetch.Options{
		URL:     strings.TrimRight(ts.opts.APIURL, "/") + "/repos/" + in.Repo + "/issues",
		Method:  http.MethodPost,
		Headers: headers,
		Body: map[string]interface{}{
			"title":     in.Title,
			"body":      in.Body,
			"labels":    in.Labels,
			"assignees": in.Assignees,
		},
		Timeout: ts.opts.Timeout,
	})
	if err != nil {
		return Issue{}, err
	}
	return Issue{
		IssueNumber: resp.Data.Number,
		URL:         resp.Data.HTMLURL,
		State:       resp.Data.State,
	}, nil
}

// GetPRInput is the input of github:get_pr.
type GetPRInput struct {
	Repo     string `json:"repo" validate:"required" desc:"Repository in owner/name form"`
	PRNumber int    `json:"prNumber" validate:"required,min=1" desc:"Pull request number"`
}

// PullRequest is the detail view of a pull request.
type PullRequest struct {
	Number       int      `json:"number"`
	Title        string   `json:"title"`
	Author       string   `json:"author"`
	State        string   `json:"state"`
	ChangedFiles []string `json:"changedFiles"`
	Additions    int      `json:"additions"`
	Deletions    int      `json:"deletions"`
	URL          string   `json:"url"`
}

func (ts *toolset) getPR() tools.Tool {
	return tools.New(GetPR, "Get pull request details",
		func(ctx context.Context, in GetPRInput) (PullRequest, error) {
			return PullRequest{
				Number:       in.PRNumber,
				Title:        "Example PR",
				Author:       "developer",
				State:        "open",
				ChangedFiles: []string{"src/index.ts", "src/utils.ts"},
				Additions:    45,
				Deletions:    12,
				URL:          fmt.Sprintf("https://github.com/%s/pull/%d", in.Repo, in.PRNumber),
			}, nil
		})
}

// ListPRsInput is the input of github:list_prs.
type ListPRsInput struct {
	Repo  string `json:"repo" validate:"required" desc:"Repository in owner/name form"`
	State string `json:"state,omitempty" validate:"oneof=open closed all" default:"open" desc:"Filter by state"`
	Limit int    `json:"limit,omitempty" validate:"min=1,max=100" default:"30" desc:"Maximum number of results"`
}

// PRSummary is one entry of a pull request listing.
type PRSummary struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Author string `json:"author"`
	State  string `json:"state"`
}

// PRList is the output of github:list_prs.
type PRList struct {
	PRs   []PRSummary `json:"prs"`
	Total int         `json:"total"`
}

func (ts *toolset) listPRs() tools.Tool {
	return tools.New(ListPRs, "List pull requests in a repository",
		func(ctx context.Context, in ListPRsInput) (PRList, error) {
			state := in.State
			if state == "all" {
				state = "open"
			}
			prs := []PRSummary{
				{Number: 123, Title: "Add new feature", Author: "dev1", State: state},
				{Number: 122, Title: "Fix bug", Author: "dev2", State: state},
			}
			if len(prs) > in.Limit {
				prs = prs[:in.Limit]
			}
			return PRList{PRs: prs, Total: len(prs)}, nil
		})
}

// MergePRInput is the input of github:merge_pr.
type MergePRInput struct {
	Repo        string `json:"repo" validate:"required" desc:"Repository in owner/name form"`
	PRNumber    int    `json:"prNumber" validate:"required,min=1" desc:"Pull request number"`
	MergeMethod string `json:"mergeMethod,omitempty" validate:"oneof=merge squash rebase" default:"merge" desc:"Merge strategy"`
}

// MergeResult is the output of github:merge_pr.
type MergeResult struct {
	Merged  bool   `json:"merged"`
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

func (ts *toolset) mergePR() tools.Tool {
	return tools.New(MergePR, "Merge a pull request",
		func(ctx context.Context, in MergePRInput) (MergeResult, error) {
			ts.logger.Info("Merging pull request",
				zap.String("repo", in.Repo),
				zap.Int("prNumber", in.PRNumber),
				zap.String("mergeMethod", in.MergeMethod),
			)
			return MergeResult{
				Merged:  true,
				SHA:     "abc123",
				Message: fmt.Sprintf("Merged PR #%d using %s", in.PRNumber, in.MergeMethod),
			}, nil
		})
}

// ListReposInput is the input of github:list_repos.
type ListReposInput struct {
	Owner string `json:"owner" validate:"required" desc:"User or organization"`
	Type  string `json:"type,omitempty" validate:"oneof=all public private" default:"all" desc:"Visibility filter"`
	Sort  string `json:"sort,omitempty" validate:"oneof=created updated pushed full_name" default:"updated" desc:"Sort order"`
}

// RepoSummary is one entry of a repository listing.
type RepoSummary struct {
	Name     string `json:"name"`
	FullName string `json:"fullName"`
	Private  bool   `json:"private"`
	Stars    int    `json:"stars"`
}

// RepoList is the output of github:list_repos.
type RepoList struct {
	Repos []RepoSummary `json:"repos"`
	Total int           `json:"total"`
}

func (ts *toolset) listRepos() tools.Tool {
	return tools.New(ListRepos, "List repositories of a user or organization",
		func(ctx context.Context, in ListReposInput) (RepoList, error) {
			repos := []RepoSummary{
				{Name: "repo1", FullName: in.Owner + "/repo1", Private: false, Stars: 1234},
				{Name: "repo2", FullName: in.Owner + "/repo2", Private: in.Type == "private", Stars: 567},
			}
			return RepoList{Repos: repos, Total: len(repos)}, nil
		})
}

// GetRepoInput is the input of github:get_repo.
type GetRepoInput struct {
	Repo string `json:"repo" validate:"required,contains=/" desc:"Repository in owner/name form"`
}

// Repository is the detail view of a repository.
type Repository struct {
	Name          string   `json:"name"`
	FullName      string   `json:"fullName"`
	Description   string   `json:"description"`
	Stars         int      `json:"stars"`
	Forks         int      `json:"forks"`
	DefaultBranch string   `json:"defaultBranch"`
	Topics        []string `json:"topics"`
}

func (ts *toolset) getRepo() tools.Tool {
	return tools.New(GetRepo, "Get repository metadata",
		func(ctx context.Context, in GetRepoInput) (Repository, error) {
			_, name, _ := strings.Cut(in.Repo, "/")
			return Repository{
				Name:          name,
				FullName:      in.Repo,
				Description:   "Example repository",
				Stars:         1234,
				Forks:         567,
				DefaultBranch: "main",
				Topics:        []string{"typescript", "ai", "agents"},
			}, nil
		})
}

// CreateCommentInput is the input of github:create_comment.
type CreateCommentInput struct {
	Repo     string `json:"repo" validate:"required" desc:"Repository in owner/name form"`
	PRNumber int    `json:"prNumber" validate:"required,min=1" desc:"Pull request or issue number"`
	Body     string `json:"body" validate:"required" desc:"Comment text (markdown)"`
}

// Comment is a created comment.
type Comment struct {
	CommentID int    `json:"commentId"`
	URL       string `json:"url"`
}

func (ts *toolset) createComment() tools.Tool {
	return tools.New(CreateComment, "Comment on a pull request or issue",
		func(ctx context.Context, in CreateCommentInput) (Comment, error) {
			ts.logger.Info("Creating GitHub comment",
				zap.String("repo", in.Repo),
				zap.Int("prNumber", in.PRNumber),
			)
			return Comment{
				CommentID: 123456,
				URL:       fmt.Sprintf("https://github.com/%s/pull/%d#issuecomment-123456", in.Repo, in.PRNumber),
			}, nil
		})
}
