// Package bitbucket is the built-in Bitbucket Server/DC source. Each
// poll reads the user's pull request inbox (both roles) and emits signals
// for pending review requests, failed builds on authored PRs, and new
// comments from other people.
package bitbucket

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/plugin"
)

// Signal names this source can emit.
const (
	signalReviewRequested = "pr_review_requested"
	signalCIFailed        = "ci_failed"
	signalPRComment       = "pr_comment"
)

// settings recognized in the source config blob.
const (
	settingBaseURL  = "base_url"
	settingUsername = "username"
)

// commentWindow bounds how far back a comment may be and still fire the
// pr_comment signal. Older discussion is not news.
const commentWindow = 24 * time.Hour

// Source implements plugin.Plugin for Bitbucket. One instance serves one
// configured source identifier.
type Source struct {
	id  string
	now func() time.Time
}

// New creates a Bitbucket source serving the given source identifier. An
// empty identifier falls back to the type name.
func New(id string) *Source {
	if id == "" {
		id = string(model.SourceTypeBitbucket)
	}
	return &Source{id: id, now: time.Now}
}

func (s *Source) Source() string {
	return s.id
}

// Poll reads the user's PR inbox and converts it into items and
// notification candidates.
func (s *Source) Poll(ctx context.Context, config []byte) ([]byte, error) {
	cfg, client, err := s.connect(config)
	if err != nil {
		return nil, err
	}
	username := cfg.Settings[settingUsername]
	baseURL := cfg.Settings[settingBaseURL]

	reviewing, err := client.GetAllPRPages(
		ctx, "/rest/api/1.0/inbox/pull-requests?role=REVIEWER", 25,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching review inbox: %w", err)
	}

	authored, err := client.GetAllPRPages(
		ctx, "/rest/api/1.0/inbox/pull-requests?role=AUTHOR", 25,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching authored inbox: %w", err)
	}

	result := plugin.PollResult{}
	seen := make(map[string]bool)

	for _, pr := range reviewing {
		item := s.prToItem(pr, baseURL)
		if seen[item.ID] {
			continue
		}
		seen[item.ID] = true
		result.Items = append(result.Items, item)

		if reviewPending(pr, username) {
			result.Notifications = append(result.Notifications, plugin.PollNotification{
				ItemID:  item.ID,
				Reasons: []string{signalReviewRequested},
			})
		}
	}

	for _, pr := range authored {
		item := s.prToItem(pr, baseURL)
		if !seen[item.ID] {
			seen[item.ID] = true
			result.Items = append(result.Items, item)
		}

		reasons, err := s.authoredSignals(ctx, client, pr, username)
		if err != nil {
			return nil, err
		}
		if len(reasons) > 0 {
			result.Notifications = append(result.Notifications, plugin.PollNotification{
				ItemID:  item.ID,
				Reasons: reasons,
			})
		}
	}

	return plugin.MarshalResult(result)
}

// CheckConnection verifies credentials by fetching the user's profile.
func (s *Source) CheckConnection(ctx context.Context, config []byte) ([]byte, error) {
	cfg, client, err := s.connect(config)
	if err != nil {
		return nil, err
	}
	username := cfg.Settings[settingUsername]
	if username == "" {
		return nil, fmt.Errorf("bitbucket: %s setting is required", settingUsername)
	}

	var user User
	err = client.Get(ctx, "/rest/api/1.0/users/"+username, &user)
	if err != nil {
		var authErr *plugin.AuthError
		if errors.As(err, &authErr) {
			return plugin.MarshalStatus(plugin.ConnectionStatus{
				OK:         false,
				StatusCode: 401,
				Message:    authErr.Message,
			})
		}
		return nil, err
	}

	return plugin.MarshalStatus(plugin.ConnectionStatus{
		OK:         true,
		StatusCode: 200,
		Message:    "authenticated as " + user.DisplayName,
	})
}

// connect parses the config blob and builds an authenticated client.
func (s *Source) connect(config []byte) (plugin.Config, *Client, error) {
	cfg, err := plugin.ParseConfig(config)
	if err != nil {
		return plugin.Config{}, nil, err
	}

	baseURL := cfg.Settings[settingBaseURL]
	if baseURL == "" {
		return plugin.Config{}, nil, fmt.Errorf("bitbucket: %s setting is required", settingBaseURL)
	}
	if cfg.Credential == "" {
		return plugin.Config{}, nil, &plugin.AuthError{
			Source:  s.id,
			Message: "no Personal Access Token configured",
		}
	}

	return cfg, NewClient(baseURL, cfg.Credential), nil
}

// authoredSignals checks an authored PR for failed builds on its latest
// commit and for fresh comments from other people.
func (s *Source) authoredSignals(
	ctx context.Context,
	client *Client,
	pr PullRequest,
	username string,
) ([]string, error) {
	var reasons []string

	if pr.FromRef.LatestCommit != "" {
		var builds BuildStatusPage
		path := "/rest/build-status/1.0/commits/" + pr.FromRef.LatestCommit
		if err := client.Get(ctx, path, &builds); err != nil {
			return nil, fmt.Errorf("fetching build status for %s: %w", prKey(pr), err)
		}
		for _, b := range builds.Values {
			if b.State == "FAILED" {
				reasons = append(reasons, signalCIFailed)
				break
			}
		}
	}

	var activities ActivityPage
	path := fmt.Sprintf(
		"/rest/api/1.0/projects/%s/repos/%s/pull-requests/%d/activities?limit=25",
		pr.ToRef.Repository.Project.Key, pr.ToRef.Repository.Slug, pr.ID,
	)
	if err := client.Get(ctx, path, &activities); err != nil {
		return nil, fmt.Errorf("fetching activities for %s: %w", prKey(pr), err)
	}

	cutoff := s.now().Add(-commentWindow).UnixMilli()
	for _, a := range activities.Values {
		if a.Action != "COMMENTED" || a.Comment == nil {
			continue
		}
		if a.User.Name == username {
			continue
		}
		if a.CreatedDate < cutoff {
			continue
		}
		reasons = append(reasons, signalPRComment)
		break
	}

	return reasons, nil
}

// reviewPending reports whether the user still owes a review on the PR.
func reviewPending(pr PullRequest, username string) bool {
	for _, r := range pr.Reviewers {
		if r.User.Name == username {
			return !r.Approved && r.Status != "NEEDS_WORK"
		}
	}
	// In the reviewer inbox but not in the reviewer list; treat as owed.
	return true
}

// prToItem converts a pull request into the normalized item shape.
func (s *Source) prToItem(pr PullRequest, baseURL string) plugin.PollItem {
	projectKey := pr.ToRef.Repository.Project.Key
	repoSlug := pr.ToRef.Repository.Slug

	url := fmt.Sprintf(
		"%s/projects/%s/repos/%s/pull-requests/%d/overview",
		baseURL, projectKey, repoSlug, pr.ID,
	)

	return plugin.PollItem{
		ID:        s.id + "-" + prKey(pr),
		Source:    s.id,
		SourceID:  prKey(pr),
		Kind:      model.KindPullRequest,
		Title:     pr.Title,
		Summary:   pr.Description,
		URL:       url,
		Author:    pr.Author.User.DisplayName,
		Timestamp: pr.UpdatedDate / 1000,
		Metadata: map[string]any{
			"state":      pr.State,
			"project":    projectKey,
			"repository": repoSlug,
			"fromBranch": pr.FromRef.DisplayID,
			"toBranch":   pr.ToRef.DisplayID,
		},
		Tags: []string{},
	}
}

// prKey builds a stable per-instance identifier for a pull request.
func prKey(pr PullRequest) string {
	return pr.ToRef.Repository.Project.Key + "/" +
		pr.ToRef.Repository.Slug + "/" + strconv.Itoa(pr.ID)
}
