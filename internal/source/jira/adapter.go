// Package jira is the built-in Jira Server/DC source. Each poll searches
// for the user's unresolved issues and emits notification signals the
// heuristic engine weighs: assignment, blocker priority, imminent due
// dates, and comment mentions.
package jira

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gustaf30/nexus/internal/model"
	"github.com/gustaf30/nexus/internal/plugin"
)

// defaultJQL is used when no custom JQL is configured.
const defaultJQL = "assignee=currentUser() AND " +
	"resolution=Unresolved ORDER BY updated DESC"

// maxResults bounds one poll's search page.
const maxResults = 50

// fetchFields are the Jira fields requested during poll searches.
var fetchFields = []string{
	"summary", "status", "priority", "assignee", "reporter", "issuetype",
	"project", "created", "updated", "labels", "duedate", "description",
	"comment",
}

// Signal names this source can emit.
const (
	signalAssigned  = "assigned_to_me"
	signalBlocker   = "priority_p1_blocker"
	signalMentioned = "mentioned_in_comment"
	signalDeadline  = "deadline_24h"
)

// settings recognized in the source config blob.
const (
	settingBaseURL  = "base_url"
	settingJQL      = "jql"
	settingUsername = "username"
)

// Source implements plugin.Plugin for Jira. One instance serves one
// configured source, so several Jira servers can be polled side by side
// under distinct identifiers.
type Source struct {
	id  string
	now func() time.Time
}

// New creates a Jira source serving the given source identifier. An
// empty identifier falls back to the type name.
func New(id string) *Source {
	if id == "" {
		id = string(model.SourceTypeJira)
	}
	return &Source{id: id, now: time.Now}
}

func (s *Source) Source() string {
	return s.id
}

// Poll searches for the user's open issues and converts them into items
// and notification candidates.
func (s *Source) Poll(ctx context.Context, config []byte) ([]byte, error) {
	cfg, client, err := s.connect(config)
	if err != nil {
		return nil, err
	}

	jql := cfg.Settings[settingJQL]
	if jql == "" {
		jql = defaultJQL
	}

	body := map[string]interface{}{
		"jql":        jql,
		"fields":     fetchFields,
		"startAt":    0,
		"maxResults": maxResults,
	}

	var searchResp SearchResponse
	if err := client.Post(ctx, "/rest/api/2/search", body, &searchResp); err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}

	baseURL := strings.TrimRight(cfg.Settings[settingBaseURL], "/")
	username := cfg.Settings[settingUsername]

	result := plugin.PollResult{}
	for _, issue := range searchResp.Issues {
		item := s.issueToItem(issue, baseURL)
		result.Items = append(result.Items, item)

		if reasons := s.issueSignals(issue, username); len(reasons) > 0 {
			result.Notifications = append(result.Notifications, plugin.PollNotification{
				ItemID:  item.ID,
				Reasons: reasons,
			})
		}
	}

	return plugin.MarshalResult(result)
}

// CheckConnection verifies credentials by calling GET /rest/api/2/myself.
func (s *Source) CheckConnection(ctx context.Context, config []byte) ([]byte, error) {
	_, client, err := s.connect(config)
	if err != nil {
		return nil, err
	}

	var me Myself
	if err := client.Get(ctx, "/rest/api/2/myself", &me); err != nil {
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
		Message:    "authenticated as " + me.DisplayName,
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
		return plugin.Config{}, nil, fmt.Errorf("jira: %s setting is required", settingBaseURL)
	}
	if cfg.Credential == "" {
		return plugin.Config{}, nil, &plugin.AuthError{
			Source:  s.id,
			Message: "no Personal Access Token configured",
		}
	}

	return cfg, NewClient(baseURL, cfg.Credential), nil
}

// issueToItem converts a Jira issue into the normalized item shape.
func (s *Source) issueToItem(issue Issue, baseURL string) plugin.PollItem {
	author := ""
	if issue.Fields.Reporter != nil {
		author = issue.Fields.Reporter.DisplayName
	}

	metadata := map[string]any{
		"status":   issue.Fields.Status.Name,
		"priority": issue.Fields.Priority.Name,
		"project":  issue.Fields.Project.Key,
		"type":     issue.Fields.IssueType.Name,
	}
	if issue.Fields.DueDate != "" {
		metadata["dueDate"] = issue.Fields.DueDate
	}

	tags := issue.Fields.Labels
	if tags == nil {
		tags = []string{}
	}

	return plugin.PollItem{
		ID:        s.id + "-" + issue.Key,
		Source:    s.id,
		SourceID:  issue.Key,
		Kind:      model.KindTicket,
		Title:     issue.Fields.Summary,
		Summary:   truncate(issue.Fields.Description, 280),
		URL:       baseURL + "/browse/" + issue.Key,
		Author:    author,
		Timestamp: parseJiraTime(issue.Fields.Updated).Unix(),
		Metadata:  metadata,
		Tags:      tags,
	}
}

// issueSignals derives the notification signals that fired for an issue.
func (s *Source) issueSignals(issue Issue, username string) []string {
	var reasons []string

	if issue.Fields.Assignee != nil {
		reasons = append(reasons, signalAssigned)
	}
	if isBlockerPriority(issue.Fields.Priority) {
		reasons = append(reasons, signalBlocker)
	}
	if mentionedInComments(issue.Fields.Comment, username) {
		reasons = append(reasons, signalMentioned)
	}
	if dueWithin(issue.Fields.DueDate, 24*time.Hour, s.now()) {
		reasons = append(reasons, signalDeadline)
	}

	return reasons
}

// isBlockerPriority reports whether the priority is in the top band.
// Jira Server priority IDs count down from 1 (Blocker/Highest).
func isBlockerPriority(priority Priority) bool {
	if id, err := strconv.Atoi(priority.ID); err == nil && id <= 2 {
		return true
	}
	switch strings.ToLower(priority.Name) {
	case "blocker", "highest", "p1":
		return true
	}
	return false
}

// mentionedInComments reports whether any comment mentions the user,
// either as a Jira mention markup ([~user]) or a plain @user.
func mentionedInComments(page *CommentPage, username string) bool {
	if page == nil || username == "" {
		return false
	}
	markup := "[~" + username + "]"
	plain := "@" + username
	for _, c := range page.Comments {
		if strings.Contains(c.Body, markup) || strings.Contains(c.Body, plain) {
			return true
		}
	}
	return false
}

// dueWithin reports whether the issue's due date falls inside the window
// from now. Jira due dates are bare dates; the deadline is the end of
// that day in local time.
func dueWithin(dueDate string, window time.Duration, now time.Time) bool {
	if dueDate == "" {
		return false
	}
	day, err := time.ParseInLocation("2006-01-02", dueDate, time.Local)
	if err != nil {
		return false
	}
	deadline := day.Add(24 * time.Hour)
	return deadline.After(now) && deadline.Sub(now) <= window
}

// parseJiraTime parses a Jira timestamp string. Jira uses the format
// "2006-01-02T15:04:05.000+0000".
func parseJiraTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}

	layouts := []string{
		"2006-01-02T15:04:05.000-0700",
		"2006-01-02T15:04:05.000+0000",
		"2006-01-02T15:04:05-0700",
		time.RFC3339,
	}

	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}

	return time.Time{}
}

// truncate shortens s to at most n runes, appending an ellipsis when
// anything was cut.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "…"
}
