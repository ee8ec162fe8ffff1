// Package email is the built-in IMAP source. Each poll fetches unread
// inbox messages and emits signals for VIP senders, mail that has sat
// unread for hours, and messages carrying attachments.
package email

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

// Signal names this source can emit.
const (
	signalVIPSender  = "vip_sender"
	signalUnreadOld  = "unread_over_4h"
	signalAttachment = "has_attachment"
)

// settings recognized in the source config blob.
const (
	settingHost       = "host"
	settingPort       = "port"
	settingUsername   = "username"
	settingTLS        = "tls"
	settingVIPSenders = "vip_senders"
)

const (
	// unreadWindow is how long a message may sit unread before the
	// unread_over_4h signal fires.
	unreadWindow = 4 * time.Hour

	// fetchLimit bounds one poll's message fetch.
	fetchLimit = 50
)

// Source implements plugin.Plugin for IMAP email. One instance serves
// one configured mailbox identifier.
type Source struct {
	id  string
	now func() time.Time
}

// New creates an email source serving the given source identifier. An
// empty identifier falls back to the type name.
func New(id string) *Source {
	if id == "" {
		id = string(model.SourceTypeEmail)
	}
	return &Source{id: id, now: time.Now}
}

func (s *Source) Source() string {
	return s.id
}

// Poll fetches unread inbox messages and converts them into items and
// notification candidates.
func (s *Source) Poll(ctx context.Context, config []byte) ([]byte, error) {
	cfg, client, err := s.connect(config)
	if err != nil {
		return nil, err
	}

	messages, err := client.FetchUnread(ctx, fetchLimit)
	if err != nil {
		return nil, err
	}

	vips := parseVIPList(cfg.Settings[settingVIPSenders])
	now := s.now()

	result := plugin.PollResult{}
	for _, msg := range messages {
		item := s.messageToItem(msg)
		result.Items = append(result.Items, item)

		if reasons := messageSignals(msg, vips, now); len(reasons) > 0 {
			result.Notifications = append(result.Notifications, plugin.PollNotification{
				ItemID:  item.ID,
				Reasons: reasons,
			})
		}
	}

	return plugin.MarshalResult(result)
}

// CheckConnection verifies credentials by logging in and out.
func (s *Source) CheckConnection(ctx context.Context, config []byte) ([]byte, error) {
	_, client, err := s.connect(config)
	if err != nil {
		return nil, err
	}

	conn, err := client.Connect(ctx)
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
	_ = conn.Logout().Wait()

	return plugin.MarshalStatus(plugin.ConnectionStatus{
		OK:         true,
		StatusCode: 200,
		Message:    "authenticated as " + client.username,
	})
}

// connect parses the config blob and builds an IMAP client.
func (s *Source) connect(config []byte) (plugin.Config, *IMAPClient, error) {
	cfg, err := plugin.ParseConfig(config)
	if err != nil {
		return plugin.Config{}, nil, err
	}

	host := cfg.Settings[settingHost]
	if host == "" {
		return plugin.Config{}, nil, fmt.Errorf("email: %s setting is required", settingHost)
	}
	username := cfg.Settings[settingUsername]
	if username == "" {
		return plugin.Config{}, nil, fmt.Errorf("email: %s setting is required", settingUsername)
	}
	if cfg.Credential == "" {
		return plugin.Config{}, nil, &plugin.AuthError{
			Source:  s.id,
			Message: "no password configured for " + username,
		}
	}

	port := cfg.Settings[settingPort]
	if port == "" {
		port = "993"
	}
	useTLS := true
	if raw := cfg.Settings[settingTLS]; raw != "" {
		if parsed, err := strconv.ParseBool(raw); err == nil {
			useTLS = parsed
		}
	}

	return cfg, NewIMAPClient(host, port, username, cfg.Credential, useTLS), nil
}

// messageToItem converts a fetched message into the normalized item
// shape. Message-ID is the stable identity; the mailbox UID is only a
// fallback for servers that omit it.
func (s *Source) messageToItem(msg Message) plugin.PollItem {
	sourceID := msg.Envelope.MessageID
	if sourceID == "" {
		sourceID = "uid-" + strconv.FormatUint(uint64(msg.Envelope.UID), 10)
	}

	metadata := map[string]any{
		"from":        msg.Envelope.From,
		"fromAddr":    msg.Envelope.FromAddr,
		"attachments": len(msg.Attachments),
	}

	return plugin.PollItem{
		ID:        s.id + "-" + sourceID,
		Source:    s.id,
		SourceID:  sourceID,
		Kind:      model.KindMessage,
		Title:     msg.Envelope.Subject,
		Summary:   snippet(msg.TextBody, 280),
		URL:       "message:" + msg.Envelope.MessageID,
		Author:    msg.Envelope.From,
		Timestamp: msg.Envelope.Date.Unix(),
		Metadata:  metadata,
		Tags:      []string{},
	}
}

// messageSignals derives the notification signals for one unread message.
func messageSignals(msg Message, vips []string, now time.Time) []string {
	var reasons []string

	if isVIPSender(msg.Envelope, vips) {
		reasons = append(reasons, signalVIPSender)
	}
	if !msg.Envelope.Date.IsZero() && now.Sub(msg.Envelope.Date) > unreadWindow {
		reasons = append(reasons, signalUnreadOld)
	}
	if len(msg.Attachments) > 0 {
		reasons = append(reasons, signalAttachment)
	}

	return reasons
}

// isVIPSender reports whether the message sender matches any configured
// VIP entry, by address or display name, case-insensitively.
func isVIPSender(env Envelope, vips []string) bool {
	if len(vips) == 0 {
		return false
	}
	from := strings.ToLower(env.From)
	addr := strings.ToLower(env.FromAddr)
	for _, vip := range vips {
		if vip == "" {
			continue
		}
		if strings.Contains(addr, vip) || strings.Contains(from, vip) {
			return true
		}
	}
	return false
}

// parseVIPList splits the comma-separated vip_senders setting into
// normalized match terms.
func parseVIPList(raw string) []string {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	vips := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.ToLower(strings.TrimSpace(p)); trimmed != "" {
			vips = append(vips, trimmed)
		}
	}
	return vips
}

// snippet collapses whitespace and truncates the body for preview text.
func snippet(body string, n int) string {
	collapsed := strings.Join(strings.Fields(body), " ")
	runes := []rune(collapsed)
	if len(runes) <= n {
		return collapsed
	}
	return string(runes[:n]) + "…"
}
