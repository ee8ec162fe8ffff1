package email

import (
	"testing"
	"time"

	"github.com/gustaf30/nexus/internal/model"
)

func sampleMessage() Message {
	return Message{
		Envelope: Envelope{
			MessageID: "<abc123@mail.example.com>",
			Subject:   "Quarterly numbers",
			From:      "Dana Smith",
			FromAddr:  "dana@example.com",
			Date:      time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC),
			UID:       42,
		},
		TextBody: "Hi,\n\nplease  review the attached   numbers before Friday.\n",
	}
}

func TestMessageSignals(t *testing.T) {
	vips := parseVIPList("dana@example.com, boss@example.com")

	tests := []struct {
		name string
		msg  func() Message
		now  time.Time
		want []string
	}{
		{
			name: "vip sender, freshly arrived",
			msg:  sampleMessage,
			now:  time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC),
			want: []string{signalVIPSender},
		},
		{
			name: "vip sender, stale and with attachment",
			msg: func() Message {
				m := sampleMessage()
				m.Attachments = []Attachment{{Filename: "q3.xlsx"}}
				return m
			},
			now:  time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
			want: []string{signalVIPSender, signalUnreadOld, signalAttachment},
		},
		{
			name: "non-vip, fresh, plain",
			msg: func() Message {
				m := sampleMessage()
				m.Envelope.FromAddr = "noreply@example.com"
				m.Envelope.From = "Build Bot"
				return m
			},
			now:  time.Date(2026, 3, 10, 8, 30, 0, 0, time.UTC),
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := messageSignals(tt.msg(), vips, tt.now)
			if len(got) != len(tt.want) {
				t.Fatalf("signals = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("signals = %v, want %v", got, tt.want)
					break
				}
			}
		})
	}
}

func TestIsVIPSenderMatchesNameToo(t *testing.T) {
	vips := parseVIPList("Dana Smith")
	if !isVIPSender(sampleMessage().Envelope, vips) {
		t.Error("display name match should count")
	}
	if isVIPSender(sampleMessage().Envelope, nil) {
		t.Error("empty VIP list should never match")
	}
}

func TestMessageToItem(t *testing.T) {
	s := New("email")
	item := s.messageToItem(sampleMessage())

	if item.ID != "email-<abc123@mail.example.com>" {
		t.Errorf("id = %s", item.ID)
	}
	if item.Source != string(model.SourceTypeEmail) || item.Kind != model.KindMessage {
		t.Errorf("source/kind = %s/%s", item.Source, item.Kind)
	}
	if item.Title != "Quarterly numbers" || item.Author != "Dana Smith" {
		t.Errorf("title/author = %s/%s", item.Title, item.Author)
	}
	if item.Summary != "Hi, please review the attached numbers before Friday." {
		t.Errorf("summary = %q", item.Summary)
	}

	// Missing Message-ID falls back to the mailbox UID.
	msg := sampleMessage()
	msg.Envelope.MessageID = ""
	item = s.messageToItem(msg)
	if item.SourceID != "uid-42" {
		t.Errorf("fallback sourceId = %s", item.SourceID)
	}
}

func TestParseVIPList(t *testing.T) {
	got := parseVIPList(" Dana@example.com ,, BOSS@example.com ")
	if len(got) != 2 || got[0] != "dana@example.com" || got[1] != "boss@example.com" {
		t.Errorf("parseVIPList = %v", got)
	}
	if parseVIPList("") != nil {
		t.Error("empty list should be nil")
	}
}
