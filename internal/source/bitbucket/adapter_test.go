package bitbucket

import (
	"testing"

	"github.com/gustaf30/nexus/internal/model"
)

func samplePR() PullRequest {
	return PullRequest{
		ID:          7,
		Title:       "Add retry to uploader",
		Description: "Retries transient upload failures.",
		State:       "OPEN",
		UpdatedDate: 1700000000000,
		FromRef: Ref{
			DisplayID:    "feature/retry",
			LatestCommit: "abc123",
			Repository:   Repository{Slug: "uploader", Project: Project{Key: "CORE"}},
		},
		ToRef: Ref{
			DisplayID:  "main",
			Repository: Repository{Slug: "uploader", Project: Project{Key: "CORE"}},
		},
		Author: Participant{User: User{Name: "dana", DisplayName: "Dana"}},
	}
}

func TestPRToItem(t *testing.T) {
	item := New("bitbucket").prToItem(samplePR(), "https://bitbucket.example.com")

	if item.ID != "bitbucket-CORE/uploader/7" {
		t.Errorf("id = %s", item.ID)
	}
	if item.SourceID != "CORE/uploader/7" {
		t.Errorf("sourceId = %s", item.SourceID)
	}
	if item.Kind != model.KindPullRequest {
		t.Errorf("kind = %s", item.Kind)
	}
	if want := "https://bitbucket.example.com/projects/CORE/repos/uploader/pull-requests/7/overview"; item.URL != want {
		t.Errorf("url = %s, want %s", item.URL, want)
	}
	if item.Timestamp != 1700000000 {
		t.Errorf("timestamp = %d, want seconds", item.Timestamp)
	}
	if item.Metadata["fromBranch"] != "feature/retry" || item.Metadata["state"] != "OPEN" {
		t.Errorf("metadata = %v", item.Metadata)
	}
}

func TestReviewPending(t *testing.T) {
	pr := samplePR()
	pr.Reviewers = []Participant{
		{User: User{Name: "gustaf"}, Approved: false, Status: "UNAPPROVED"},
		{User: User{Name: "dana"}, Approved: true, Status: "APPROVED"},
	}

	if !reviewPending(pr, "gustaf") {
		t.Error("unapproved reviewer still owes a review")
	}
	if reviewPending(pr, "dana") {
		t.Error("approved reviewer owes nothing")
	}

	pr.Reviewers[0].Status = "NEEDS_WORK"
	if reviewPending(pr, "gustaf") {
		t.Error("needs-work verdict counts as a completed review")
	}

	// Inbox membership without a reviewer entry still counts as owed.
	if !reviewPending(samplePR(), "gustaf") {
		t.Error("missing reviewer entry should default to pending")
	}
}
