package backend

import (
	"bytes"
	"testing"
	"time"
)

func TestParseGitLogRecord(t *testing.T) {
	t.Parallel()

	rec := bytes.Join([][]byte{
		[]byte("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"),
		[]byte("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb cccccccccccccccccccccccccccccccccccccccc"),
		[]byte("Alice"),
		[]byte("alice@example.com"),
		[]byte("2024-01-02T03:04:05+02:00"),
		[]byte("Subject line\n\nBody line\n"),
	}, []byte("\n"))

	commit, err := parseGitLogRecord(rec)
	if err != nil {
		t.Fatalf("parseGitLogRecord: %v", err)
	}
	if commit.ID != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" {
		t.Fatalf("unexpected id: %q", commit.ID)
	}
	if len(commit.Parents) != 2 || commit.Parents[0] != "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb" || commit.Parents[1] != "cccccccccccccccccccccccccccccccccccccccc" {
		t.Fatalf("unexpected parents: %#v", commit.Parents)
	}
	if commit.Author.Name != "Alice" || commit.Author.Email != "alice@example.com" {
		t.Fatalf("unexpected author: %#v", commit.Author)
	}
	if !commit.Author.When.Equal(time.Date(2024, 1, 2, 1, 4, 5, 0, time.UTC)) {
		t.Fatalf("unexpected author time: %v", commit.Author.When)
	}
	if commit.Author.TimezoneOffset() != 120 {
		t.Fatalf("unexpected timezone offset: %d", commit.Author.TimezoneOffset())
	}
	if commit.Message != "Subject line\n\nBody line\n" {
		t.Fatalf("unexpected message: %q", commit.Message)
	}
}

func TestParseGitLogRecord_RootCommitEmptyMessage(t *testing.T) {
	t.Parallel()

	commit, err := parseGitLogRecord([]byte("h\n\nan\nae\n2024-01-02T03:04:05Z\n"))
	if err != nil {
		t.Fatalf("parseGitLogRecord: %v", err)
	}
	if len(commit.Parents) != 0 {
		t.Fatalf("expected no parents, got %#v", commit.Parents)
	}
	if commit.Message != "" {
		t.Fatalf("expected empty message, got %q", commit.Message)
	}
}

func TestParseGitLogRecord_ShortRecord(t *testing.T) {
	t.Parallel()

	_, err := parseGitLogRecord([]byte("only\ntwo\nlines"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseGitLogRecord_BadDate(t *testing.T) {
	t.Parallel()

	_, err := parseGitLogRecord([]byte("h\n\nan\nae\nyesterday\nmsg\n"))
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestParseGitLog_MultipleRecords(t *testing.T) {
	t.Parallel()

	out := []byte("h2\nh1\nan\nae\n2024-01-02T03:04:05Z\nsecond\n\x00h1\n\nan\nae\n2024-01-01T03:04:05Z\nfirst\n\x00")
	commits, err := parseGitLog(out)
	if err != nil {
		t.Fatalf("parseGitLog: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].ID != "h2" || commits[1].ID != "h1" {
		t.Fatalf("unexpected order: %q, %q", commits[0].ID, commits[1].ID)
	}
	if len(commits[0].Parents) != 1 || commits[0].Parents[0] != "h1" {
		t.Fatalf("unexpected parents: %#v", commits[0].Parents)
	}
}
