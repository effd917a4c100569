package docs

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type gitScript struct {
	calls  []string
	staged bool
	failOn string
}

func (s *gitScript) run(_ context.Context, _ string, args ...string) (string, error) {
	call := strings.Join(args, " ")
	s.calls = append(s.calls, call)
	if s.failOn != "" && strings.HasPrefix(call, s.failOn) {
		return "", errors.New("exit 128: remote rejected")
	}
	if strings.HasPrefix(call, "diff --cached --quiet") && s.staged {
		return "", errors.New("exit 1: ")
	}
	return "", nil
}

func TestGitPusherCommitsAndPushes(t *testing.T) {
	t.Parallel()

	script := &gitScript{staged: true}
	g := NewGitPusher("/repo", "", "main")
	g.run = script.run

	if err := g.Push(context.Background(), "docs/digest.md", "Update chat digest 2025-03-02"); err != nil {
		t.Fatalf("push: %v", err)
	}

	want := []string{
		"add -- docs/digest.md",
		"diff --cached --quiet",
		"commit -m Update chat digest 2025-03-02",
		"push origin HEAD:main",
	}
	if strings.Join(script.calls, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected git calls %q", script.calls)
	}
}

func TestGitPusherNothingToCommit(t *testing.T) {
	t.Parallel()

	script := &gitScript{}
	g := NewGitPusher("/repo", "origin", "")
	g.run = script.run

	if err := g.Push(context.Background(), "digest.md", "msg"); err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(script.calls) != 2 {
		t.Fatalf("expected no commit or push, got %q", script.calls)
	}
}

func TestGitPusherPushFailure(t *testing.T) {
	t.Parallel()

	script := &gitScript{staged: true, failOn: "push"}
	g := NewGitPusher("/repo", "origin", "")
	g.run = script.run

	err := g.Push(context.Background(), "digest.md", "msg")
	if err == nil || !strings.Contains(err.Error(), "git push") {
		t.Fatalf("expected push error, got %v", err)
	}
}
