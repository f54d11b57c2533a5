package scriptrunner

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type testSink struct {
	mu    sync.Mutex
	lines []string
}

func (s *testSink) Logf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, fmt.Sprintf(format, args...))
}

func (s *testSink) snapshot() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.lines))
	copy(out, s.lines)
	return out
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "script.sh")
	if err := os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestRunnerCoalescesBurstIntoOneInvocation(t *testing.T) {
	script := writeScript(t, "echo \"invoked with $# args: $@\"\n")
	sink := &testSink{}
	r := New(script, "Reduction: ", sink)
	go r.Run()
	defer r.Shutdown()

	r.Enqueue("a.fits.gz")
	r.Enqueue("b.fits.gz")
	r.Enqueue("c.fits.gz")

	deadline := time.After(2 * time.Second)
	for {
		lines := sink.snapshot()
		if len(lines) > 0 {
			found := false
			for _, l := range lines {
				if l == "Reduction: invoked with 3 args: a.fits.gz b.fits.gz c.fits.gz" {
					found = true
				}
			}
			if found {
				break
			}
		}
		select {
		case <-deadline:
			t.Fatalf("expected one coalesced invocation, got lines: %v", lines)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunnerTagsOutputWithPrefix(t *testing.T) {
	script := writeScript(t, "echo line-one\necho line-two\n")
	sink := &testSink{}
	r := New(script, "Preview: ", sink)
	go r.Run()
	defer r.Shutdown()

	r.Enqueue("preview.fits.gz")

	deadline := time.After(2 * time.Second)
	for {
		lines := sink.snapshot()
		count := 0
		for _, l := range lines {
			if l == "Preview: line-one" || l == "Preview: line-two" {
				count++
			}
		}
		if count == 2 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("expected both tagged lines, got: %v", lines)
		case <-time.After(10 * time.Millisecond):
		}
	}
}
