package extract

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckpointMarkAndContains(t *testing.T) {
	dir := t.TempDir()

	cp, err := OpenCheckpoint(dir, "run-1")
	if err != nil {
		t.Fatalf("failed to open checkpoint: %v", err)
	}
	defer cp.Close()

	if cp.Contains("src::a") {
		t.Fatalf("fresh checkpoint should contain nothing")
	}
	if err := cp.MarkCompleted("src::a"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if !cp.Contains("src::a") {
		t.Fatalf("expected marked source to be contained")
	}
	// Marking twice is a no-op.
	if err := cp.MarkCompleted("src::a"); err != nil {
		t.Fatalf("second mark failed: %v", err)
	}
}

func TestCheckpointSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	cp, err := OpenCheckpoint(dir, "run-1")
	if err != nil {
		t.Fatalf("failed to open checkpoint: %v", err)
	}
	if err := cp.MarkCompleted("src::a"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	if err := cp.MarkCompleted("src::b"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	cp.Close()

	reopened, err := OpenCheckpoint(dir, "run-1")
	if err != nil {
		t.Fatalf("failed to reopen checkpoint: %v", err)
	}
	defer reopened.Close()

	if !reopened.Contains("src::a") || !reopened.Contains("src::b") {
		t.Fatalf("expected completed sources to survive reopen")
	}
	if reopened.Contains("src::c") {
		t.Fatalf("unexpected source in reopened checkpoint")
	}
}

func TestCheckpointIgnoresTornTrailingLine(t *testing.T) {
	dir := t.TempDir()

	cp, err := OpenCheckpoint(dir, "run-1")
	if err != nil {
		t.Fatalf("failed to open checkpoint: %v", err)
	}
	if err := cp.MarkCompleted("src::a"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}
	cp.Close()

	path := filepath.Join(dir, "run-1.jsonl")
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		t.Fatalf("failed to open checkpoint file: %v", err)
	}
	if _, err := f.WriteString(`{"source_id":"src::b","sta`); err != nil {
		t.Fatalf("failed to append torn line: %v", err)
	}
	f.Close()

	reopened, err := OpenCheckpoint(dir, "run-1")
	if err != nil {
		t.Fatalf("failed to reopen checkpoint: %v", err)
	}
	defer reopened.Close()

	if !reopened.Contains("src::a") {
		t.Fatalf("expected intact record to survive")
	}
	if reopened.Contains("src::b") {
		t.Fatalf("torn record must not count as completed")
	}
}

func TestCheckpointCollectionsAreIndependent(t *testing.T) {
	dir := t.TempDir()

	first, err := OpenCheckpoint(dir, "run-1")
	if err != nil {
		t.Fatalf("failed to open checkpoint: %v", err)
	}
	defer first.Close()
	if err := first.MarkCompleted("src::a"); err != nil {
		t.Fatalf("mark failed: %v", err)
	}

	second, err := OpenCheckpoint(dir, "run-2")
	if err != nil {
		t.Fatalf("failed to open checkpoint: %v", err)
	}
	defer second.Close()

	if second.Contains("src::a") {
		t.Fatalf("checkpoints must be scoped per collection")
	}
}
