package app

import (
	"testing"

	"stackctl/internal/config"
)

func TestBuildSupervisor_CommandOnlyStackNeedsNoDocker(t *testing.T) {
	reg, err := config.Parse([]byte(`
name: workers
services:
  - name: indexer
    command: ["./indexer"]
  - name: crawler
    command: ["./crawler"]
    dependsOn: [indexer]
`))
	if err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}

	sup, err := buildSupervisor(reg, "")
	if err != nil {
		t.Fatalf("buildSupervisor failed: %v", err)
	}
	if sup == nil {
		t.Fatal("Expected a supervisor")
	}
	if got := len(sup.Snapshot()); got != 2 {
		t.Errorf("Snapshot length = %d, want 2", got)
	}
}
