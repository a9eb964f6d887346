package cmd

import (
	"testing"

	"stackctl/internal/config"
)

func TestNewDownCmdFlags(t *testing.T) {
	downCmd := newDownCmd()

	purgeFlag := downCmd.Flags().Lookup("purge")
	if purgeFlag == nil {
		t.Fatal("Expected --purge flag")
	}
	if purgeFlag.DefValue != "false" {
		t.Errorf("purge default = %q, want %q", purgeFlag.DefValue, "false")
	}
}

func TestHasContainerServices(t *testing.T) {
	commandOnly, err := config.Parse([]byte(`
name: workers
services:
  - name: indexer
    command: ["./indexer"]
`))
	if err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	if hasContainerServices(commandOnly) {
		t.Error("Expected no container services in a command-only stack")
	}

	mixed, err := config.Parse([]byte(`
name: mixed
services:
  - name: db
    image: postgres:16
  - name: worker
    command: ["./worker"]
`))
	if err != nil {
		t.Fatalf("parsing manifest: %v", err)
	}
	if !hasContainerServices(mixed) {
		t.Error("Expected container services in a mixed stack")
	}
}
