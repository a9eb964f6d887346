package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// parseIssues runs Parse and returns the collected validation issues.
func parseIssues(t *testing.T, manifest string) []string {
	t.Helper()
	_, err := Parse([]byte(manifest))
	var verr *ValidationError
	require.ErrorAs(t, err, &verr, "expected a ValidationError, got: %v", err)
	return verr.Issues
}

func assertHasIssue(t *testing.T, issues []string, substr string) {
	t.Helper()
	for _, issue := range issues {
		if strings.Contains(issue, substr) {
			return
		}
	}
	assert.Fail(t, "missing expected issue", "want substring %q in %v", substr, issues)
}

func TestValidate_RejectsInvalidManifests(t *testing.T) {
	tests := []struct {
		name      string
		manifest  string
		wantIssue string
	}{
		{
			name:      "no services",
			manifest:  `services: []`,
			wantIssue: "no services defined",
		},
		{
			name: "duplicate service names",
			manifest: `
services:
  - name: redis
    image: redis:7
  - name: redis
    image: redis:6
`,
			wantIssue: `service "redis" declared more than once`,
		},
		{
			name: "bad service name",
			manifest: `
services:
  - name: "-redis"
    image: redis:7
`,
			wantIssue: "name must match",
		},
		{
			name: "undeclared dependency",
			manifest: `
services:
  - name: api
    image: api:latest
    dependsOn: [postgres]
`,
			wantIssue: `depends on undeclared service "postgres"`,
		},
		{
			name: "self dependency",
			manifest: `
services:
  - name: api
    image: api:latest
    dependsOn: [api]
`,
			wantIssue: `depends on itself`,
		},
		{
			name: "dependency listed twice",
			manifest: `
services:
  - name: db
    image: db:1
  - name: api
    image: api:latest
    dependsOn: [db, db]
`,
			wantIssue: `lists dependency "db" twice`,
		},
		{
			name: "container without image",
			manifest: `
services:
  - name: api
    type: container
`,
			wantIssue: "requires an image",
		},
		{
			name: "command service without command",
			manifest: `
services:
  - name: worker
    type: command
`,
			wantIssue: "requires a command",
		},
		{
			name: "command service with image",
			manifest: `
services:
  - name: worker
    type: command
    command: ["./worker"]
    image: worker:latest
`,
			wantIssue: "must not set an image",
		},
		{
			name: "unknown service type",
			manifest: `
services:
  - name: api
    type: pod
    image: api:latest
`,
			wantIssue: `unknown type "pod"`,
		},
		{
			name: "bad port mapping",
			manifest: `
services:
  - name: api
    image: api:latest
    ports: ["8080"]
`,
			wantIssue: "invalid port mapping",
		},
		{
			name: "volume without mount path",
			manifest: `
services:
  - name: db
    image: db:1
    volumes:
      - name: data
`,
			wantIssue: "has no mountPath",
		},
		{
			name: "relative container mount path",
			manifest: `
services:
  - name: db
    image: db:1
    volumes:
      - name: data
        mountPath: var/lib/data
`,
			wantIssue: "must be absolute",
		},
		{
			name: "volumes on command service",
			manifest: `
services:
  - name: worker
    command: ["./worker"]
    volumes:
      - name: scratch
        mountPath: /scratch
`,
			wantIssue: "volumes require a container service",
		},
		{
			name: "volume shared between services",
			manifest: `
services:
  - name: db1
    image: db:1
    volumes:
      - name: data
        mountPath: /var/lib/one
  - name: db2
    image: db:1
    volumes:
      - name: data
        mountPath: /var/lib/two
`,
			wantIssue: "belong to exactly one service",
		},
		{
			name: "tcp check without target",
			manifest: `
services:
  - name: db
    image: db:1
    healthCheck:
      type: tcp
`,
			wantIssue: "tcp health check requires a target",
		},
		{
			name: "http check with bad target",
			manifest: `
services:
  - name: api
    image: api:latest
    healthCheck:
      type: http
      target: localhost:8080/health
`,
			wantIssue: "must be an http(s) URL",
		},
		{
			name: "command check without command",
			manifest: `
services:
  - name: db
    image: db:1
    healthCheck:
      type: command
`,
			wantIssue: "command health check requires a command",
		},
		{
			name: "unknown check type",
			manifest: `
services:
  - name: db
    image: db:1
    healthCheck:
      type: grpc
      target: localhost:5432
`,
			wantIssue: `unknown health check type "grpc"`,
		},
		{
			name: "negative retries",
			manifest: `
services:
  - name: db
    image: db:1
    healthCheck:
      type: tcp
      target: localhost:5432
      retries: -1
`,
			wantIssue: "retries must be at least 1",
		},
		{
			name: "unknown restart policy",
			manifest: `
services:
  - name: db
    image: db:1
    restart:
      policy: sometimes
`,
			wantIssue: `unknown restart policy "sometimes"`,
		},
		{
			name: "negative restart budget",
			manifest: `
services:
  - name: db
    image: db:1
    restart:
      policy: on-failure
      maxRetries: -2
`,
			wantIssue: "must not be negative",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues := parseIssues(t, tt.manifest)
			assertHasIssue(t, issues, tt.wantIssue)
		})
	}
}

func TestValidate_CollectsAllIssues(t *testing.T) {
	issues := parseIssues(t, `
services:
  - name: api
    type: container
    dependsOn: [api, ghost]
`)
	// Missing image, self-dependency and unknown dependency all reported
	// from a single pass.
	assert.Len(t, issues, 3)
}

func TestValidate_NegativeDurationRejected(t *testing.T) {
	issues := parseIssues(t, `
services:
  - name: db
    image: db:1
    healthCheck:
      type: tcp
      target: localhost:5432
      interval: -5s
`)
	assertHasIssue(t, issues, "interval must be positive")
}

func TestRegistry_Accessors(t *testing.T) {
	reg, err := Parse([]byte(`
services:
  - name: postgres
    image: postgres:16
  - name: neo4j
    image: neo4j:5
  - name: rag-api
    image: lightrag:latest
    dependsOn: [postgres, neo4j]
`))
	require.NoError(t, err)

	assert.Equal(t, 3, reg.Len())
	assert.Equal(t, []string{"postgres", "neo4j", "rag-api"}, reg.Names())

	_, ok := reg.Get("nope")
	assert.False(t, ok)

	svc, ok := reg.Get("rag-api")
	require.True(t, ok)
	assert.Equal(t, []string{"postgres", "neo4j"}, svc.DependsOn)

	// Mutating the returned slice must not affect the registry.
	services := reg.Services()
	services[0].Name = "mutated"
	again := reg.Services()
	assert.Equal(t, "postgres", again[0].Name)
}
