package main

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hyperengineering/fieldbridge/internal/config"
)

// setupTestEnv points the CLI at an isolated database in a temp dir and
// enables dev mode so no platform credentials are required.
func setupTestEnv(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	t.Setenv("FIELDBRIDGE_DEV_MODE", "true")
	t.Setenv("FIELDBRIDGE_DB_PATH", filepath.Join(dir, "fieldbridge.db"))
	t.Setenv("FIELDBRIDGE_CONFIG_PATH", filepath.Join(dir, "no-such-config.yaml"))
}

// executeCmd executes a CLI command with captured output.
func executeCmd(t *testing.T, args ...string) (stdout, stderr string, err error) {
	t.Helper()

	// Reset package-level flag variables to their defaults. Cobra parses
	// into these variables, so stale values from previous tests would
	// leak if not reset.
	runAll = false
	runPull = false
	runPush = false
	runSync = false
	runDryRun = false
	runSince = false
	runForce = false
	runLimit = 0
	runJSON = false
	cursorJSONOutput = false
	cursorResetDirection = ""
	entitiesJSONOutput = false

	outBuf := new(bytes.Buffer)
	errBuf := new(bytes.Buffer)

	rootCmd.SetOut(outBuf)
	rootCmd.SetErr(errBuf)
	rootCmd.SetArgs(args)

	err = rootCmd.Execute()

	rootCmd.SetOut(nil)
	rootCmd.SetErr(nil)
	rootCmd.SetArgs(nil)

	return outBuf.String(), errBuf.String(), err
}

func TestBuildEnvironmentLoadsEntityCatalog(t *testing.T) {
	setupTestEnv(t)

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	env, err := buildEnvironment(cfg)
	if err != nil {
		t.Fatalf("build environment: %v", err)
	}
	defer env.Close()

	if len(env.registry.Names()) == 0 {
		t.Fatal("no entities registered")
	}
	if _, err := env.registry.Get("workorder"); err != nil {
		t.Fatalf("workorder not registered: %v", err)
	}

	// The entity table must exist, not just the registration.
	if _, err := env.store.Count(context.Background(), "workorder"); err != nil {
		t.Fatalf("workorder table missing: %v", err)
	}
}

func TestEntitiesListsRegistry(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := executeCmd(t, "entities")
	if err != nil {
		t.Fatalf("entities: %v", err)
	}
	if !strings.Contains(stdout, "NAME") {
		t.Errorf("missing header in output: %q", stdout)
	}
	if !strings.Contains(stdout, "workorder") {
		t.Errorf("workorder missing from output: %q", stdout)
	}
}

func TestEntitiesJSONOutput(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := executeCmd(t, "entities", "--json")
	if err != nil {
		t.Fatalf("entities --json: %v", err)
	}

	var body struct {
		Entities []struct {
			Name     string `json:"name"`
			External string `json:"external"`
			Fields   int    `json:"fields"`
		} `json:"entities"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal([]byte(stdout), &body); err != nil {
		t.Fatalf("unmarshal: %v\noutput: %s", err, stdout)
	}
	if body.Total == 0 || len(body.Entities) != body.Total {
		t.Errorf("total = %d, entities = %d", body.Total, len(body.Entities))
	}
	for _, e := range body.Entities {
		if e.External == "" || e.Fields == 0 {
			t.Errorf("incomplete entity summary: %+v", e)
		}
	}
}

func TestCursorListEmpty(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := executeCmd(t, "cursor", "list")
	if err != nil {
		t.Fatalf("cursor list: %v", err)
	}
	if !strings.Contains(stdout, "No cursors stored") {
		t.Errorf("expected empty-state message, got: %q", stdout)
	}
}

func TestCursorResetIsIdempotent(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := executeCmd(t, "cursor", "reset", "workorder")
	if err != nil {
		t.Fatalf("cursor reset: %v", err)
	}
	if !strings.Contains(stdout, "pull") || !strings.Contains(stdout, "push") {
		t.Errorf("expected both directions reset, got: %q", stdout)
	}
}

func TestCursorResetSingleDirection(t *testing.T) {
	setupTestEnv(t)

	stdout, _, err := executeCmd(t, "cursor", "reset", "workorder", "--direction", "pull")
	if err != nil {
		t.Fatalf("cursor reset --direction pull: %v", err)
	}
	if strings.Contains(stdout, "push") {
		t.Errorf("push cursor should not be reset: %q", stdout)
	}
}

func TestCursorResetUnknownEntity(t *testing.T) {
	setupTestEnv(t)

	if _, _, err := executeCmd(t, "cursor", "reset", "widget"); err == nil {
		t.Fatal("expected error for unknown entity")
	}
}

func TestCursorResetInvalidDirection(t *testing.T) {
	setupTestEnv(t)

	if _, _, err := executeCmd(t, "cursor", "reset", "workorder", "--direction", "sideways"); err == nil {
		t.Fatal("expected error for invalid direction")
	}
}

func TestRunRequiresEntityOrAll(t *testing.T) {
	setupTestEnv(t)

	if _, _, err := executeCmd(t, "run"); err == nil {
		t.Fatal("expected error without entity or --all")
	}
}

func TestRunRejectsConflictingModeFlags(t *testing.T) {
	setupTestEnv(t)

	if _, _, err := executeCmd(t, "run", "workorder", "--pull", "--push"); err == nil {
		t.Fatal("expected error for conflicting mode flags")
	}
}

func TestRunRejectsSinceWithForce(t *testing.T) {
	setupTestEnv(t)

	if _, _, err := executeCmd(t, "run", "workorder", "--since", "--force"); err == nil {
		t.Fatal("expected error for --since with --force")
	}
}

func TestRunFailsWhenPlatformUnreachable(t *testing.T) {
	setupTestEnv(t)
	t.Setenv("FIELDBRIDGE_PLATFORM_URL", "http://127.0.0.1:1")

	if _, _, err := executeCmd(t, "run", "workorder"); err == nil {
		t.Fatal("expected error when the platform is unreachable")
	}
}
