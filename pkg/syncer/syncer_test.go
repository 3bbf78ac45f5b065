package syncer_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/releasekit/releasekit/pkg/runctx"
	"github.com/releasekit/releasekit/pkg/syncer"
	"github.com/releasekit/releasekit/pkg/types"
)

func newTestEngine(t *testing.T) (*syncer.Engine, string) {
	t.Helper()

	tmpDir := t.TempDir()
	rc := runctx.NewWithEnv(tmpDir, nil)
	return syncer.NewEngine(rc, nil), tmpDir
}

func writeFile(t *testing.T, root, name, content string) {
	t.Helper()

	path := filepath.Join(root, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create dir for %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
}

func readFile(t *testing.T, root, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(root, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

func version(t *testing.T, s string) types.Version {
	t.Helper()

	v, err := types.ParseVersion(s)
	if err != nil {
		t.Fatalf("failed to parse version %s: %v", s, err)
	}
	return v
}

func packageJSONEntry(path string) types.VersionSyncFile {
	return types.VersionSyncFile{
		Path:        path,
		Pattern:     `"version":\s*"[^"]*"`,
		Replacement: `"version": "{version}"`,
	}
}

func TestSync_UpdatesAllFiles(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "packages/a/package.json", `{"version": "0.0.0"}`)
	writeFile(t, tmpDir, "packages/b/package.json", `{"version": "0.0.0"}`)

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{
			packageJSONEntry("packages/a/package.json"),
			packageJSONEntry("packages/b/package.json"),
		},
	}

	result, err := e.Sync(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}

	if len(result.FilesUpdated) != 2 {
		t.Errorf("expected 2 updated files, got %v", result.FilesUpdated)
	}

	if got := readFile(t, tmpDir, "packages/a/package.json"); got != `{"version": "1.2.3"}` {
		t.Errorf("file a not synced: %s", got)
	}
	if got := readFile(t, tmpDir, "packages/b/package.json"); got != `{"version": "1.2.3"}` {
		t.Errorf("file b not synced: %s", got)
	}

	ok, err := e.Verify(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("verify failed: %v", err)
	}
	if !ok {
		t.Error("verify should pass after sync")
	}
}

func TestSync_Idempotent(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "package.json", `{"version": "0.0.0"}`)

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{packageJSONEntry("package.json")},
	}

	first, err := e.Sync(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("first sync failed: %v", err)
	}
	if len(first.FilesUpdated) != 1 {
		t.Fatalf("expected 1 update on first run, got %v", first.FilesUpdated)
	}

	afterFirst := readFile(t, tmpDir, "package.json")

	second, err := e.Sync(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("second sync failed: %v", err)
	}

	if len(second.FilesUpdated) != 0 {
		t.Errorf("second run should update nothing, got %v", second.FilesUpdated)
	}
	if len(second.Errors) != 0 {
		t.Errorf("second run should report no errors, got %v", second.Errors)
	}

	if got := readFile(t, tmpDir, "package.json"); got != afterFirst {
		t.Error("second run changed file content")
	}
}

func TestSync_ZeroVersionFailsBeforeTouchingFiles(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	original := `{"version": "0.0.0"}`
	writeFile(t, tmpDir, "package.json", original)

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{packageJSONEntry("package.json")},
	}

	if _, err := e.Sync(cfg, types.Version{}); err == nil {
		t.Fatal("expected error for zero version")
	}

	if got := readFile(t, tmpDir, "package.json"); got != original {
		t.Error("file was modified despite invalid version")
	}
}

func TestSync_MissingFileDoesNotBlockOthers(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "present.json", `{"version": "0.0.0"}`)

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{
			packageJSONEntry("absent.json"),
			packageJSONEntry("present.json"),
		},
	}

	result, err := e.Sync(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error, got %v", result.Errors)
	}

	if len(result.FilesUpdated) != 1 || result.FilesUpdated[0] != "present.json" {
		t.Errorf("present file should still be updated, got %v", result.FilesUpdated)
	}
}

func TestSync_OptionalMissingFileIsSkipped(t *testing.T) {
	e, _ := newTestEngine(t)

	optional := true
	entry := packageJSONEntry("absent.json")
	entry.Optional = &optional

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{entry},
	}

	result, err := e.Sync(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(result.Errors) != 0 {
		t.Errorf("optional missing file should not error, got %v", result.Errors)
	}
	if len(result.FilesUpdated) != 0 {
		t.Errorf("nothing should be updated, got %v", result.FilesUpdated)
	}
}

func TestSync_CaptureGroupReplacement(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "Cargo.toml", "name = \"mcp-test\"\nversion = \"0.1.0\"\n")

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{
			{
				Path:        "Cargo.toml",
				Pattern:     `(version\s*=\s*")[^"]*(")`,
				Replacement: `${1}{version}${2}`,
			},
		},
	}

	result, err := e.Sync(cfg, version(t, "2.0.0-rc.1"))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}
	if len(result.Errors) != 0 {
		t.Fatalf("unexpected errors: %v", result.Errors)
	}

	want := "name = \"mcp-test\"\nversion = \"2.0.0-rc.1\"\n"
	if got := readFile(t, tmpDir, "Cargo.toml"); got != want {
		t.Errorf("capture groups not preserved:\n%s", got)
	}
}

func TestSync_GlobalMatchReplacesAllOccurrences(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "README.md", "install mcp-test@0.0.0 or docker pull mcp-test:0.0.0")

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{
			{
				Path:        "README.md",
				Pattern:     `0\.0\.0`,
				Replacement: `{version}`,
			},
		},
	}

	if _, err := e.Sync(cfg, version(t, "1.2.3")); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	want := "install mcp-test@1.2.3 or docker pull mcp-test:1.2.3"
	if got := readFile(t, tmpDir, "README.md"); got != want {
		t.Errorf("expected all occurrences replaced:\n%s", got)
	}
}

func TestSync_MultipleEntriesSameFile(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "app.json", `{"version": "0.0.0", "cliVersion": "0.0.0"}`)

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{
			{
				Path:        "app.json",
				Pattern:     `"version":\s*"[^"]*"`,
				Replacement: `"version": "{version}"`,
			},
			{
				Path:        "app.json",
				Pattern:     `"cliVersion":\s*"[^"]*"`,
				Replacement: `"cliVersion": "{version}"`,
			},
		},
	}

	result, err := e.Sync(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	// Both entries touch the same file, applied in order to evolving content
	if len(result.FilesUpdated) != 2 {
		t.Errorf("expected both entries recorded, got %v", result.FilesUpdated)
	}

	want := `{"version": "1.2.3", "cliVersion": "1.2.3"}`
	if got := readFile(t, tmpDir, "app.json"); got != want {
		t.Errorf("entries did not compose:\n%s", got)
	}
}

func TestSync_InvalidPatternRecordedAsError(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "package.json", `{"version": "0.0.0"}`)

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{
			{Path: "package.json", Pattern: "[unclosed", Replacement: "{version}"},
		},
	}

	result, err := e.Sync(cfg, version(t, "1.2.3"))
	if err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	if len(result.Errors) != 1 {
		t.Errorf("expected pattern error, got %v", result.Errors)
	}
}

func TestSync_PreservesFileMode(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	path := filepath.Join(tmpDir, "release.sh")
	if err := os.WriteFile(path, []byte("VERSION=0.0.0\n"), 0755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	cfg := &types.SubmoduleConfig{
		PackageName: "mcp-test",
		FilesToSync: []types.VersionSyncFile{
			{Path: "release.sh", Pattern: `VERSION=.*`, Replacement: `VERSION={version}`},
		},
	}

	if _, err := e.Sync(cfg, version(t, "1.2.3")); err != nil {
		t.Fatalf("sync failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("failed to stat script: %v", err)
	}
	if info.Mode().Perm() != 0755 {
		t.Errorf("expected mode 0755 preserved, got %v", info.Mode().Perm())
	}
}

func TestVerify(t *testing.T) {
	e, tmpDir := newTestEngine(t)

	writeFile(t, tmpDir, "synced.json", `{"version": "1.2.3"}`)
	writeFile(t, tmpDir, "stale.json", `{"version": "0.0.0"}`)

	tests := []struct {
		name  string
		files []types.VersionSyncFile
		want  bool
	}{
		{
			name:  "all files carry the version",
			files: []types.VersionSyncFile{packageJSONEntry("synced.json")},
			want:  true,
		},
		{
			name: "one file lacks the version",
			files: []types.VersionSyncFile{
				packageJSONEntry("synced.json"),
				packageJSONEntry("stale.json"),
			},
			want: false,
		},
		{
			name:  "missing file fails verification",
			files: []types.VersionSyncFile{packageJSONEntry("absent.json")},
			want:  false,
		},
		{
			name:  "empty file list verifies vacuously",
			files: nil,
			want:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &types.SubmoduleConfig{PackageName: "mcp-test", FilesToSync: tt.files}

			got, err := e.Verify(cfg, version(t, "1.2.3"))
			if err != nil {
				t.Fatalf("verify failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}
