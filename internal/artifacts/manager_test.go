package artifacts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewManager(t *testing.T) {
	tmpDir := t.TempDir()

	manager, err := NewManager(tmpDir)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	if manager.baseDir != tmpDir {
		t.Errorf("expected baseDir %q, got %q", tmpDir, manager.baseDir)
	}
}

func TestInitRun(t *testing.T) {
	tmpDir := t.TempDir()
	manager, _ := NewManager(tmpDir)
	projectPath := filepath.Join(tmpDir, "run-xyz789")

	ra, err := manager.InitRun("xyz789", projectPath)
	if err != nil {
		t.Fatalf("failed to init run: %v", err)
	}

	if ra.RunID != "xyz789" {
		t.Errorf("expected RunID xyz789, got %s", ra.RunID)
	}

	wantDir := filepath.Join(projectPath, "testsprite_tests")
	if ra.RunDir != wantDir {
		t.Errorf("expected RunDir %q, got %q", wantDir, ra.RunDir)
	}

	for _, dir := range []string{
		filepath.Join(wantDir, "generated_tests", "videos"),
		filepath.Join(wantDir, "generated_tests", "screenshots"),
		filepath.Join(wantDir, "reports"),
	} {
		if _, err := os.Stat(dir); os.IsNotExist(err) {
			t.Errorf("expected %s to exist", dir)
		}
	}
}

func TestPaths(t *testing.T) {
	tmpDir := t.TempDir()
	manager, _ := NewManager(tmpDir)
	ra, _ := manager.InitRun("run1", filepath.Join(tmpDir, "run1"))

	cases := map[string]string{
		manager.ConfigPath(ra):            "config.json",
		manager.CodeSummaryPath(ra):       "code_summary.json",
		manager.PRDPath(ra):               "standard_prd.json",
		manager.FrontendPlanPath(ra):      "frontend_test_plan.json",
		manager.BackendPlanPath(ra):       "backend_test_plan.json",
		manager.SecurityPlanPath(ra):      "security_test_plan.json",
		manager.CredentialsPath(ra):       "test_credentials.json",
		manager.ExecutionProgressPath(ra): "execution_progress.json",
	}
	for path, suffix := range cases {
		if !strings.HasSuffix(path, suffix) {
			t.Errorf("expected path to end with %q, got %q", suffix, path)
		}
		if !strings.HasPrefix(path, ra.RunDir) {
			t.Errorf("expected path %q to be rooted under RunDir %q", path, ra.RunDir)
		}
	}

	if !strings.HasSuffix(manager.ReportPath(ra), filepath.Join("reports", "report.md")) {
		t.Errorf("unexpected report path: %s", manager.ReportPath(ra))
	}
	if !strings.HasSuffix(manager.ReportHTMLPath(ra), filepath.Join("reports", "report.html")) {
		t.Errorf("unexpected report html path: %s", manager.ReportHTMLPath(ra))
	}
	shot := manager.ScreenshotPath(ra, "sarah_registers", PhaseStart)
	if !strings.Contains(shot, filepath.Join("generated_tests", "screenshots")) {
		t.Errorf("expected screenshot path under generated_tests/screenshots: %s", shot)
	}
	if !strings.HasSuffix(shot, "sarah_registers_start.png") {
		t.Errorf("unexpected screenshot path: %s", shot)
	}

	videoDir := manager.VideoDir(ra, "sarah_registers")
	if !strings.HasSuffix(videoDir, filepath.Join("generated_tests", "videos", "sarah_registers")) {
		t.Errorf("unexpected video dir: %s", videoDir)
	}

	testCode := manager.TestCodePath(ra, "sarah_registers")
	if !strings.HasSuffix(testCode, "test_sarah_registers.py") {
		t.Errorf("unexpected test code path: %s", testCode)
	}
}

func TestWriteJSONRecordsArtifact(t *testing.T) {
	tmpDir := t.TempDir()
	manager, _ := NewManager(tmpDir)
	ra, _ := manager.InitRun("run1", filepath.Join(tmpDir, "run1"))

	type payload struct {
		Hello string `json:"hello"`
	}
	if err := manager.WriteJSON(ra, ArtifactConfig, manager.ConfigPath(ra), payload{Hello: "world"}); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}

	data, err := os.ReadFile(manager.ConfigPath(ra))
	if err != nil {
		t.Fatalf("config.json not written: %v", err)
	}
	if !strings.Contains(string(data), "world") {
		t.Errorf("unexpected config contents: %s", data)
	}

	entry := ra.find("config.json")
	if entry == nil {
		t.Fatal("expected config.json to be recorded in RunArtifacts.Files")
	}
	if entry.Checksum == "" {
		t.Error("expected a BLAKE3 checksum to be recorded")
	}
	if entry.SizeBytes == 0 {
		t.Error("expected a non-zero size to be recorded")
	}
}

func TestRecordScreenshot(t *testing.T) {
	tmpDir := t.TempDir()
	manager, _ := NewManager(tmpDir)
	ra, _ := manager.InitRun("run123", filepath.Join(tmpDir, "run123"))

	shotPath := manager.ScreenshotPath(ra, "test_scenario", PhaseFinal)
	if err := os.WriteFile(shotPath, []byte("fake png data"), 0644); err != nil {
		t.Fatalf("failed to create test screenshot: %v", err)
	}

	recorded, err := manager.RecordScreenshot(ra, "test_scenario", PhaseFinal)
	if err != nil {
		t.Fatalf("failed to record screenshot: %v", err)
	}
	if recorded != shotPath {
		t.Errorf("expected recorded path %q, got %q", shotPath, recorded)
	}
	if len(ra.Files) != 1 {
		t.Fatalf("expected 1 recorded file, got %d", len(ra.Files))
	}
	if ra.Files[0].Type != ArtifactScreenshot {
		t.Errorf("expected screenshot artifact type, got %s", ra.Files[0].Type)
	}
}

func TestRecordVideoRequiresFile(t *testing.T) {
	tmpDir := t.TempDir()
	manager, _ := NewManager(tmpDir)
	ra, _ := manager.InitRun("run123", filepath.Join(tmpDir, "run123"))

	if _, err := manager.RecordVideo(ra, "test_scenario"); err == nil {
		t.Error("expected error locating a video that was never recorded")
	}

	videoDir := manager.VideoDir(ra, "test_scenario")
	if err := os.WriteFile(filepath.Join(videoDir, "recording.webm"), []byte("fake video"), 0644); err != nil {
		t.Fatalf("failed to create test video: %v", err)
	}

	path, err := manager.RecordVideo(ra, "test_scenario")
	if err != nil {
		t.Fatalf("failed to record video: %v", err)
	}
	if !strings.HasSuffix(path, "recording.webm") {
		t.Errorf("unexpected video path: %s", path)
	}
}

func TestFinalizeRun(t *testing.T) {
	tmpDir := t.TempDir()
	manager, _ := NewManager(tmpDir)
	ra, _ := manager.InitRun("final123", filepath.Join(tmpDir, "final123"))

	if err := manager.WriteText(ra, ArtifactReport, manager.ReportPath(ra), "# Report\n"); err != nil {
		t.Fatalf("failed to write report: %v", err)
	}

	if err := manager.FinalizeRun(ra); err != nil {
		t.Fatalf("failed to finalize run: %v", err)
	}

	manifestPath := filepath.Join(ra.RunDir, "manifest.json")
	if _, err := os.Stat(manifestPath); os.IsNotExist(err) {
		t.Error("manifest.json was not created")
	}

	manifest, err := manager.LoadManifest(ra.RunDir)
	if err != nil {
		t.Fatalf("failed to load manifest: %v", err)
	}
	if manifest.RunID != "final123" {
		t.Errorf("expected RunID final123, got %s", manifest.RunID)
	}
	if manifest.CompletedAt == nil {
		t.Error("expected CompletedAt to be set")
	}
	if manifest.TotalSizeBytes == 0 {
		t.Error("expected a non-zero TotalSizeBytes")
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"simple", "simple"},
		{"with space", "with_space"},
		{"path/with/slashes", "path_with_slashes"},
		{"has:colon", "has_colon"},
		{"has*star", "has_star"},
		{"has?question", "has_question"},
		{"normal-dashes", "normal-dashes"},
		{"under_scores", "under_scores"},
	}

	for _, tt := range tests {
		result := sanitizeFilename(tt.input)
		if result != tt.expected {
			t.Errorf("sanitizeFilename(%q) = %q, expected %q", tt.input, result, tt.expected)
		}
	}
}
