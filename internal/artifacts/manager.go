package artifacts

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zeebo/blake3"
)

// testsSubdir, generatedSubdir, reportsSubdir name the fixed tree a
// Manager writes under a run's scratch root:
//
//	<projectPath>/
//	└── testsprite_tests/
//	    ├── config.json
//	    ├── code_summary.json
//	    ├── standard_prd.json
//	    ├── frontend_test_plan.json
//	    ├── backend_test_plan.json
//	    ├── security_test_plan.json
//	    ├── test_credentials.json
//	    ├── execution_progress.json
//	    ├── generated_tests/
//	    │   ├── test_<scenario_id>.py
//	    │   ├── videos/<scenario_id>/*.webm
//	    │   └── screenshots/<scenario_id>_{start,final,error}.png
//	    └── reports/
//	        ├── report.md
//	        └── report.html
const (
	testsSubdir     = "testsprite_tests"
	generatedSubdir = "generated_tests"
	videosSubdir    = "videos"
	screenshotsDir  = "screenshots"
	reportsSubdir   = "reports"
)

const (
	configFile            = "config.json"
	codeSummaryFile       = "code_summary.json"
	prdFile               = "standard_prd.json"
	frontendPlanFile      = "frontend_test_plan.json"
	backendPlanFile       = "backend_test_plan.json"
	securityPlanFile      = "security_test_plan.json"
	credentialsFile       = "test_credentials.json"
	executionProgressFile = "execution_progress.json"
	reportMDFile          = "report.md"
	reportHTMLFile        = "report.html"
	manifestFile          = "manifest.json"
)

// Manager handles artifact recording and storage for test runs.
type Manager struct {
	baseDir string
	mu      sync.Mutex
}

// NewManager creates a new artifact manager rooted at baseDir, the
// directory runs are scratched under (one subdirectory per run ID).
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create artifacts base directory: %w", err)
	}
	return &Manager{baseDir: baseDir}, nil
}

// BaseDir returns the root directory all run artifacts are stored
// under.
func (m *Manager) BaseDir() string {
	return m.baseDir
}

// InitRun creates the testsprite_tests tree under projectPath and
// starts tracking its artifacts. projectPath is the run's scratch
// root, normally baseDir/<runID>.
func (m *Manager) InitRun(runID, projectPath string) (*RunArtifacts, error) {
	runDir := filepath.Join(projectPath, testsSubdir)

	for _, dir := range []string{
		filepath.Join(runDir, generatedSubdir, videosSubdir),
		filepath.Join(runDir, generatedSubdir, screenshotsDir),
		filepath.Join(runDir, reportsSubdir),
	} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create run directory: %w", err)
		}
	}

	return &RunArtifacts{
		RunID:     runID,
		RunDir:    runDir,
		StartedAt: time.Now(),
	}, nil
}

// Path helpers. Each returns the absolute path of a fixed artifact
// under ra.RunDir.

func (m *Manager) ConfigPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, configFile)
}

func (m *Manager) CodeSummaryPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, codeSummaryFile)
}

func (m *Manager) PRDPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, prdFile)
}

func (m *Manager) FrontendPlanPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, frontendPlanFile)
}

func (m *Manager) BackendPlanPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, backendPlanFile)
}

func (m *Manager) SecurityPlanPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, securityPlanFile)
}

func (m *Manager) CredentialsPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, credentialsFile)
}

func (m *Manager) ExecutionProgressPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, executionProgressFile)
}

func (m *Manager) ReportPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, reportsSubdir, reportMDFile)
}

func (m *Manager) ReportHTMLPath(ra *RunArtifacts) string {
	return filepath.Join(ra.RunDir, reportsSubdir, reportHTMLFile)
}

// TestCodePath returns where exported test source for scenarioID
// lives, if code export was requested for the run.
func (m *Manager) TestCodePath(ra *RunArtifacts, scenarioID string) string {
	return filepath.Join(ra.RunDir, generatedSubdir, fmt.Sprintf("test_%s.py", sanitizeFilename(scenarioID)))
}

// ScreenshotPath returns where a screenshot for scenarioID at phase
// should be written.
func (m *Manager) ScreenshotPath(ra *RunArtifacts, scenarioID string, phase ScreenshotPhase) string {
	name := fmt.Sprintf("%s_%s.png", sanitizeFilename(scenarioID), phase)
	return filepath.Join(ra.RunDir, generatedSubdir, screenshotsDir, name)
}

// VideoDir returns the directory a scenario's recording is written
// into; the executor's browser driver names the file itself.
func (m *Manager) VideoDir(ra *RunArtifacts, scenarioID string) string {
	return filepath.Join(ra.RunDir, generatedSubdir, videosSubdir, sanitizeFilename(scenarioID))
}

// LocateVideo finds the .webm recording for scenarioID, if any.
func (m *Manager) LocateVideo(ra *RunArtifacts, scenarioID string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(m.VideoDir(ra, scenarioID), "*.webm"))
	if err != nil {
		return "", fmt.Errorf("glob video: %w", err)
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no video recorded for %s", scenarioID)
	}
	return matches[0], nil
}

// WriteJSON marshals v and atomically writes it to absPath, recording
// it in ra under artifactType.
func (m *Manager) WriteJSON(ra *RunArtifacts, artifactType ArtifactType, absPath string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", artifactType, err)
	}
	return m.writeAndRecord(ra, artifactType, absPath, data)
}

// WriteText atomically writes content to absPath, recording it in ra
// under artifactType.
func (m *Manager) WriteText(ra *RunArtifacts, artifactType ArtifactType, absPath, content string) error {
	return m.writeAndRecord(ra, artifactType, absPath, []byte(content))
}

// writeAndRecord writes data to a temp file in absPath's directory
// then renames it into place, so a reader never observes a partial
// write; it then checksums the result and appends it to ra.Files.
func (m *Manager) writeAndRecord(ra *RunArtifacts, artifactType ArtifactType, absPath string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(absPath), 0755); err != nil {
		return fmt.Errorf("mkdir for %s: %w", absPath, err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(absPath), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", absPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync %s: %w", absPath, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", absPath, err)
	}
	if err := os.Rename(tmpPath, absPath); err != nil {
		return fmt.Errorf("rename into %s: %w", absPath, err)
	}

	return m.recordFile(ra, artifactType, absPath)
}

// RecordScreenshot stats an already-written screenshot file and
// records it in ra's manifest.
func (m *Manager) RecordScreenshot(ra *RunArtifacts, scenarioID string, phase ScreenshotPhase) (string, error) {
	path := m.ScreenshotPath(ra, scenarioID, phase)
	if err := m.recordFile(ra, ArtifactScreenshot, path); err != nil {
		return "", err
	}
	return path, nil
}

// RecordVideo locates and records scenarioID's video recording.
func (m *Manager) RecordVideo(ra *RunArtifacts, scenarioID string) (string, error) {
	path, err := m.LocateVideo(ra, scenarioID)
	if err != nil {
		return "", err
	}
	if err := m.recordFile(ra, ArtifactVideo, path); err != nil {
		return "", err
	}
	return path, nil
}

// recordFile stats absPath, checksums it with BLAKE3, and appends or
// updates its Artifact entry in ra.Files.
func (m *Manager) recordFile(ra *RunArtifacts, artifactType ArtifactType, absPath string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	info, err := os.Stat(absPath)
	if err != nil {
		return fmt.Errorf("stat %s: %w", absPath, err)
	}

	relPath, err := filepath.Rel(ra.RunDir, absPath)
	if err != nil {
		relPath = absPath
	}

	sum, err := checksumFile(absPath)
	if err != nil {
		return fmt.Errorf("checksum %s: %w", absPath, err)
	}

	entry := Artifact{
		Type:      artifactType,
		Path:      relPath,
		Checksum:  sum,
		SizeBytes: info.Size(),
		CreatedAt: time.Now(),
	}

	if existing := ra.find(relPath); existing != nil {
		*existing = entry
	} else {
		ra.Files = append(ra.Files, entry)
	}

	return nil
}

// checksumFile returns the hex-encoded BLAKE3 digest of path's
// contents.
func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := blake3.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// FinalizeRun marks ra complete and writes its manifest.json.
func (m *Manager) FinalizeRun(ra *RunArtifacts) error {
	m.mu.Lock()
	now := time.Now()
	ra.CompletedAt = &now

	var totalSize int64
	for _, f := range ra.Files {
		totalSize += f.SizeBytes
	}

	manifest := ArtifactManifest{
		Version:        1,
		RunArtifacts:   *ra,
		TotalSizeBytes: totalSize,
	}
	m.mu.Unlock()

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal manifest: %w", err)
	}

	manifestPath := filepath.Join(ra.RunDir, manifestFile)
	if err := os.WriteFile(manifestPath, data, 0644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// LoadManifest loads the artifact manifest for a run directory (a
// testsprite_tests path, as returned by InitRun's RunArtifacts.RunDir).
func (m *Manager) LoadManifest(runDir string) (*ArtifactManifest, error) {
	data, err := os.ReadFile(filepath.Join(runDir, manifestFile))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	var manifest ArtifactManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	return &manifest, nil
}

// ListAllRuns returns every run's testsprite_tests directory under
// baseDir.
func (m *Manager) ListAllRuns() ([]string, error) {
	return filepath.Glob(filepath.Join(m.baseDir, "*", testsSubdir))
}

// CleanupOlderThan removes run artifact trees whose manifest reports a
// start time before the cutoff, returning how many were removed and
// how many bytes were freed.
func (m *Manager) CleanupOlderThan(age time.Duration) (int, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-age)
	var removed int
	var freedBytes int64

	runs, err := m.ListAllRuns()
	if err != nil {
		return 0, 0, err
	}

	for _, runDir := range runs {
		manifest, err := m.LoadManifest(runDir)
		if err != nil {
			continue // Skip runs without a manifest.
		}
		if manifest.StartedAt.Before(cutoff) {
			freedBytes += manifest.TotalSizeBytes
			if err := os.RemoveAll(filepath.Dir(runDir)); err == nil {
				removed++
			}
		}
	}

	return removed, freedBytes, nil
}

// sanitizeFilename replaces characters unsafe in a filename with
// underscores, guarding against path traversal when scenario IDs are
// joined into artifact paths.
func sanitizeFilename(name string) string {
	safe := make([]byte, len(name))
	for i, c := range []byte(name) {
		switch c {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			safe[i] = '_'
		default:
			safe[i] = c
		}
	}
	return string(safe)
}
