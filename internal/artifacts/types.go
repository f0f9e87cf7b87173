// Package artifacts manages the on-disk deterministic tree a run
// writes its deliverables into: the discovery/planning JSON the
// enrichment stages produce, the screenshots and videos the executor
// captures per scenario, and the rendered report. Every path a caller
// needs is derived from a run's scratch root — nothing constructs an
// ad-hoc path outside that tree.
package artifacts

import "time"

// ArtifactType closes the set of files a Manager ever records into a
// run's manifest.
type ArtifactType string

const (
	ArtifactConfig            ArtifactType = "config"
	ArtifactCodeSummary       ArtifactType = "code_summary"
	ArtifactPRD               ArtifactType = "prd"
	ArtifactFrontendPlan      ArtifactType = "frontend_plan"
	ArtifactBackendPlan       ArtifactType = "backend_plan"
	ArtifactSecurityPlan      ArtifactType = "security_plan"
	ArtifactCredentials       ArtifactType = "test_credentials"
	ArtifactExecutionProgress ArtifactType = "execution_progress"
	ArtifactTestCode          ArtifactType = "test_code"
	ArtifactScreenshot        ArtifactType = "screenshot"
	ArtifactVideo             ArtifactType = "video"
	ArtifactReport            ArtifactType = "report"
)

// ScreenshotPhase is when in a scenario's lifecycle a screenshot was
// taken, mirrored into the screenshot's filename as
// "<scenario_id>_<phase>.png".
type ScreenshotPhase string

const (
	PhaseStart ScreenshotPhase = "start"
	PhaseFinal ScreenshotPhase = "final"
	PhaseError ScreenshotPhase = "error"
)

// Artifact records one file written under a run's artifact tree, with
// a BLAKE3 checksum so a caller can verify it wasn't truncated or
// corrupted in transit over the HTTP surface.
type Artifact struct {
	Type      ArtifactType `json:"type"`
	Path      string       `json:"path"` // relative to RunDir
	Checksum  string       `json:"checksum,omitempty"`
	SizeBytes int64        `json:"size_bytes"`
	CreatedAt time.Time    `json:"created_at"`
}

// RunArtifacts tracks every artifact written for a single run. RunDir
// is always "<projectPath>/testsprite_tests"; deleting RunDir's parent
// removes the whole subtree.
type RunArtifacts struct {
	RunID       string     `json:"run_id"`
	RunDir      string     `json:"run_dir"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Files       []Artifact `json:"files"`
}

// find returns the recorded Artifact at relPath, or nil.
func (ra *RunArtifacts) find(relPath string) *Artifact {
	for i := range ra.Files {
		if ra.Files[i].Path == relPath {
			return &ra.Files[i]
		}
	}
	return nil
}

// ArtifactManifest is persisted as manifest.json once a run's report
// stage finishes, the single index of everything the Manager wrote.
type ArtifactManifest struct {
	Version int `json:"version"`
	RunArtifacts
	TotalSizeBytes int64 `json:"total_size_bytes"`
}
