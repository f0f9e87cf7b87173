// Package domain holds the shared data model for a run: the target
// application's app map, the generated test plan, and the live
// progress mirror clients poll. Every other package builds on these
// types instead of inventing its own.
package domain

import "time"

// RunStatus is the lifecycle state of a Run. Once terminal (Completed
// or Failed), a Run is immutable.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// Terminal reports whether status accepts no further mutation.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed
}

// Target identifies what a run exercises: exactly one of URL or
// LocalPath is set.
type Target struct {
	URL       string `json:"url,omitempty" yaml:"url,omitempty"`
	LocalPath string `json:"local_path,omitempty" yaml:"local_path,omitempty"`
}

// Credentials are loaded once per run into memory and written once to
// test_credentials.json for the executor.
type Credentials struct {
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`
}

// Metadata is caller-supplied descriptive information attached to a run.
type Metadata struct {
	Name  string `json:"name,omitempty" yaml:"name,omitempty"`
	Notes string `json:"notes,omitempty" yaml:"notes,omitempty"`
}

// Run is the top-level job record. The orchestrator for a given
// run_id exclusively owns mutation; terminal states are immutable.
type Run struct {
	RunID string `json:"run_id"`

	Target      Target       `json:"target"`
	Credentials *Credentials `json:"credentials,omitempty"`
	Metadata    Metadata     `json:"metadata,omitempty"`

	Status RunStatus `json:"status"`

	StepsCompleted []string `json:"steps_completed"`
	ErrorLog       []string `json:"error_log"`

	Retries    int `json:"retries"`
	MaxRetries int `json:"max_retries"`

	ProjectPath string `json:"project_path"`
	ReportPath  string `json:"report_path,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// DefaultMaxRetries is the fix_tests retry bound applied when a Run
// does not specify one.
const DefaultMaxRetries = 3

// NewRun builds a pending Run with zeroed bags, ready for the
// orchestrator's bootstrap stage.
func NewRun(id string, target Target, creds *Credentials, meta Metadata, projectPath string) *Run {
	now := time.Now()
	return &Run{
		RunID:          id,
		Target:         target,
		Credentials:    creds,
		Metadata:       meta,
		Status:         RunPending,
		StepsCompleted: []string{},
		ErrorLog:       []string{},
		MaxRetries:     DefaultMaxRetries,
		ProjectPath:    projectPath,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// RecordID satisfies store.Record so a *Run can be persisted directly.
func (r *Run) RecordID() string { return r.RunID }

// RecordStep appends a stage name to StepsCompleted. Callers must not
// call this once Status is terminal.
func (r *Run) RecordStep(stage string) {
	r.StepsCompleted = append(r.StepsCompleted, stage)
	r.UpdatedAt = time.Now()
}

// RecordError appends a line to ErrorLog.
func (r *Run) RecordError(line string) {
	r.ErrorLog = append(r.ErrorLog, line)
	r.UpdatedAt = time.Now()
}

// PageType is a closed enum describing what purpose a crawled page
// appears to serve.
type PageType string

const (
	PageLogin         PageType = "login"
	PageRegister      PageType = "register"
	PagePasswordReset PageType = "password_reset"
	PageDashboard     PageType = "dashboard"
	PageLanding       PageType = "landing"
	PageSettings      PageType = "settings"
	PageProfile       PageType = "profile"
	PageCreate        PageType = "create"
	PageEdit          PageType = "edit"
	PageList          PageType = "list"
	PageDetail        PageType = "detail"
	PageGeneral       PageType = "general"
)

// Field is one input/textarea/select discovered on a form or loose on
// a page. Selector is a comma-separated preference list of CSS
// selectors the driver tries in order.
type Field struct {
	Type        string `json:"type"`
	Name        string `json:"name,omitempty"`
	ID          string `json:"id,omitempty"`
	Placeholder string `json:"placeholder,omitempty"`
	Required    bool   `json:"required"`
	Selector    string `json:"selector"`
}

// Form is a single <form> element and its fields.
type Form struct {
	ID             string  `json:"id,omitempty"`
	Selector       string  `json:"selector"`
	Action         string  `json:"action,omitempty"`
	Method         string  `json:"method,omitempty"`
	Fields         []Field `json:"fields"`
	SubmitText     string  `json:"submit_text,omitempty"`
	SubmitSelector string  `json:"submit_selector"`
}

// Button is a clickable control discovered outside a form context,
// with a classified Action inferred from its label text.
type Button struct {
	Text     string `json:"text"`
	Selector string `json:"selector"`
	Action   string `json:"action"`
}

// Modal is a dialog-like overlay discovered on a page.
type Modal struct {
	Selector string `json:"selector"`
	Title    string `json:"title,omitempty"`
}

// Page is one crawled URL and everything the Explorer extracted from it.
type Page struct {
	URL          string   `json:"url"`
	Path         string   `json:"path"`
	Title        string   `json:"title,omitempty"`
	Type         PageType `json:"type"`
	Forms        []Form   `json:"forms"`
	Buttons      []Button `json:"buttons"`
	Inputs       []Field  `json:"inputs"`
	NavLinks     []string `json:"nav_links"`
	Modals       []Modal  `json:"modals"`
	RequiresAuth bool     `json:"requires_auth"`
}

// ModuleName is one of the Explorer's coarse groupings of pages.
type ModuleName string

const (
	ModuleAuth      ModuleName = "auth"
	ModuleDashboard ModuleName = "dashboard"
	ModuleProfile   ModuleName = "profile"
	ModuleCRUD      ModuleName = "crud"
	ModuleGeneral   ModuleName = "general"
)

// AppModule groups pages of related type discovered during the crawl.
type AppModule struct {
	Name  ModuleName `json:"name"`
	Pages []Page     `json:"pages"`
}

// RequiresAuthAny reports whether any page in the module requires
// authentication.
func (m *AppModule) RequiresAuthAny() bool {
	for _, pg := range m.Pages {
		if pg.RequiresAuth {
			return true
		}
	}
	return false
}

// AppMap is the Explorer's output: the discovered structure of a
// target application.
type AppMap struct {
	BaseURL    string               `json:"base_url"`
	TotalPages int                  `json:"total_pages"`
	Pages      []Page               `json:"pages"`
	Modules    map[ModuleName]*AppModule `json:"modules"`
	AuthPages  []string             `json:"auth_pages"`
}

// ScenarioType is a closed enum classifying the intent of a generated
// scenario.
type ScenarioType string

const (
	ScenarioHappyPath ScenarioType = "happy_path"
	ScenarioErrorPath ScenarioType = "error_path"
	ScenarioEdgeCase  ScenarioType = "edge_case"
	ScenarioSecurity  ScenarioType = "security"
)

// Priority is a closed enum ordering scenario importance.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// StepAction is a closed enum of step verbs a Scenario.Steps entry may use.
type StepAction string

const (
	StepNavigate StepAction = "navigate"
	StepFill     StepAction = "fill"
	StepClick    StepAction = "click"
	StepWait     StepAction = "wait"
	StepAssert   StepAction = "assert"
)

// AssertTarget enumerates the predicates an assert step may check.
// Closed per the contract; the executor rejects any other value.
const (
	AssertPageLoaded          = "page_loaded"
	AssertURLChanged          = "url_changed"
	AssertErrorMessageVisible = "error_message_visible"
	AssertValidationError     = "validation_error"
	AssertNoUnauthorized      = "no_unauthorized_access"
	AssertSuccessOrRedirect   = "success_or_redirect"
	AssertKeyElementsVisible  = "key_elements_visible"
	AssertSaveSuccess         = "save_success"
	AssertCreateSuccess       = "create_success"
	AssertUpdateSuccess       = "update_success"
	AssertFormSubmitted       = "form_submitted"
	AssertListVisible         = "list_visible"
	AssertFormPrefilled       = "form_prefilled"
	AssertUserInfoVisible     = "user_info_visible"
	AssertCTAButtonsVisible   = "cta_buttons_visible"
	AssertNavigationSuccess   = "navigation_success"
	AssertActionResult        = "action_result"
)

// Step is a single driver action or predicate assertion.
type Step struct {
	Action      StepAction `json:"action" yaml:"action"`
	Target      string     `json:"target" yaml:"target"`
	Value       string     `json:"value,omitempty" yaml:"value,omitempty"`
	Description string     `json:"description,omitempty" yaml:"description,omitempty"`
}

// ScenarioStatus mirrors a scenario's lifecycle as tracked by the
// plan and echoed in Progress.
type ScenarioStatus string

const (
	ScenarioPending ScenarioStatus = "pending"
	ScenarioRunning ScenarioStatus = "running"
	ScenarioPassed  ScenarioStatus = "passed"
	ScenarioFailed  ScenarioStatus = "failed"
	ScenarioSkipped ScenarioStatus = "skipped"
)

// Scenario is a named, dependency-aware sequence of steps.
type Scenario struct {
	ID          string         `json:"id" yaml:"id"`
	Name        string         `json:"name" yaml:"name"`
	Description string         `json:"description,omitempty" yaml:"description,omitempty"`
	Module      ModuleName     `json:"module" yaml:"module"`
	Type        ScenarioType   `json:"type" yaml:"type"`
	Priority    Priority       `json:"priority" yaml:"priority"`
	DependsOn   string         `json:"depends_on,omitempty" yaml:"depends_on,omitempty"`
	Steps       []Step         `json:"steps" yaml:"steps"`
	Status      ScenarioStatus `json:"status" yaml:"status"`
}

// ModulePlan is one module's scenario catalog.
type ModulePlan struct {
	Name         ModuleName `json:"name"`
	RequiresAuth bool       `json:"requires_auth"`
	Scenarios    []Scenario `json:"scenarios"`
}

// Plan is the Planner's output: the full scenario catalog, grouped by
// module, in total emission order.
type Plan struct {
	BaseURL        string                 `json:"base_url"`
	TotalScenarios int                    `json:"total_scenarios"`
	Modules        map[ModuleName]*ModulePlan `json:"modules"`
}

// AllScenarios returns every scenario across all modules, in plan
// emission order (the order Planner appended them).
func (p *Plan) AllScenarios() []Scenario {
	var out []Scenario
	for _, order := range p.order() {
		mp := p.Modules[order]
		if mp != nil {
			out = append(out, mp.Scenarios...)
		}
	}
	return out
}

// order fixes a deterministic module iteration order independent of
// Go's randomized map iteration, matching the Planner's emission
// sequence (auth, dashboard, profile, crud, general).
func (p *Plan) order() []ModuleName {
	return []ModuleName{ModuleAuth, ModuleDashboard, ModuleProfile, ModuleCRUD, ModuleGeneral}
}

// ScenarioResult is the terminal outcome for one scenario as recorded
// in Progress.Results.
type ScenarioResult struct {
	Status     ScenarioStatus `json:"status"`
	Name       string         `json:"name"`
	Message    string         `json:"message,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	Video      string         `json:"video,omitempty"`
}

// Progress is the live, per-run mirror of executor state, the single
// source of truth for both the HTTP progress endpoint and on-disk
// execution_progress.json.
type Progress struct {
	Status           RunStatus                 `json:"status"`
	CurrentTest      string                    `json:"current_test,omitempty"`
	Total            int                       `json:"total"`
	Completed        []string                  `json:"completed"`
	Results          map[string]*ScenarioResult `json:"results"`
	CurrentScreenshot string                   `json:"current_screenshot,omitempty"`

	completedSet map[string]bool
}

// NewProgress builds an empty Progress for a plan with the given
// total scenario count.
func NewProgress(total int) *Progress {
	return &Progress{
		Status:       RunPending,
		Total:        total,
		Completed:    []string{},
		Results:      make(map[string]*ScenarioResult),
		completedSet: make(map[string]bool),
	}
}

// MarkCompleted adds id to Completed, eliding duplicates (Completed
// behaves as a set per the data model invariant).
func (p *Progress) MarkCompleted(id string) {
	if p.completedSet == nil {
		p.completedSet = make(map[string]bool)
		for _, c := range p.Completed {
			p.completedSet[c] = true
		}
	}
	if p.completedSet[id] {
		return
	}
	p.completedSet[id] = true
	p.Completed = append(p.Completed, id)
}
