// Package health scores module structure from a dependency graph. Each
// module boundary gets a cohesion class, its worst coupling with another
// boundary, a list of issues and a score.
package health

// Cohesion classifies how related the resources of one module are, from
// strongest to weakest.
type Cohesion string

const (
	Functional      Cohesion = "Functional"
	Sequential      Cohesion = "Sequential"
	Communicational Cohesion = "Communicational"
	Procedural      Cohesion = "Procedural"
	Temporal        Cohesion = "Temporal"
	Logical         Cohesion = "Logical"
	Coincidental    Cohesion = "Coincidental"
)

var cohesionRank = map[Cohesion]int{
	Functional: 0, Sequential: 1, Communicational: 2, Procedural: 3,
	Temporal: 4, Logical: 5, Coincidental: 6,
}

// Rank orders classes; higher is weaker.
func (c Cohesion) Rank() int { return cohesionRank[c] }

// Coupling classifies how two modules depend on each other, from loosest to
// tightest.
type Coupling string

const (
	Data    Coupling = "Data"
	Stamp   Coupling = "Stamp"
	Control Coupling = "Control"
	Common  Coupling = "Common"
	Content Coupling = "Content"
)

var couplingRank = map[Coupling]int{Data: 0, Stamp: 1, Control: 2, Common: 3, Content: 4}

// Rank orders classes; higher is tighter.
func (c Coupling) Rank() int { return couplingRank[c] }

// Severity of an issue.
type Severity string

const (
	Low    Severity = "low"
	Medium Severity = "medium"
	High   Severity = "high"
)

var severityRank = map[Severity]int{Low: 0, Medium: 1, High: 2}

// Rank orders severities; higher is more severe.
func (s Severity) Rank() int { return severityRank[s] }

// IssueKind names a detected problem.
type IssueKind string

const (
	ExcessiveVariables   IssueKind = "ExcessiveVariables"
	LogicalCohesion      IssueKind = "LogicalCohesion"
	DeepHierarchy        IssueKind = "DeepHierarchy"
	MissingDocumentation IssueKind = "MissingDocumentation"
	PublicModuleRisk     IssueKind = "PublicModuleRisk"
	ContentCoupling      IssueKind = "ContentCoupling"
	CyclicDependency     IssueKind = "CyclicDependency"
	DanglingReference    IssueKind = "DanglingReference"
)

var issueOrder = map[IssueKind]int{
	CyclicDependency: 0, ContentCoupling: 1, ExcessiveVariables: 2, LogicalCohesion: 3,
	DeepHierarchy: 4, PublicModuleRisk: 5, DanglingReference: 6, MissingDocumentation: 7,
}

// Issue is one problem found in a module.
type Issue struct {
	Kind        IssueKind `json:"kind"`
	Severity    Severity  `json:"severity"`
	Description string    `json:"description"`
	Module      string    `json:"module"`
	// Targets names the declarations involved.
	Targets []string `json:"targets,omitempty"`
}

// CohesionMetric is a cohesion class with the fraction of resources taking
// part in the qualifying relationship.
type CohesionMetric struct {
	Class       Cohesion `json:"class"`
	Strength    float64  `json:"strength"`
	Explanation string   `json:"explanation"`
}

// CouplingMetric is a coupling class with the fraction of boundary crossings
// of that class.
type CouplingMetric struct {
	Class       Coupling `json:"class"`
	Strength    float64  `json:"strength"`
	With        string   `json:"with,omitempty"`
	Explanation string   `json:"explanation"`
}

// PairCoupling is the coupling between two boundaries.
type PairCoupling struct {
	A         string   `json:"a"`
	B         string   `json:"b"`
	Class     Coupling `json:"class"`
	Strength  float64  `json:"strength"`
	Crossings int      `json:"crossings"`
	Details   []string `json:"details,omitempty"`
}

// ResourceGroup is a set of resources of one family within a module.
type ResourceGroup struct {
	Family    string   `json:"family"`
	Resources []string `json:"resources"`
}

// Metrics are raw counts for a module.
type Metrics struct {
	Resources             int `json:"resources"`
	DataSources           int `json:"dataSources"`
	Variables             int `json:"variables"`
	Outputs               int `json:"outputs"`
	ModuleCalls           int `json:"moduleCalls"`
	UndocumentedVariables int `json:"undocumentedVariables"`
	UndocumentedOutputs   int `json:"undocumentedOutputs"`
	ResourceTypes         int `json:"resourceTypes"`
}

// SuggestionKind names a refactoring.
type SuggestionKind string

const (
	SplitModule         SuggestionKind = "SplitModule"
	FlattenHierarchy    SuggestionKind = "FlattenHierarchy"
	AddDescriptions     SuggestionKind = "AddDescriptions"
	WrapPublicModule    SuggestionKind = "WrapPublicModule"
	BreakCycle          SuggestionKind = "BreakCycle"
	RouteThroughOutputs SuggestionKind = "RouteThroughOutputs"
	FixReference        SuggestionKind = "FixReference"
)

// Suggestion is an actionable refactoring with migration steps.
type Suggestion struct {
	Kind     SuggestionKind `json:"kind"`
	Module   string         `json:"module"`
	Severity Severity       `json:"severity"`
	Title    string         `json:"title"`
	Targets  []string       `json:"targets,omitempty"`
	Steps    []string       `json:"steps"`
}

// Report is the health assessment of one module boundary.
type Report struct {
	Module      string          `json:"module"`
	Path        string          `json:"path"`
	Depth       int             `json:"depth"`
	Score       int             `json:"score"`
	Cohesion    CohesionMetric  `json:"cohesion"`
	Coupling    CouplingMetric  `json:"coupling"`
	Metrics     Metrics         `json:"metrics"`
	Groups      []ResourceGroup `json:"groups,omitempty"`
	Issues      []Issue         `json:"issues"`
	Suggestions []Suggestion    `json:"suggestions"`
}

// HasIssue reports whether the report contains an issue of kind.
func (r *Report) HasIssue(kind IssueKind) bool {
	for _, i := range r.Issues {
		if i.Kind == kind {
			return true
		}
	}
	return false
}
