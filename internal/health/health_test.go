package health

import (
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"tfmcp/internal/depgraph"
	"tfmcp/internal/tfmodel"
)

type moduleSrc struct {
	path string
	src  string
}

func graphOf(t *testing.T, mods ...moduleSrc) *depgraph.Graph {
	t.Helper()
	cfg := &tfmodel.Config{Root: "/cfg"}
	for _, m := range mods {
		mod, err := tfmodel.ParseFiles(m.path, map[string][]byte{"main.tf": []byte(m.src)})
		if err != nil {
			t.Fatalf("parse %q: %v", m.path, err)
		}
		cfg.Modules = append(cfg.Modules, mod)
	}
	return depgraph.Build(cfg)
}

func analyze(t *testing.T, mods ...moduleSrc) []Report {
	t.Helper()
	return NewAnalyzer(DefaultThresholds(), nil).Analyze(graphOf(t, mods...))
}

func reportFor(t *testing.T, reports []Report, path string) Report {
	t.Helper()
	for _, r := range reports {
		if r.Path == path {
			return r
		}
	}
	t.Fatalf("no report for %q", path)
	return Report{}
}

func issueKinds(r Report) []IssueKind {
	var out []IssueKind
	for _, i := range r.Issues {
		out = append(out, i.Kind)
	}
	return out
}

func documentedVariables(n int) string {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&sb, "variable \"v%02d\" {\n  description = \"input %d\"\n}\n", i, i)
	}
	return sb.String()
}

func TestExcessiveVariables(t *testing.T) {
	reports := analyze(t, moduleSrc{"", documentedVariables(25)})
	r := reportFor(t, reports, "")

	if diff := cmp.Diff([]IssueKind{ExcessiveVariables}, issueKinds(r)); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
	if r.Issues[0].Severity != Medium {
		t.Errorf("severity = %s, want medium", r.Issues[0].Severity)
	}
	if r.Score != 90 {
		t.Errorf("score = %d, want 90", r.Score)
	}
	if r.Module != "root" {
		t.Errorf("module = %q, want root", r.Module)
	}
}

func TestExcessiveVariablesCritical(t *testing.T) {
	r := reportFor(t, analyze(t, moduleSrc{"", documentedVariables(50)}), "")
	if len(r.Issues) != 1 || r.Issues[0].Severity != High {
		t.Errorf("issues = %+v, want one high severity issue", r.Issues)
	}
}

func TestVariablesAtLimit(t *testing.T) {
	r := reportFor(t, analyze(t, moduleSrc{"", documentedVariables(20)}), "")
	if r.HasIssue(ExcessiveVariables) {
		t.Errorf("20 variables should not exceed the limit")
	}
	if r.Score != 100 {
		t.Errorf("score = %d, want 100", r.Score)
	}
}

func TestDeepHierarchy(t *testing.T) {
	call := func(name string) string {
		return fmt.Sprintf("module %q {\n  source = \"./%s\"\n}\n", name, name)
	}
	reports := analyze(t,
		moduleSrc{"", call("a")},
		moduleSrc{"module.a", call("b")},
		moduleSrc{"module.a.module.b", call("c")},
		moduleSrc{"module.a.module.b.module.c", call("d")},
		moduleSrc{"module.a.module.b.module.c.module.d", `resource "aws_s3_bucket" "logs" {}`},
	)

	var paths []string
	for _, r := range reports {
		paths = append(paths, r.Path)
	}
	wantPaths := []string{"", "module.a", "module.a.module.b", "module.a.module.b.module.c", "module.a.module.b.module.c.module.d"}
	if diff := cmp.Diff(wantPaths, paths); diff != "" {
		t.Fatalf("report order (-want +got):\n%s", diff)
	}

	for _, r := range reports {
		want := r.Depth > 3
		if r.HasIssue(DeepHierarchy) != want {
			t.Errorf("%s at depth %d: DeepHierarchy = %v, want %v", r.Module, r.Depth, !want, want)
		}
	}
	deep := reportFor(t, reports, "module.a.module.b.module.c.module.d")
	if deep.Depth != 4 {
		t.Errorf("depth = %d, want 4", deep.Depth)
	}
	if deep.Score != 90 {
		t.Errorf("score = %d, want 90", deep.Score)
	}
}

func TestCohesionClasses(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		want     Cohesion
		strength float64
	}{
		{
			name: "single resource",
			src:  `resource "aws_s3_bucket" "a" {}`,
			want: Functional, strength: 1,
		},
		{
			name: "one family",
			src: `
resource "aws_vpc" "main" {}
resource "aws_subnet" "a" {
  vpc_id = aws_vpc.main.id
}
resource "aws_route_table" "rt" {}
`,
			want: Functional, strength: 1,
		},
		{
			name: "purpose tag",
			src: `
resource "aws_s3_bucket" "a" {
  tags = { Purpose = "audit" }
}
resource "aws_iam_role" "r" {
  tags = { Purpose = "audit" }
}
`,
			want: Functional, strength: 1,
		},
		{
			name: "chain",
			src: `
resource "aws_s3_bucket" "b" {}
resource "aws_iam_role" "r" {
  name = aws_s3_bucket.b.id
}
resource "aws_instance" "i" {
  iam_instance_profile = aws_iam_role.r.name
}
`,
			want: Sequential, strength: 1,
		},
		{
			name: "shared variable",
			src: `
resource "aws_s3_bucket" "b" {
  bucket = var.name
}
resource "aws_iam_role" "r" {
  name = var.name
}
resource "aws_instance" "i" {
  tags = { Name = var.name }
}
`,
			want: Communicational, strength: 1,
		},
		{
			name: "shared count",
			src: `
resource "aws_s3_bucket" "b" {
  count = var.enabled ? 1 : 0
}
resource "aws_iam_role" "r" {
  count = var.enabled ? 1 : 0
}
resource "aws_instance" "i" {
  count = var.enabled ? 1 : 0
}
`,
			want: Procedural, strength: 1,
		},
		{
			name: "depends_on only",
			src: `
resource "aws_s3_bucket" "a" {}
resource "aws_iam_role" "b" {
  depends_on = [aws_s3_bucket.a]
}
resource "aws_instance" "c" {
  depends_on = [aws_s3_bucket.a]
}
resource "aws_sqs_queue" "d" {
  depends_on = [aws_s3_bucket.a]
}
`,
			want: Temporal, strength: 1,
		},
		{
			name: "same provider unrelated families",
			src: `
resource "aws_s3_bucket" "b" {}
resource "aws_iam_role" "r" {}
resource "aws_instance" "i" {}
`,
			want: Logical, strength: 1,
		},
		{
			name: "unrelated",
			src: `
resource "aws_s3_bucket" "b" {}
resource "google_compute_instance" "g" {}
resource "azurerm_resource_group" "r" {}
`,
			want: Coincidental, strength: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := reportFor(t, analyze(t, moduleSrc{"", tt.src}), "")
			if r.Cohesion.Class != tt.want {
				t.Fatalf("cohesion = %s (%s), want %s", r.Cohesion.Class, r.Cohesion.Explanation, tt.want)
			}
			if math.Abs(r.Cohesion.Strength-tt.strength) > 1e-9 {
				t.Errorf("strength = %g, want %g", r.Cohesion.Strength, tt.strength)
			}
		})
	}
}

func TestLogicalCohesionIssue(t *testing.T) {
	coincidental := reportFor(t, analyze(t, moduleSrc{"", `
resource "aws_s3_bucket" "b" {}
resource "google_compute_instance" "g" {}
resource "azurerm_resource_group" "r" {}
`}), "")
	if len(coincidental.Issues) != 1 || coincidental.Issues[0].Kind != LogicalCohesion || coincidental.Issues[0].Severity != High {
		t.Errorf("issues = %+v, want one high LogicalCohesion issue", coincidental.Issues)
	}
	if coincidental.Score != 80 {
		t.Errorf("score = %d, want 80", coincidental.Score)
	}

	logical := reportFor(t, analyze(t, moduleSrc{"", `
resource "aws_s3_bucket" "b" {}
resource "aws_iam_role" "r" {}
`}), "")
	if len(logical.Issues) != 1 || logical.Issues[0].Severity != Medium {
		t.Errorf("issues = %+v, want one medium LogicalCohesion issue", logical.Issues)
	}
}

func TestCouplingClasses(t *testing.T) {
	g := graphOf(t,
		moduleSrc{"", `
variable "enabled" {
  description = "toggle"
}
module "app" {
  source   = "./app"
  enabled  = var.enabled
  settings = { size = 1 }
  name     = "app"
}
`},
		moduleSrc{"module.app", `
variable "enabled" {
  description = "toggle"
}
variable "settings" {
  description = "settings"
  type        = map(string)
}
variable "name" {
  description = "name"
}
resource "aws_s3_bucket" "b" {
  count  = var.enabled ? 1 : 0
  bucket = var.name
}
`},
	)
	a := NewAnalyzer(DefaultThresholds(), nil)

	pairs := a.Couplings(g)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %+v, want 1", pairs)
	}
	p := pairs[0]
	if p.A != "" || p.B != "module.app" || p.Class != Control || p.Crossings != 3 {
		t.Errorf("pair = %+v", p)
	}
	if math.Abs(p.Strength-1.0/3) > 1e-9 {
		t.Errorf("strength = %g, want 1/3", p.Strength)
	}

	root := reportFor(t, a.Analyze(g), "")
	if root.Coupling.Class != Control || root.Coupling.With != "module.app" {
		t.Errorf("coupling = %+v", root.Coupling)
	}
	if root.Score != 97 {
		t.Errorf("score = %d, want 97 (control penalty 10 scaled by 1/3)", root.Score)
	}
}

func TestStampAndDataCoupling(t *testing.T) {
	tests := []struct {
		name  string
		input string
		vtype string
		want  Coupling
	}{
		{"scalar literal", `"x"`, "string", Data},
		{"object literal", `{ a = 1 }`, "any", Stamp},
		{"scalar into map variable", `var.tags`, "map(string)", Stamp},
		{"scalar variable", `var.name`, "string", Data},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := graphOf(t,
				moduleSrc{"", fmt.Sprintf("module \"m\" {\n  source = \"./m\"\n  input = %s\n}\n", tt.input)},
				moduleSrc{"module.m", fmt.Sprintf("variable \"input\" {\n  type = %s\n}\nresource \"aws_s3_bucket\" \"b\" {\n  bucket = var.input\n}\n", tt.vtype)},
			)
			pairs := NewAnalyzer(DefaultThresholds(), nil).Couplings(g)
			if len(pairs) != 1 || pairs[0].Class != tt.want {
				t.Errorf("pairs = %+v, want class %s", pairs, tt.want)
			}
		})
	}
}

func TestModuleOutputIsDataCoupling(t *testing.T) {
	g := graphOf(t,
		moduleSrc{"", `
module "net" {
  source = "./net"
}
resource "aws_instance" "web" {
  subnet_id = module.net.subnet_id
}
`},
		moduleSrc{"module.net", `
resource "aws_subnet" "a" {}
output "subnet_id" {
  description = "subnet"
  value       = aws_subnet.a.id
}
`},
	)
	reports := NewAnalyzer(DefaultThresholds(), nil).Analyze(g)
	root := reportFor(t, reports, "")
	if root.Coupling.Class != Data || root.Coupling.Strength != 1 {
		t.Errorf("coupling = %+v, want Data 1", root.Coupling)
	}
	if root.HasIssue(ContentCoupling) {
		t.Errorf("output consumption must not raise content coupling")
	}
}

func TestContentCoupling(t *testing.T) {
	reports := analyze(t,
		moduleSrc{"", `
module "net" {
  source = "./net"
}
resource "aws_subnet" "x" {
  vpc_id = aws_vpc.main.id
}
`},
		moduleSrc{"module.net", `
resource "aws_vpc" "main" {}
`},
	)

	root := reportFor(t, reports, "")
	if root.Coupling.Class != Content {
		t.Errorf("root coupling = %s, want Content", root.Coupling.Class)
	}
	if len(root.Issues) == 0 || root.Issues[0].Kind != ContentCoupling || root.Issues[0].Severity != High {
		t.Fatalf("issues = %+v, want ContentCoupling first at high severity", root.Issues)
	}
	if diff := cmp.Diff([]string{"aws_subnet.x", "module.net.aws_vpc.main"}, root.Issues[0].Targets); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}
	// 100 - 20 (issue) - 20 (content coupling at full strength)
	if root.Score != 60 {
		t.Errorf("score = %d, want 60", root.Score)
	}

	net := reportFor(t, reports, "module.net")
	if net.HasIssue(ContentCoupling) {
		t.Errorf("content coupling is raised on the consumer side only")
	}
	if net.Coupling.Class != Content || net.Coupling.With != "root" {
		t.Errorf("net coupling = %+v", net.Coupling)
	}
}

func TestCommonCoupling(t *testing.T) {
	remote := `
data "terraform_remote_state" "shared" {
  backend = "s3"
  config = {
    bucket = "state"
    key    = "core.tfstate"
  }
}
`
	g := graphOf(t,
		moduleSrc{"", "module \"a\" {\n  source = \"./a\"\n}\nmodule \"b\" {\n  source = \"./b\"\n}\n"},
		moduleSrc{"module.a", remote},
		moduleSrc{"module.b", remote},
	)
	pairs := NewAnalyzer(DefaultThresholds(), nil).Couplings(g)
	if len(pairs) != 1 {
		t.Fatalf("pairs = %+v, want 1", pairs)
	}
	if pairs[0].A != "module.a" || pairs[0].B != "module.b" || pairs[0].Class != Common {
		t.Errorf("pair = %+v", pairs[0])
	}
}

func TestCyclicDependencyIssue(t *testing.T) {
	r := reportFor(t, analyze(t, moduleSrc{"", `
resource "aws_s3_bucket" "a" {
  depends_on = [aws_s3_bucket.b]
}
resource "aws_s3_bucket" "b" {
  depends_on = [aws_s3_bucket.a]
}
`}), "")
	if !r.HasIssue(CyclicDependency) {
		t.Fatalf("issues = %+v, want CyclicDependency", r.Issues)
	}
	if r.Issues[0].Kind != CyclicDependency || r.Issues[0].Severity != High {
		t.Errorf("first issue = %+v", r.Issues[0])
	}
}

func TestDanglingReferenceIssue(t *testing.T) {
	r := reportFor(t, analyze(t, moduleSrc{"", `
resource "aws_s3_bucket" "a" {
  bucket = aws_s3_bucket.missing.id
}
`}), "")
	if !r.HasIssue(DanglingReference) {
		t.Errorf("issues = %+v, want DanglingReference", r.Issues)
	}
}

func TestMissingDocumentation(t *testing.T) {
	r := reportFor(t, analyze(t, moduleSrc{"", `
variable "documented" {
  description = "has one"
}
variable "bare" {}
output "id" {
  value = "x"
}
`}), "")
	if diff := cmp.Diff([]IssueKind{MissingDocumentation}, issueKinds(r)); diff != "" {
		t.Fatalf("issues (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"var.bare", "output.id"}, r.Issues[0].Targets); diff != "" {
		t.Errorf("targets (-want +got):\n%s", diff)
	}
	if r.Issues[0].Severity != Low || r.Score != 95 {
		t.Errorf("severity = %s score = %d, want low and 95", r.Issues[0].Severity, r.Score)
	}
	if r.Metrics.UndocumentedVariables != 1 || r.Metrics.UndocumentedOutputs != 1 {
		t.Errorf("metrics = %+v", r.Metrics)
	}
}

func TestPublicModuleRisk(t *testing.T) {
	direct := reportFor(t, analyze(t, moduleSrc{"", `
resource "aws_s3_bucket" "logs" {}
module "vpc" {
  source  = "terraform-aws-modules/vpc/aws"
  version = "5.0.0"
}
`}), "")
	if !direct.HasIssue(PublicModuleRisk) {
		t.Errorf("issues = %+v, want PublicModuleRisk", direct.Issues)
	}

	wrapper := reportFor(t, analyze(t, moduleSrc{"", `
module "vpc" {
  source  = "terraform-aws-modules/vpc/aws"
  version = "5.0.0"
}
`}), "")
	if wrapper.HasIssue(PublicModuleRisk) {
		t.Errorf("a boundary wrapping a single registry module is not at risk")
	}
}

func TestIssueOrdering(t *testing.T) {
	src := documentedVariables(25) + `
variable "bare" {}
resource "aws_s3_bucket" "b" {}
resource "google_compute_instance" "g" {}
resource "azurerm_resource_group" "r" {}
`
	r := reportFor(t, analyze(t, moduleSrc{"", src}), "")
	want := []IssueKind{LogicalCohesion, ExcessiveVariables, MissingDocumentation}
	if diff := cmp.Diff(want, issueKinds(r)); diff != "" {
		t.Errorf("issue order (-want +got):\n%s", diff)
	}
}

func TestScoreBounds(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "variable \"v%02d\" {}\noutput \"o%02d\" {\n  value = var.v%02d\n}\n", i, i, i)
	}
	bad := sb.String() + `
resource "aws_s3_bucket" "a" {
  depends_on = [aws_s3_bucket.b]
  bucket     = aws_s3_bucket.ghost.id
}
resource "aws_s3_bucket" "b" {
  depends_on = [aws_s3_bucket.a]
}
resource "google_compute_instance" "g" {
  zone = google_compute_disk.gone.zone
}
resource "azurerm_resource_group" "r" {
  location = aws_vpc.main.id
}
module "vpc" {
  source = "terraform-aws-modules/vpc/aws"
}
module "inner" {
  source = "./inner"
}
`
	reports := analyze(t,
		moduleSrc{"", bad},
		moduleSrc{"module.inner", `resource "aws_vpc" "main" {}`},
	)
	for _, r := range reports {
		if r.Score < 0 || r.Score > 100 {
			t.Errorf("%s: score %d out of range", r.Module, r.Score)
		}
	}
	if root := reportFor(t, reports, ""); root.Score != 0 {
		t.Errorf("root score = %d, want clamp to 0", root.Score)
	}
}

func TestThresholdsOverride(t *testing.T) {
	th := DefaultThresholds()
	th.MaxVariables = 5
	th.CriticalVariables = 6
	g := graphOf(t, moduleSrc{"", documentedVariables(6)})
	r := reportFor(t, NewAnalyzer(th, nil).Analyze(g), "")
	if len(r.Issues) != 1 || r.Issues[0].Severity != High {
		t.Errorf("issues = %+v, want one high ExcessiveVariables", r.Issues)
	}
}

func TestThresholdsValidate(t *testing.T) {
	if err := DefaultThresholds().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	tests := []struct {
		name   string
		mutate func(*Thresholds)
	}{
		{"zero max variables", func(th *Thresholds) { th.MaxVariables = 0 }},
		{"critical below max", func(th *Thresholds) { th.CriticalVariables = th.MaxVariables }},
		{"zero depth", func(th *Thresholds) { th.MaxDepth = 0 }},
		{"threshold above one", func(th *Thresholds) { th.ParticipationThreshold = 1.5 }},
		{"negative penalty", func(th *Thresholds) { th.PenaltyLow = -1 }},
		{"negative coupling penalty", func(th *Thresholds) { th.ContentCouplingPenalty = -1 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			th := DefaultThresholds()
			tt.mutate(&th)
			if err := th.Validate(); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestFamily(t *testing.T) {
	tests := map[string]string{
		"aws_subnet":              "networking-core",
		"aws_route53_record":      "dns",
		"aws_lb_target_group":     "load-balancing",
		"aws_db_instance":         "database",
		"aws_s3_bucket":           "storage",
		"aws_iam_role":            "security",
		"aws_lambda_function":     "serverless",
		"google_compute_instance": "compute",
		"aws_security_group":      "networking-security",
		"azurerm_resource_group":  FamilyOther,
	}
	for typ, want := range tests {
		if got := Family(typ); got != want {
			t.Errorf("Family(%q) = %q, want %q", typ, got, want)
		}
	}
}
