package tfmodel

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

const networkTF = `
terraform {
  required_version = ">= 1.3"
  required_providers {
    aws = {
      source  = "hashicorp/aws"
      version = "~> 5.0, < 5.40"
    }
    random = "~> 3.1"
  }
  backend "s3" {
    bucket = "state"
    key    = "network.tfstate"
  }
}

variable "cidr" {
  type        = string
  description = "VPC CIDR block"
}

variable "enable_nat" {
  type    = bool
  default = false
}

locals {
  name = "net-${var.cidr}"
}

resource "aws_vpc" "main" {
  cidr_block = var.cidr
  tags = {
    Name = local.name
  }
}

resource "aws_subnet" "public" {
  count      = var.enable_nat ? 2 : 0
  vpc_id     = aws_vpc.main.id
  cidr_block = cidrsubnet(var.cidr, 8, count.index)
  provider   = aws.west

  lifecycle {
    ignore_changes = [tags.Name]
  }
}

resource "aws_security_group" "web" {
  vpc_id = aws_vpc.main.id

  ingress {
    from_port   = 443
    cidr_blocks = [var.cidr]
  }
  ingress {
    from_port = 80
  }

  depends_on = [aws_subnet.public, module.dns]
}

data "aws_ami" "ubuntu" {
  most_recent = true
}

module "dns" {
  source  = "terraform-aws-modules/route53/aws"
  version = "2.10.0"
  count   = 1
  zone    = aws_vpc.main.id
}

output "vpc_id" {
  value       = aws_vpc.main.id
  description = "The VPC"
}

output "sg" {
  value = aws_security_group.web.id
}
`

func TestParseFiles(t *testing.T) {
	m, err := ParseFiles("module.network", map[string][]byte{"main.tf": []byte(networkTF)})
	if err != nil {
		t.Fatalf("ParseFiles: %v", err)
	}

	if len(m.Resources) != 4 {
		t.Fatalf("got %d resources, want 4", len(m.Resources))
	}
	addrs := make([]string, 0, len(m.Resources))
	for _, r := range m.Resources {
		addrs = append(addrs, r.Address())
		if r.Module != "module.network" {
			t.Errorf("%s module = %q", r.Address(), r.Module)
		}
	}
	want := []string{"aws_vpc.main", "aws_subnet.public", "aws_security_group.web", "data.aws_ami.ubuntu"}
	if diff := cmp.Diff(want, addrs); diff != "" {
		t.Errorf("addresses (-want +got):\n%s", diff)
	}

	subnet := m.Resources[1]
	if subnet.Attributes["vpc_id"] != "aws_vpc.main.id" {
		t.Errorf("vpc_id source = %q", subnet.Attributes["vpc_id"])
	}
	if subnet.Attributes["count"] != "var.enable_nat ? 2 : 0" {
		t.Errorf("count source = %q", subnet.Attributes["count"])
	}
	if subnet.Provider != "aws.west" {
		t.Errorf("provider = %q", subnet.Provider)
	}
	if _, ok := subnet.Attributes["provider"]; ok {
		t.Error("provider meta-argument should not be an attribute")
	}
	if _, ok := subnet.Attributes["lifecycle.ignore_changes"]; ok {
		t.Error("ignore_changes should be skipped")
	}

	sg := m.Resources[2]
	if diff := cmp.Diff([]string{"aws_subnet.public", "module.dns"}, sg.DependsOn); diff != "" {
		t.Errorf("depends_on (-want +got):\n%s", diff)
	}
	if sg.Attributes["ingress.from_port"] != "443" || sg.Attributes["ingress[1].from_port"] != "80" {
		t.Errorf("ingress ports = %q, %q", sg.Attributes["ingress.from_port"], sg.Attributes["ingress[1].from_port"])
	}
	if sg.Attributes["ingress.cidr_blocks"] != "[var.cidr]" {
		t.Errorf("ingress.cidr_blocks = %q", sg.Attributes["ingress.cidr_blocks"])
	}

	if len(m.Variables) != 2 || m.Variables[0].Description != "VPC CIDR block" || m.Variables[0].Type != "string" {
		t.Errorf("variables = %+v", m.Variables)
	}
	if !m.Variables[1].HasDefault || m.Variables[1].Description != "" {
		t.Errorf("enable_nat = %+v", m.Variables[1])
	}
	if m.Locals["name"] != `"net-${var.cidr}"` {
		t.Errorf("local name = %q", m.Locals["name"])
	}

	if len(m.ModuleCalls) != 1 {
		t.Fatalf("module calls = %+v", m.ModuleCalls)
	}
	mc := m.ModuleCalls[0]
	if mc.Version != "2.10.0" || mc.Inputs["zone"] != "aws_vpc.main.id" || mc.Meta["count"] != "1" {
		t.Errorf("module call = %+v", mc)
	}
	if _, ok := mc.Inputs["source"]; ok {
		t.Error("source must not be an input")
	}
	if !mc.SourceInfo.IsPublicRegistry() || mc.SourceInfo.Namespace != "terraform-aws-modules" {
		t.Errorf("source info = %+v", mc.SourceInfo)
	}

	if out, ok := m.Output("vpc_id"); !ok || out.Value != "aws_vpc.main.id" || out.Description != "The VPC" {
		t.Errorf("vpc_id output = %+v", out)
	}

	if len(m.Backends) != 1 || m.Backends[0].Type != "s3" || m.Backends[0].Config["bucket"] != `"state"` {
		t.Errorf("backends = %+v", m.Backends)
	}

	wantReqs := []ProviderRequirement{
		{Name: "aws", Source: "hashicorp/aws", Constraints: []string{"~> 5.0", "< 5.40"}},
		{Name: "random", Constraints: []string{"~> 3.1"}},
	}
	got := m.RequiredProviders
	if len(got) == 2 && got[0].Name == "random" {
		got = []ProviderRequirement{got[1], got[0]}
	}
	if diff := cmp.Diff(wantReqs, got); diff != "" {
		t.Errorf("required providers (-want +got):\n%s", diff)
	}
}

func TestParseFilesCollectsErrors(t *testing.T) {
	files := map[string][]byte{
		"a.tf":  []byte(`resource "x_y" "z" {`),
		"b.tf":  []byte(`module "m" { foo = 1 }`),
		"ok.tf": []byte(`resource "null_resource" "n" {}`),
	}
	m, err := ParseFiles(RootPath, files)
	if err == nil {
		t.Fatal("expected errors")
	}
	msg := err.Error()
	for _, want := range []string{"a.tf", `module "m" has no source`} {
		if !strings.Contains(msg, want) {
			t.Errorf("error %q missing %q", msg, want)
		}
	}
	if len(m.Resources) != 1 {
		t.Errorf("clean files should still load, got %d resources", len(m.Resources))
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadDirFollowsLocalModules(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.tf"), `
module "app" {
  source = "./modules/app"
  name   = "web"
}
module "vpc" {
  source = "terraform-aws-modules/vpc/aws"
}
provider "aws" {
  version = "~> 2.0"
}
`)
	writeFile(t, filepath.Join(dir, "modules", "app", "main.tf"), `
variable "name" {}
module "db" {
  source = "../db"
}
resource "aws_instance" "this" {
  tags = { Name = var.name }
}
`)
	writeFile(t, filepath.Join(dir, "modules", "db", "main.tf"), `
resource "aws_db_instance" "this" {}
`)
	writeFile(t, filepath.Join(dir, "modules", "db", "notes.txt"), `ignored`)

	cfg, err := LoadDir(context.Background(), dir)
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	var paths []string
	for _, m := range cfg.Modules {
		paths = append(paths, m.Path)
	}
	if diff := cmp.Diff([]string{"", "module.app", "module.app.module.db"}, paths); diff != "" {
		t.Errorf("module paths (-want +got):\n%s", diff)
	}
	db := cfg.Module("module.app.module.db")
	if db == nil || db.Depth() != 2 || db.Resources[0].Module != "module.app.module.db" {
		t.Errorf("db module = %+v", db)
	}

	root := cfg.Module(RootPath)
	var found bool
	for _, req := range root.RequiredProviders {
		if req.Name == "aws" && len(req.Constraints) == 1 && req.Constraints[0] == "~> 2.0" {
			found = true
		}
	}
	if !found {
		t.Errorf("legacy provider version not picked up: %+v", root.RequiredProviders)
	}
}

func TestLoadDirErrors(t *testing.T) {
	if _, err := LoadDir(context.Background(), t.TempDir()); err == nil {
		t.Error("empty directory should fail")
	}

	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.tf"), `
module "missing" {
  source = "./nope"
}
module "self" {
  source = "./"
}
`)
	cfg, err := LoadDir(context.Background(), dir)
	if err == nil {
		t.Fatal("expected errors")
	}
	if !strings.Contains(err.Error(), "not found") || !strings.Contains(err.Error(), "includes itself") {
		t.Errorf("err = %v", err)
	}
	if cfg == nil || cfg.Module(RootPath) == nil {
		t.Error("root module should still be returned")
	}
}

func TestParseModuleSource(t *testing.T) {
	tests := []struct {
		src  string
		want SourceInfo
	}{
		{"./modules/app", SourceInfo{Kind: SourceLocal}},
		{"../shared", SourceInfo{Kind: SourceLocal}},
		{"terraform-aws-modules/vpc/aws", SourceInfo{Kind: SourceRegistry, Host: "registry.terraform.io", Namespace: "terraform-aws-modules", Name: "vpc", Provider: "aws"}},
		{"app.terraform.io/acme/network/azurerm", SourceInfo{Kind: SourceRegistry, Host: "app.terraform.io", Namespace: "acme", Name: "network", Provider: "azurerm"}},
		{"hashicorp/consul/aws//modules/consul-cluster", SourceInfo{Kind: SourceRegistry, Host: "registry.terraform.io", Namespace: "hashicorp", Name: "consul", Provider: "aws", Subdir: "modules/consul-cluster"}},
		{"github.com/hashicorp/example", SourceInfo{Kind: SourceGit}},
		{"git::https://example.com/vpc.git?ref=v1.2.0", SourceInfo{Kind: SourceGit}},
		{"https://example.com/vpc-module.zip", SourceInfo{Kind: SourceHTTP}},
		{"s3::https://s3-eu-west-1.amazonaws.com/bucket/vpc.zip", SourceInfo{Kind: SourceOther}},
		{"a/b", SourceInfo{Kind: SourceOther}},
		{"acme/net/Not_Valid", SourceInfo{Kind: SourceOther}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, ParseModuleSource(tt.src)); diff != "" {
				t.Errorf("ParseModuleSource(%q) (-want +got):\n%s", tt.src, diff)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	tests := []struct {
		path   string
		depth  int
		parent string
	}{
		{RootPath, 0, RootPath},
		{"module.a", 1, RootPath},
		{"module.submodule.module.b", 2, "module.submodule"},
		{"module.a.module.b.module.c.module.d", 4, "module.a.module.b.module.c"},
	}
	for _, tt := range tests {
		if got := Depth(tt.path); got != tt.depth {
			t.Errorf("Depth(%q) = %d, want %d", tt.path, got, tt.depth)
		}
		if got := ParentPath(tt.path); got != tt.parent {
			t.Errorf("ParentPath(%q) = %q, want %q", tt.path, got, tt.parent)
		}
	}
	if got := ChildPath(ChildPath(RootPath, "a"), "b"); got != "module.a.module.b" {
		t.Errorf("ChildPath = %q", got)
	}
	if DisplayPath(RootPath) != "root" {
		t.Error("root display path")
	}
}
