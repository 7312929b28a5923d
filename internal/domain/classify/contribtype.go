package classify

import (
	"path"
	"strings"

	"github.com/src-d/enry/v2"

	"github.com/okian/devmatch/internal/domain/model"
)

// conventionalTypes maps conventional-commit prefixes to contribution types.
var conventionalTypes = map[string]model.ContributionType{
	"feat":     model.TypeFeature,
	"feature":  model.TypeFeature,
	"fix":      model.TypeBugfix,
	"bugfix":   model.TypeBugfix,
	"hotfix":   model.TypeBugfix,
	"refactor": model.TypeRefactor,
	"perf":     model.TypeRefactor,
	"test":     model.TypeTest,
	"tests":    model.TypeTest,
	"docs":     model.TypeDocumentation,
	"doc":      model.TypeDocumentation,
	"ci":       model.TypeInfrastructure,
	"build":    model.TypeInfrastructure,
	"ops":      model.TypeInfrastructure,
	"style":    model.TypeFormatting,
	"deps":     model.TypeDependency,
}

var dependencyManifests = map[string]struct{}{
	"go.mod": {}, "go.sum": {}, "package.json": {}, "package-lock.json": {},
	"yarn.lock": {}, "pnpm-lock.yaml": {}, "cargo.lock": {}, "cargo.toml": {},
	"gemfile": {}, "gemfile.lock": {}, "poetry.lock": {}, "pyproject.toml": {},
	"requirements.txt": {}, "pipfile.lock": {}, "composer.json": {}, "composer.lock": {},
	"mix.lock": {}, "build.gradle": {}, "pom.xml": {},
}

var generatedMarkers = []string{
	".pb.go", ".pb.gw.go", "_generated.go", ".gen.go", "_gen.go", ".min.js",
	".min.css", "_pb2.py", ".g.dart", "zz_generated",
}

var infraPrefixes = []string{
	".github/", ".circleci/", ".gitlab-ci", "deploy/", "deployments/", "infra/",
	"terraform/", "helm/", "charts/", "k8s/", "docker/", "dockerfile",
	"makefile", ".buildkite/", "jenkinsfile",
}

// ContributionType derives a contribution type from the message and changed
// paths. Documentation-kind contributions are always documentation.
func ContributionType(kind model.ContributionKind, message string, paths []string) model.ContributionType {
	if kind == model.KindDocumentation {
		return model.TypeDocumentation
	}
	if t, ok := conventionalType(message); ok {
		return t
	}
	if t, ok := pathType(paths); ok {
		return t
	}
	return keywordType(message)
}

// conventionalType parses "type(scope)!: subject".
func conventionalType(message string) (model.ContributionType, bool) {
	head, _, _ := strings.Cut(strings.TrimSpace(message), "\n")
	prefix, _, found := strings.Cut(head, ":")
	if !found {
		return "", false
	}
	prefix = strings.ToLower(strings.TrimSuffix(strings.TrimSpace(prefix), "!"))
	name, scope, _ := strings.Cut(prefix, "(")
	scope = strings.TrimSuffix(scope, ")")

	if name == "chore" {
		if strings.HasPrefix(scope, "deps") || strings.Contains(strings.ToLower(head), "bump") {
			return model.TypeDependency, true
		}
		return "", false
	}
	if name == "build" && strings.HasPrefix(scope, "deps") {
		return model.TypeDependency, true
	}
	t, ok := conventionalTypes[name]
	return t, ok
}

// pathType classifies when every changed path falls in the same bucket.
func pathType(paths []string) (model.ContributionType, bool) {
	if len(paths) == 0 {
		return "", false
	}
	checks := []struct {
		t  model.ContributionType
		fn func(string) bool
	}{
		{model.TypeDependency, isDependencyManifest},
		{model.TypeGenerated, isGenerated},
		{model.TypeDocumentation, isDocumentation},
		{model.TypeTest, isTestPath},
		{model.TypeInfrastructure, isInfraPath},
	}
	for _, c := range checks {
		if all(paths, c.fn) {
			return c.t, true
		}
	}
	return "", false
}

func keywordType(message string) model.ContributionType {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "bump ") || strings.Contains(m, "upgrade dependenc"):
		return model.TypeDependency
	case strings.Contains(m, "fix") || strings.Contains(m, "bug"):
		return model.TypeBugfix
	case strings.Contains(m, "refactor") || strings.Contains(m, "cleanup"):
		return model.TypeRefactor
	case strings.Contains(m, "gofmt") || strings.Contains(m, "reformat") || strings.Contains(m, "lint"):
		return model.TypeFormatting
	}
	return model.TypeFeature
}

func all(paths []string, fn func(string) bool) bool {
	for _, p := range paths {
		if !fn(p) {
			return false
		}
	}
	return true
}

func isDependencyManifest(p string) bool {
	_, ok := dependencyManifests[strings.ToLower(path.Base(p))]
	return ok
}

func isGenerated(p string) bool {
	if enry.IsVendor(p) {
		return true
	}
	lower := strings.ToLower(p)
	for _, m := range generatedMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

func isDocumentation(p string) bool {
	if enry.IsDocumentation(p) {
		return true
	}
	switch strings.ToLower(path.Ext(p)) {
	case ".md", ".rst", ".adoc", ".txt":
		return true
	}
	return false
}

func isTestPath(p string) bool {
	lower := strings.ToLower(p)
	base := path.Base(lower)
	return strings.HasSuffix(base, "_test.go") ||
		strings.Contains(base, ".test.") || strings.Contains(base, ".spec.") ||
		strings.HasPrefix(base, "test_") ||
		strings.HasPrefix(lower, "test/") || strings.HasPrefix(lower, "tests/") ||
		strings.Contains(lower, "/test/") || strings.Contains(lower, "/tests/") ||
		strings.Contains(lower, "__tests__/") || strings.Contains(lower, "testdata/")
}

func isInfraPath(p string) bool {
	lower := strings.ToLower(p)
	for _, prefix := range infraPrefixes {
		if strings.HasPrefix(lower, prefix) || strings.HasPrefix(path.Base(lower), prefix) {
			return true
		}
	}
	switch path.Ext(lower) {
	case ".tf", ".hcl":
		return true
	}
	return false
}
