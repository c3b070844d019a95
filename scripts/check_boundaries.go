// Command check_boundaries enforces the hexagonal import rules inside
// contexts/: domain stays pure, application and ports depend only on the
// service's own inner layers, and services never import each other.
package main

import (
	"fmt"
	"go/parser"
	"go/token"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const modulePath = "medrecords"

type violation struct {
	File   string
	Line   int
	Import string
	Rule   string
}

type layerRule struct {
	// inner layers of the same service the layer may import
	allowedLayers []string
	// extra module packages outside the service
	allowedShared []string
}

var layerRules = map[string]layerRule{
	"domain": {
		allowedLayers: []string{"domain"},
	},
	"ports": {
		allowedLayers: []string{"domain", "ports"},
		allowedShared: []string{modulePath + "/contracts"},
	},
	"application": {
		allowedLayers: []string{"application", "domain", "ports"},
		allowedShared: []string{modulePath + "/contracts"},
	},
}

func main() {
	violations := collectViolations("contexts")
	if len(violations) == 0 {
		fmt.Println("boundary checks passed")
		return
	}

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].File != violations[j].File {
			return violations[i].File < violations[j].File
		}
		if violations[i].Line != violations[j].Line {
			return violations[i].Line < violations[j].Line
		}
		return violations[i].Import < violations[j].Import
	})

	fmt.Println("boundary violations found:")
	for _, v := range violations {
		fmt.Printf("- %s:%d imports %q (%s)\n", v.File, v.Line, v.Import, v.Rule)
	}
	os.Exit(1)
}

func collectViolations(root string) []violation {
	var violations []violation

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".go") || strings.HasSuffix(path, "_test.go") {
			return nil
		}

		parts := strings.Split(filepath.ToSlash(path), "/")
		if len(parts) < 4 || parts[0] != "contexts" {
			return nil
		}

		servicePrefix := fmt.Sprintf("%s/contexts/%s/%s", modulePath, parts[1], parts[2])
		violations = append(violations, validateFile(path, parts[3], servicePrefix)...)
		return nil
	})

	return violations
}

func validateFile(path string, layer string, servicePrefix string) []violation {
	normalized := filepath.ToSlash(path)
	fset := token.NewFileSet()
	file, err := parser.ParseFile(fset, path, nil, parser.ImportsOnly)
	if err != nil {
		return []violation{{File: normalized, Line: 1, Rule: "file must parse"}}
	}

	var violations []violation
	for _, imp := range file.Imports {
		importPath := strings.Trim(imp.Path.Value, "\"")
		report := func(rule string) {
			violations = append(violations, violation{
				File:   normalized,
				Line:   fset.Position(imp.Pos()).Line,
				Import: importPath,
				Rule:   rule,
			})
		}

		if hasPrefix(importPath, modulePath+"/contexts") && !hasPrefix(importPath, servicePrefix) {
			report("cross-service imports are forbidden")
		}

		rule, ok := layerRules[layer]
		if !ok {
			continue
		}
		if strings.Contains(importPath, "/adapters/") || strings.HasSuffix(importPath, "/adapters") {
			report(layer + " must not import adapters")
		}
		if hasPrefix(importPath, modulePath+"/internal") {
			report(layer + " must not import runtime infrastructure")
		}
		if !isStdlib(importPath) && !isAllowed(importPath, allowedPrefixes(rule, servicePrefix)) {
			report(layer + " import is outside explicit allowlist")
		}
	}
	return violations
}

func allowedPrefixes(rule layerRule, servicePrefix string) []string {
	out := make([]string, 0, len(rule.allowedLayers)+len(rule.allowedShared))
	for _, layer := range rule.allowedLayers {
		out = append(out, servicePrefix+"/"+layer)
	}
	return append(out, rule.allowedShared...)
}

func hasPrefix(path string, prefix string) bool {
	return path == prefix || strings.HasPrefix(path, prefix+"/")
}

func isAllowed(importPath string, allowed []string) bool {
	for _, p := range allowed {
		if hasPrefix(importPath, p) {
			return true
		}
	}
	return false
}

func isStdlib(importPath string) bool {
	if hasPrefix(importPath, modulePath) {
		return false
	}
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}
