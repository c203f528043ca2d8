// Package testutil holds helpers shared by package tests: import boundary
// checks and the fixture trait tree.
package testutil

import (
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"testing"
)

// Rule names a class of imports a package must not take directly.
type Rule struct {
	Name  string
	Match func(importPath string) bool
}

var (
	// Infra keeps concrete blob and ledger backends behind their facades.
	Infra = Rule{Name: "storage backends", Match: InfraImportForbidden}
	// Transport keeps HTTP and CLI concerns out of generation code.
	Transport = Rule{Name: "http and cli", Match: TransportImportForbidden}
	// Drivers keeps database, object-store and cache clients out of
	// generation code.
	Drivers = Rule{Name: "storage drivers", Match: DriverImportForbidden}
)

// Violation is one forbidden import found in a source file.
type Violation struct {
	File   string
	Import string
	Rule   string
}

func (v Violation) String() string {
	return v.Import + " (in " + v.File + ", " + v.Rule + ")"
}

// AssertImports fails t when any non-test source file directly in dir
// imports a path matched by one of rules. Subdirectories are not scanned.
func AssertImports(t testing.TB, dir string, rules ...Rule) {
	t.Helper()
	viols, err := ScanImports(dir, rules...)
	if err != nil {
		t.Fatalf("scan %s: %v", dir, err)
	}
	report(t, dir, viols)
}

// ScanImports returns the violations of rules in dir, ordered by file then import.
func ScanImports(dir string, rules ...Rule) ([]Violation, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	fset := token.NewFileSet()
	var viols []Violation
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		file, err := parser.ParseFile(fset, filepath.Join(dir, name), nil, parser.ImportsOnly)
		if err != nil {
			return nil, err
		}
		for _, imp := range file.Imports {
			ip, err := strconv.Unquote(imp.Path.Value)
			if err != nil {
				return nil, err
			}
			for _, r := range rules {
				if r.Match(ip) {
					viols = append(viols, Violation{File: name, Import: ip, Rule: r.Name})
				}
			}
		}
	}
	sort.Slice(viols, func(i, j int) bool {
		if viols[i].File != viols[j].File {
			return viols[i].File < viols[j].File
		}
		return viols[i].Import < viols[j].Import
	})
	return viols, nil
}

// InfraImportForbidden matches the concrete blob and ledger backends.
func InfraImportForbidden(path string) bool {
	return strings.Contains(path, "/internal/infra/") || strings.HasSuffix(path, "/internal/infra")
}

// TransportImportForbidden matches HTTP and CLI packages.
func TransportImportForbidden(path string) bool {
	switch {
	case path == "net/http", strings.HasPrefix(path, "net/http/"):
		return true
	case strings.HasSuffix(path, "/internal/httpapi"), strings.HasPrefix(path, "github.com/spf13/cobra"):
		return true
	}
	return false
}

var driverPrefixes = []string{
	"database/sql",
	"modernc.org/sqlite",
	"github.com/jackc/pgx",
	"github.com/aws/aws-sdk-go-v2",
	"github.com/redis/go-redis",
}

// DriverImportForbidden matches database, object-store and cache clients.
func DriverImportForbidden(path string) bool {
	for _, p := range driverPrefixes {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

type fatalLogger interface {
	Fatalf(format string, args ...any)
}

func report(t fatalLogger, dir string, viols []Violation) {
	if len(viols) == 0 {
		return
	}
	lines := make([]string, len(viols))
	for i, v := range viols {
		lines[i] = v.String()
	}
	t.Fatalf("forbidden imports in %s:\n%s", dir, strings.Join(lines, "\n"))
}
