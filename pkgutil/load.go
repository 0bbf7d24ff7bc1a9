package pkgutil

import (
	"errors"
	"fmt"
	"go/ast"
	"go/parser"
	"go/token"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/tools/go/packages"
)

// LoadConfig selects between module-aware loading, when ModulePath is
// set, and GOPATH loading rooted at GoPath. IncludeTests also loads the
// test variants of the packages.
type LoadConfig struct {
	GoPath, ModulePath string
	IncludeTests       bool
}

// ErrLoad is wrapped by the errors of packages that failed to type check.
var ErrLoad = errors.New("errors encountered while loading packages")

// LoadError lists the errors reported by the loaded packages, in package
// order.
type LoadError struct {
	Errors []packages.Error
}

func (e *LoadError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%v:\n%s", ErrLoad, strings.Join(msgs, "\n"))
}

func (e *LoadError) Unwrap() error {
	return ErrLoad
}

const loadMode = packages.NeedName | packages.NeedFiles | packages.NeedCompiledGoFiles |
	packages.NeedImports | packages.NeedTypes | packages.NeedTypesSizes | packages.NeedSyntax |
	packages.NeedTypesInfo | packages.NeedDeps

var (
	moduleRegex = regexp.MustCompile(`(?m)^module\s+(\S+)`)

	cwd = func() string {
		dir, err := os.Getwd()
		if err != nil {
			panic(err)
		}
		return dir
	}()
)

// relativizingParseFile parses files under names relative to the working
// directory, so reported positions do not depend on where the sources
// are checked out.
func relativizingParseFile(fset *token.FileSet, filename string, src []byte) (*ast.File, error) {
	if rel, err := filepath.Rel(cwd, filename); err == nil {
		filename = rel
	}
	return parser.ParseFile(fset, filename, src, parser.AllErrors|parser.ParseComments)
}

// ModuleName reads the module path declared by the go.mod file in dir.
func ModuleName(dir string) (string, error) {
	contents, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err != nil {
		return "", fmt.Errorf("no go.mod in %s: %w", dir, err)
	}
	m := moduleRegex.FindSubmatch(contents)
	if m == nil {
		return "", fmt.Errorf("no module directive in %s", filepath.Join(dir, "go.mod"))
	}
	return string(m[1]), nil
}

// LoadPackages loads the packages matching query, with syntax and types,
// according to cfg.
func LoadPackages(cfg LoadConfig, query string) ([]*packages.Package, error) {
	gopath, err := filepath.Abs(cfg.GoPath)
	if err != nil {
		return nil, err
	}

	config := &packages.Config{
		Mode:      loadMode,
		Tests:     cfg.IncludeTests,
		ParseFile: relativizingParseFile,
		Env:       append(os.Environ(), "GOPATH="+gopath, "GO111MODULE=off"),
	}

	if cfg.ModulePath != "" {
		dir, err := filepath.Abs(cfg.ModulePath)
		if err != nil {
			return nil, err
		}
		if _, err := ModuleName(dir); err != nil {
			return nil, err
		}
		config.Dir = dir
		config.Env = append(os.Environ(), "GOPATH="+gopath, "GO111MODULE=on")
	}

	return load(config, query)
}

// LoadPackagesFromSource loads a single file held in memory as a package
// of its own.
func LoadPackagesFromSource(source string) ([]*packages.Package, error) {
	const file = "/fake/testpackage/main.go"
	return load(&packages.Config{
		Mode:    loadMode,
		Env:     append(os.Environ(), "GO111MODULE=off", "GOPATH=/fake"),
		Overlay: map[string][]byte{file: []byte(source)},
	}, file)
}

func load(config *packages.Config, query string) ([]*packages.Package, error) {
	pkgs, err := packages.Load(config, query)
	if err != nil {
		return nil, err
	}

	var errs []packages.Error
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		errs = append(errs, pkg.Errors...)
	})
	if len(errs) > 0 {
		return nil, &LoadError{Errors: errs}
	}

	if config.Tests {
		pkgs = dropShadowedTests(pkgs)
	}
	sort.Slice(pkgs, func(i, j int) bool {
		return pkgs[i].ID < pkgs[j].ID
	})
	return pkgs, nil
}

// dropShadowedTests discards the plain variant of packages that were also
// loaded with their tests, so no function is lowered twice.
func dropShadowedTests(pkgs []*packages.Package) []*packages.Package {
	ids := make(map[string]bool, len(pkgs))
	for _, pkg := range pkgs {
		ids[pkg.ID] = true
	}

	res := pkgs[:0]
	for _, pkg := range pkgs {
		if !ids[fmt.Sprintf("%s [%s.test]", pkg.ID, pkg.ID)] {
			res = append(res, pkg)
		}
	}
	return res
}
