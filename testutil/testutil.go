package testutil

import (
	"bytes"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/cs-au-dk/symbex/analysis/cfg"
	"github.com/cs-au-dk/symbex/analysis/frontend"
	"github.com/cs-au-dk/symbex/pkgutil"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// LoadResult contains relevant information obtained after loading a Go program.
type LoadResult struct {
	// MainPkg is the package focused by the analysis.
	MainPkg *packages.Package
	// Prog is the SSA representation of the entire program.
	Prog *ssa.Program
	// Pkgs are the SSA packages of the loaded packages, excluding dependencies.
	Pkgs []*ssa.Package
	// Cfg is the lowered program handed to the engine.
	Cfg *cfg.Program
}

// Method retrieves a lowered function by (a suffix of) its name.
func (res LoadResult) Method(t *testing.T, name string) *cfg.Method {
	t.Helper()
	m, ok := res.Cfg.MethodByName(name)
	if !ok {
		t.Fatalf("no function named %s", name)
	}
	return m
}

// LoadExampleAsPackages loads an example package to be used for a test.
func LoadExampleAsPackages(t *testing.T, pathToRoot string, pkg string) []*packages.Package {
	// Invoking the package tools is slow because it uses `go list` under the hood.
	// If the package doesn't have imports we can take a fast path by loading the
	// code manually and parsing it ourselves.
	srcDir := pathToRoot + "/examples/src/" + pkg
	if entries, err := os.ReadDir(srcDir); err == nil {
		if len(entries) == 1 {
			entry := entries[0]
			if !entry.IsDir() && entry.Name() == "main.go" {
				if content, err := os.ReadFile(srcDir + "/main.go"); err == nil &&
					// Assert no imports
					!bytes.Contains(content, []byte("import")) {
					return LoadSourceAsPackages(t, pkg, string(content))
				}
			}
		}
	}

	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{GoPath: pathToRoot + "/examples"}, pkg)
	if err != nil {
		t.Fatal(err)
	}

	if len(pkgs) != 1 {
		t.Fatal("Example contains more than just a main package?")
	}
	return pkgs
}

func LoadExamplePackage(t *testing.T, pathToRoot string, pkg string) LoadResult {
	return LoadResultFromPackages(t, LoadExampleAsPackages(t, pathToRoot, pkg))
}

func LoadResultFromPackages(t *testing.T, pkgs []*packages.Package) (res LoadResult) {
	res.MainPkg = pkgs[0]

	var spkgs []*ssa.Package
	res.Prog, spkgs = ssautil.AllPackages(pkgs, ssa.SanityCheckFunctions|ssa.InstantiateGenerics)
	res.Prog.Build()

	for _, pkg := range spkgs {
		if pkg != nil {
			res.Pkgs = append(res.Pkgs, pkg)
		}
	}

	var err error
	if res.Cfg, err = frontend.FromSSA(res.Prog, res.Pkgs); err != nil {
		t.Fatal(err)
	}
	if err := cfg.Validate(res.Cfg); err != nil {
		t.Fatal(err)
	}
	return
}

func LoadSourceAsPackages(t *testing.T, importPath string, content string) []*packages.Package {
	fset := token.NewFileSet()
	file, err := parser.ParseFile(
		fset,
		"main.go",
		content,
		parser.ParseComments)
	if err != nil {
		t.Fatal(err)
	}

	files := []*ast.File{file}

	// First argument is package path, the second is name.
	pkg := types.NewPackage(importPath, file.Name.Name)
	info := &types.Info{
		Types:      make(map[ast.Expr]types.TypeAndValue),
		Defs:       make(map[*ast.Ident]types.Object),
		Uses:       make(map[*ast.Ident]types.Object),
		Implicits:  make(map[ast.Node]types.Object),
		Instances:  make(map[*ast.Ident]types.Instance),
		Scopes:     make(map[ast.Node]*types.Scope),
		Selections: make(map[*ast.SelectorExpr]*types.Selection),
	}
	if err := types.NewChecker(
		&types.Config{Importer: importer.Default()},
		fset, pkg, info).Files(files); err != nil {
		t.Fatal(err)
	}

	// If the package does not have imports we can take a fast path.
	if len(pkg.Imports()) == 0 {
		return []*packages.Package{{
			ID:        "pkg-loaded-from-src",
			Name:      pkg.Name(),
			PkgPath:   pkg.Path(),
			Types:     pkg,
			Fset:      fset,
			Syntax:    files,
			TypesInfo: info,
		}}
	}

	// Otherwise we need to invoke the packages tool that can import code for
	// dependencies. The reason to not just do this for all packages is that
	// it's a lot slower than the above because it needs to invoke the go tool
	// in a subprocess.
	pkgs, err := pkgutil.LoadPackagesFromSource(content)
	if err != nil {
		t.Fatal(err)
	}
	return pkgs
}

func LoadPackageFromSource(t *testing.T, importPath string, content string) LoadResult {
	return LoadResultFromPackages(t, LoadSourceAsPackages(t, importPath, content))
}

// ListExamples lists the example packages under examples/src that carry
// finding annotations.
func ListExamples(t *testing.T, pathToRoot string) []string {
	root := filepath.Join(pathToRoot, "examples", "src")

	seen := map[string]bool{}
	err := filepath.Walk(root, func(path string, info os.FileInfo, e error) error {
		if e != nil {
			return e
		}

		if info.Mode().IsRegular() && strings.HasSuffix(path, ".go") {
			content, err := os.ReadFile(path)
			if err != nil {
				return err
			}

			if bytes.Contains(content, []byte("//@ ")) {
				rel, err := filepath.Rel(root, filepath.Dir(path))
				if err != nil {
					return err
				}
				seen[filepath.ToSlash(rel)] = true
			}
		}

		return nil
	})
	if err != nil {
		t.Fatal(err)
	}

	res := make([]string, 0, len(seen))
	for pkg := range seen {
		res = append(res, pkg)
	}
	sort.Strings(res)
	return res
}
