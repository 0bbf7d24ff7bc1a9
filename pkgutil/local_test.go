package pkgutil_test

import (
	"testing"

	"github.com/cs-au-dk/symbex/pkgutil"

	"golang.org/x/tools/go/ssa/ssautil"
)

func TestLocalPackages(t *testing.T) {
	pkgs, err := pkgutil.LoadPackages(pkgutil.LoadConfig{
		GoPath:     "../examples",
		ModulePath: "../examples/src/pkg-with-module",
	}, "unrelated-name/...")
	if err != nil {
		t.Fatal(err)
	}

	prog, _ := ssautil.AllPackages(pkgs, 0)
	prog.Build()

	mains := ssautil.MainPackages(prog.AllPackages())
	local, err := pkgutil.LocalPackages(mains, pkgutil.AllPackages(prog))
	if err != nil {
		t.Fatal(err)
	}

	var paths []string
	for _, pkg := range local {
		paths = append(paths, pkg.Pkg.Path())
	}
	if len(paths) != 2 || paths[0] != "unrelated-name" || paths[1] != "unrelated-name/sub" {
		t.Errorf("Expected the module packages only, got %v", paths)
	}
}

func TestLocalPackagesWithoutMain(t *testing.T) {
	if _, err := pkgutil.LocalPackages(nil, nil); err == nil {
		t.Error("Expected an error without main packages")
	}
}
