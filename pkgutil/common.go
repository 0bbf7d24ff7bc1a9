package pkgutil

import (
	"go/types"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cs-au-dk/symbex/utils"

	"golang.org/x/tools/go/ssa"
)

var opts = utils.Opts()

var goroot sync.Map

// InGoroot is true if the package is part of the standard library.
func InGoroot(pkg *types.Package) bool {
	if pkg == nil {
		return false
	}
	if in, ok := goroot.Load(pkg.Path()); ok {
		return in.(bool)
	}
	fi, err := os.Stat(filepath.Join(runtime.GOROOT(), "src", pkg.Path()))
	in := err == nil && fi.IsDir()
	goroot.Store(pkg.Path(), in)
	return in
}

func isTest(pkg *ssa.Package) bool {
	return strings.HasSuffix(pkg.String(), ".test")
}

// mainPackage picks the non-test main package with the most members.
func mainPackage(mains []*ssa.Package) (main *ssa.Package) {
	for _, mp := range mains {
		if isTest(mp) {
			continue
		}
		if main == nil || len(main.Members) < len(mp.Members) {
			main = mp
		}
	}
	return
}

// AllPackages lists the packages of prog by path. Test variants are
// dropped, and of two packages with the same path the larger one is kept.
func AllPackages(prog *ssa.Program) []*ssa.Package {
	byPath := make(map[string]*ssa.Package)
	for _, pkg := range prog.AllPackages() {
		if isTest(pkg) {
			continue
		}
		if other, ok := byPath[pkg.String()]; !ok || len(pkg.Members) > len(other.Members) {
			byPath[pkg.String()] = pkg
		}
	}

	res := make([]*ssa.Package, 0, len(byPath))
	for _, pkg := range byPath {
		res = append(res, pkg)
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].String() < res[j].String()
	})
	return res
}
