package pkgutil

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/tools/go/ssa"
)

func pkgQualifiedPath(pkg *ssa.Package) []string {
	path := strings.Split(strings.TrimSuffix(pkg.Pkg.Path(), ".test"), "/")

	if path[0] == "vendor" {
		path = path[1:]
	}

	return path
}

// LocalPackages selects the packages that share the first three path
// elements of the main package, sorted by path. Packages declared in
// GOROOT are never local.
func LocalPackages(mains []*ssa.Package, pkgs []*ssa.Package) ([]*ssa.Package, error) {
	if len(mains) == 0 {
		return nil, errors.New("gather local packages error: no main packages found")
	}

	mp := mainPackage(mains)
	if mp == nil {
		// If there is no non-test main package, just pick one of the test
		// packages.
		mp = mains[0]
	}

	mainpath := pkgQualifiedPath(mp)

	var local []*ssa.Package
	for _, p := range pkgs {
		if p == nil || InGoroot(p.Pkg) {
			continue
		}
		pkgpath := pkgQualifiedPath(p)
		isLocal := true
		for i := 0; isLocal && i < 3 && i < len(mainpath) && i < len(pkgpath); i++ {
			isLocal = isLocal && mainpath[i] == pkgpath[i]
		}
		if isLocal {
			local = append(local, p)
		}
	}
	sort.Slice(local, func(i, j int) bool {
		return local[i].Pkg.Path() < local[j].Pkg.Path()
	})

	opts.OnVerbose(func() {
		fmt.Println("Main packages:")
		for _, p := range mains {
			fmt.Println(p.Pkg.Path())
		}

		fmt.Println("Local packages:")
		for _, p := range local {
			fmt.Println(p.Pkg.Path())
		}
	})

	return local, nil
}
