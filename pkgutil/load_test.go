package pkgutil

import (
	"errors"
	"testing"
)

func TestLoadWithModule(t *testing.T) {
	pkgs, err := LoadPackages(LoadConfig{
		GoPath:     "../examples",
		ModulePath: "../examples/src/pkg-with-module",
	}, "unrelated-name/...")
	if err != nil {
		t.Fatal(err)
	}
	if len(pkgs) != 2 {
		t.Fatalf("Expected load result to contain 2 packages, got: %v", pkgs)
	}
	if pkgs[0].PkgPath != "unrelated-name" || pkgs[1].PkgPath != "unrelated-name/sub" {
		t.Errorf("Expected packages in path order, got: %v", pkgs)
	}
}

func TestLoadFromGoPath(t *testing.T) {
	if pkgs, err := LoadPackages(LoadConfig{GoPath: "../examples"}, "resources/..."); err != nil {
		t.Fatal(err)
	} else if len(pkgs) != 1 {
		t.Errorf("Expected load result to contain 1 package, got: %v", pkgs)
	}
}

func TestModuleName(t *testing.T) {
	name, err := ModuleName("../examples/src/pkg-with-module")
	if err != nil {
		t.Fatal(err)
	}
	if name != "unrelated-name" {
		t.Errorf("Expected unrelated-name, got %q", name)
	}

	if _, err := ModuleName("../examples/src/resources"); err == nil {
		t.Error("Expected an error for a directory without go.mod")
	}
}

func TestLoadTypeErrors(t *testing.T) {
	_, err := LoadPackagesFromSource(`package main

func main() {
	var x int = "not an int"
	_ = x
}
`)
	var lerr *LoadError
	if !errors.As(err, &lerr) || !errors.Is(err, ErrLoad) {
		t.Fatalf("Expected a LoadError, got %v", err)
	}
	if len(lerr.Errors) == 0 {
		t.Error("Expected the type error to be listed")
	}
}
