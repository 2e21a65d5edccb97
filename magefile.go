//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default target to run when none is specified.
var Default = Build

const binary = "bin/pyext"

// Build compiles the pyext command.
func Build() error {
	mg.Deps(Vet)
	if mg.Verbose() {
		fmt.Println("building", binary)
	}
	return sh.RunV("go", "build", "-o", binary, "./cmd/pyext")
}

// Vet runs go vet over the module.
func Vet() error {
	return sh.Run("go", "vet", "./...")
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Check runs the casacore preflight against the project in PYEXT_PROJECT.
func Check() error {
	mg.Deps(Build)
	project := os.Getenv("PYEXT_PROJECT")
	if project == "" {
		return mg.Fatal(2, "PYEXT_PROJECT is not set")
	}
	return sh.RunV(binary, "check", "--project", project)
}

// Clean removes the built command.
func Clean() error {
	return sh.Rm("bin")
}
