//go:build mage
// +build mage

package main

import (
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

var Default = Build

func Build() error {
	return sh.Run(mg.GoCmd(), "build", "./...")
}

func Test() error {
	args := []string{"test"}
	if mg.Verbose() {
		args = append(args, "-v")
	}
	args = append(args, "./...")
	return sh.Run(mg.GoCmd(), args...)
}

func Vet() error {
	return sh.Run(mg.GoCmd(), "vet", "./...")
}

// PGTest runs the tests including the Postgres history store,
// which needs MIRROR_PG_TESTING_CONN.
func PGTest() error {
	if os.Getenv("MIRROR_PG_TESTING_CONN") == "" {
		return mg.Fatal(1, "set MIRROR_PG_TESTING_CONN to a Postgresql connection string")
	}
	return sh.RunV(mg.GoCmd(), "test", "./history/pg/...")
}
