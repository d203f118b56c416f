//nolint:gochecknoinits,dogsled
package test

import (
	"os"
	"path/filepath"
	"runtime"
)

// ProjectRoot returns the absolute path of the module root.
func ProjectRoot() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..")
}

// ConfigTestRootPath moves the working directory of a test binary, which starts in the
// package folder, to the module root so resources like configs/ and init scripts resolve
// the same way from every package.
func ConfigTestRootPath() string {
	root := ProjectRoot()
	if err := os.Chdir(root); err != nil {
		panic(err)
	}

	return root
}
