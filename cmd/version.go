package cmd

import (
	"fmt"
	"runtime"
)

// Version is the application version (injected at build time via ldflags).
var Version = "development"

// runVersion displays version information.
func runVersion() {
	fmt.Printf("neuassist %s (%s, %s/%s)\n", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
