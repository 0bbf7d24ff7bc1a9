package utils

import (
	"flag"
)

// MakePath returns the package pattern to analyze.
// The first non-flag argument is the target package. If none is given,
// every package below the current directory is analyzed.
func MakePath() string {
	if args := flag.Args(); len(args) >= 1 {
		return args[0]
	}
	return "./..."
}
