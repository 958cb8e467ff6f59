package virusbegone

import (
	"os"
	"path/filepath"
	"strings"
)

const dot string = "."
const dirSeparator = string(filepath.Separator)
const dotDirSeparator = dot + dirSeparator
const doubleDot = dot + dot
const doubleDotDirSeparator = doubleDot + dirSeparator

func isChildOf(child string, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false //different volumes
	}
	return !(rel == dot || rel == doubleDot || strings.HasPrefix(rel, doubleDotDirSeparator))
}

// pleasantPath turns an absolute path into something easily understandable from the current context.
// Paths below the working directory are emitted relative, with leading "./" to stress relativity (opt-out possible).
// Everything else is reflected unchanged.
func pleasantPath(absolute string, wd string, omitDotSlash bool) string {
	if !isChildOf(absolute, wd) {
		return absolute
	}
	relative, _ := filepath.Rel(wd, absolute) //error impossible because absolute is inside wd
	if omitDotSlash {
		return relative
	}
	return dotDirSeparator + relative
}

func mustGetwd() string {
	wd, err := os.Getwd()
	if err != nil {
		panic(err)
	}
	return wd
}

// mustAbsFilepath calls filepath.Abs and asserts that it is successful
func mustAbsFilepath(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		panic(err)
	}
	return abs
}
