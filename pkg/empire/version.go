package empire

import (
	"fmt"
	"runtime"
	"strings"
)

// Version is the release of the binary and of the /goals HTTP contract.
const Version = "0.1.0"

// Commit and BuildDate are stamped at link time:
//
//	go build -ldflags "-X github.com/eleven-am/empire/pkg/empire.Commit=$(git rev-parse --short HEAD)"
var (
	Commit    string
	BuildDate string
)

// Build describes the running binary.
type Build struct {
	Version   string
	Commit    string
	BuildDate string
	GoVersion string
}

// Info returns the build of the running binary.
func Info() Build {
	return Build{
		Version:   Version,
		Commit:    Commit,
		BuildDate: BuildDate,
		GoVersion: runtime.Version(),
	}
}

// Short is the one-line form used in logs.
func (b Build) Short() string {
	if b.Commit == "" {
		return "empire " + b.Version
	}
	return fmt.Sprintf("empire %s (%s)", b.Version, b.Commit)
}

// String is the multi-line form printed by `empire version`. Unknown fields
// are omitted.
func (b Build) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Empire %s\n", b.Version)
	fmt.Fprintf(&sb, "Go Version: %s\n", b.GoVersion)
	if b.Commit != "" {
		fmt.Fprintf(&sb, "Git Commit: %s\n", b.Commit)
	}
	if b.BuildDate != "" {
		fmt.Fprintf(&sb, "Build Date: %s\n", b.BuildDate)
	}
	return sb.String()
}
