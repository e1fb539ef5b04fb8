// Package version describes the movetrace binary: its release, the VCS
// revision it was built from and the trace formats it reads.
package version

import (
	"bytes"
	"fmt"
	"runtime"
	"runtime/debug"
	"text/tabwriter"
)

// Version is a movetrace release.
type Version struct {
	Major, Minor, Patch int
	Metadata            string
}

// Movetrace is the current release.
var Movetrace = Version{Major: 0, Minor: 3, Patch: 0}

func (v Version) String() string {
	s := fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		s += "-" + v.Metadata
	}
	return s
}

// Build describes how the running binary was built.
type Build struct {
	GoVersion string
	Revision  string
	Time      string
	Modified  bool
	Deps      []*debug.Module
}

// ReadBuild returns the build description of the running binary. Fields
// the toolchain did not record are left empty.
func ReadBuild() Build {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return Build{GoVersion: runtime.Version()}
	}
	return buildFrom(info)
}

func buildFrom(info *debug.BuildInfo) Build {
	b := Build{GoVersion: info.GoVersion, Deps: info.Deps}
	if b.GoVersion == "" {
		b.GoVersion = runtime.Version()
	}
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			b.Revision = s.Value
		case "vcs.time":
			b.Time = s.Value
		case "vcs.modified":
			b.Modified = s.Value == "true"
		}
	}
	return b
}

func (b Build) String() string {
	if b.Revision == "" {
		return "unknown"
	}
	s := b.Revision
	if b.Time != "" {
		s += " " + b.Time
	}
	if b.Modified {
		s += " (modified)"
	}
	return s
}

// Summary returns the text printed by the version command. maxTraceFormat
// is the newest trace format version the reader understands; verbose adds
// the Go version and the module dependencies of the binary.
func Summary(b Build, maxTraceFormat int, verbose bool) string {
	buf := new(bytes.Buffer)
	w := tabwriter.NewWriter(buf, 0, 8, 1, ' ', 0)
	fmt.Fprintf(w, "Movetrace\t%s\n", Movetrace)
	fmt.Fprintf(w, "Build\t%s\n", b)
	fmt.Fprintf(w, "Trace formats\t1-%d\n", maxTraceFormat)
	if verbose {
		fmt.Fprintf(w, "Go\t%s\n", b.GoVersion)
		for _, dep := range b.Deps {
			if dep.Replace != nil {
				dep = dep.Replace
			}
			fmt.Fprintf(w, "dep\t%s %s\n", dep.Path, dep.Version)
		}
	}
	w.Flush()
	return buf.String()
}
