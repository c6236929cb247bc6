package main

import (
	"runtime/debug"

	"github.com/podaac/ami-refresh/cli/cmd"
)

// set with -ldflags "-X main.version=..." by the release build
var (
	version = ""
	commit  = "none"
	date    = "unknown"
	builtBy = "unknown"
)

func main() {
	info := cmd.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
		BuiltBy: builtBy,
	}

	// go install builds carry the module version instead of ldflags
	if info.Version == "" {
		info.Version = "dev"
		if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
			info.Version = bi.Main.Version
		}
	}

	cmd.Execute(info)
}
