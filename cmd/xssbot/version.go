package main

import (
	"fmt"
	"runtime/debug"
	"sync"

	"github.com/spf13/cobra"
)

// Set with -ldflags "-X main.version=... -X main.commit=... -X main.date=...".
var (
	version = ""
	commit  = ""
	date    = ""
)

// buildInfo identifies the running binary.
type buildInfo struct {
	Version string
	Commit  string
	Date    string
}

// currentBuild prefers ldflags values and falls back to what the go
// toolchain recorded in the binary.
var currentBuild = sync.OnceValue(func() buildInfo {
	b := buildInfo{Version: "(devel)", Commit: "unknown", Date: "unknown"}
	if info, ok := debug.ReadBuildInfo(); ok {
		if info.Main.Version != "" {
			b.Version = info.Main.Version
		}
		for _, s := range info.Settings {
			switch {
			case s.Value == "":
			case s.Key == "vcs.revision":
				b.Commit = s.Value[:min(len(s.Value), 7)]
			case s.Key == "vcs.time":
				b.Date = s.Value
			}
		}
	}
	if version != "" {
		b.Version = version
	}
	if commit != "" {
		b.Commit = commit
	}
	if date != "" {
		b.Date = date
	}
	return b
})

func getVersion() string { return currentBuild().Version }

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the version, commit hash, and build date of xssbot.`,
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			b := currentBuild()
			fmt.Fprintf(cmd.OutOrStdout(), "xssbot version %s\n  commit: %s\n  built:  %s\n", b.Version, b.Commit, b.Date)
		},
	}
}
