package main

import (
	"encoding/json"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/spf13/cobra"
)

// buildInfo is what `statesync version --json` prints.
type buildInfo struct {
	Version   string            `json:"version"`
	Commit    string            `json:"commit"`
	Date      string            `json:"date"`
	GoVersion string            `json:"goVersion"`
	Platform  string            `json:"platform"`
	Backends  []string          `json:"backends"`
	Deps      map[string]string `json:"deps,omitempty"`
}

func currentBuildInfo(withDeps bool) buildInfo {
	bi := buildInfo{
		Version:   version,
		Commit:    commit,
		Date:      date,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
		Backends:  []string{"memory", "file", "sql", "s3"},
	}
	if info, ok := debug.ReadBuildInfo(); ok && withDeps {
		bi.Deps = make(map[string]string, len(info.Deps))
		for _, d := range info.Deps {
			bi.Deps[d.Path] = d.Version
		}
	}
	return bi
}

func versionCmd() *cobra.Command {
	var (
		short  bool
		asJSON bool
		deps   bool
	)

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long:  `Print the statesync version, build details and the store backends compiled in.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if short {
				fmt.Fprintln(out, version)
				return nil
			}

			bi := currentBuildInfo(deps)
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(bi)
			}

			fmt.Fprint(out, banner)
			fmt.Fprintf(out, "\n  %-10s %s (%s, %s)\n", "statesync", bi.Version, bi.Commit, bi.Date)
			fmt.Fprintf(out, "  %-10s %s %s\n", "go", bi.GoVersion, bi.Platform)
			fmt.Fprintf(out, "  %-10s %v\n", "backends", bi.Backends)
			for path, v := range bi.Deps {
				fmt.Fprintf(out, "  %-10s %s %s\n", "dep", path, v)
			}
			fmt.Fprintln(out)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&short, "short", "s", false, "Print only the version number")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print build information as JSON")
	cmd.Flags().BoolVar(&deps, "deps", false, "Include module dependencies")

	return cmd
}
