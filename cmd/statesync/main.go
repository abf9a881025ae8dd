package main

import (
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/vango-dev/statesync/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌─┐┌┬┐┌─┐┌┬┐┌─┐┌─┐┬ ┬┌┐┌┌─┐
  └─┐ │ ├─┤ │ ├┤ └─┐└┬┘││││
  └─┘ ┴ ┴ ┴ ┴ └─┘└─┘ ┴ ┘└┘└─┘
`

// globalFlags are shared by every command.
type globalFlags struct {
	configPath string
	envFiles   []string
	jsonErrors bool
}

func main() {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "statesync",
		Short: "Keep page state, URL and storage in sync",
		Long: `statesync keeps an application state object, the page URL query
string and a persistent store consistent with one another.

It hosts state consumers for browser pages over a websocket and
offers offline tools for the URL encoding:

  • serve   run the sync host
  • encode  state JSON to query parameters
  • decode  query parameters to state JSON
  • share   build a shareable URL`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "Path to statesync.json (default: search upward from the working directory)")
	rootCmd.PersistentFlags().StringSliceVar(&flags.envFiles, "env-file", nil, "Environment files to load (default: .env)")
	rootCmd.PersistentFlags().BoolVar(&flags.jsonErrors, "json-errors", false, "Print errors as JSON on stderr")

	rootCmd.AddCommand(
		serveCmd(flags),
		encodeCmd(flags),
		decodeCmd(flags),
		shareCmd(flags),
		versionCmd(),
	)

	errors.SetColor(colorSupported(os.Stderr, os.LookupEnv))

	if err := rootCmd.Execute(); err != nil {
		reportError(os.Stderr, err, flags.jsonErrors)
		os.Exit(1)
	}
}

// reportError prints err, giving errors without a code the generic
// command failure code.
func reportError(w io.Writer, err error, asJSON bool) {
	se := errors.FromError(err, "S201")
	if asJSON {
		fmt.Fprintln(w, se.FormatJSON())
		return
	}
	errors.PrintError(w, se)
}

// colorSupported reports whether f is a terminal and NO_COLOR is unset.
func colorSupported(f *os.File, lookup func(string) (string, bool)) bool {
	if _, set := lookup("NO_COLOR"); set {
		return false
	}
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// printBanner prints the ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

// warn prints a warning message to stderr.
func warn(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "\033[33m⚠\033[0m %s\n", fmt.Sprintf(format, args...))
}
