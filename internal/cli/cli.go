// Package cli parses command-line arguments into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/vk/shipgrid/internal/app"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config, a
// boolean indicating the program should exit cleanly (help requested), or
// an ExitError for usage mistakes.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	flagSet := flag.NewFlagSet("shipgrid", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
shipgrid - dependency-ordered, multi-channel release publication.

Usage:
  shipgrid [options] [MANIFEST_PATH]

Arguments:
  MANIFEST_PATH
    Path to a release manifest .hcl file or a directory containing them.

Options:
`)
		flagSet.PrintDefaults()
	}

	manifestFlag := flagSet.String("manifest", "", "Path to the release manifest file or directory.")
	mFlag := flagSet.String("m", "", "Path to the release manifest (shorthand).")
	tagFlag := flagSet.String("tag", "", "Release tag from the triggering release event.")
	commitFlag := flagSet.String("commit", "", "Source commit from the triggering release event.")
	releaseAPIFlag := flagSet.String("release-api", "", "Release API root for asset upload. Empty disables upload.")
	workDirFlag := flagSet.String("work-dir", ".", "Source tree root the toolchains run in.")
	dryRunFlag := flagSet.Bool("dry-run", false, "Print the publication plan without side effects.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	var channelFlags []string
	flagSet.Func("channel", "Run only this channel (repeatable), e.g. for re-running a failed one.", func(v string) error {
		channelFlags = append(channelFlags, v)
		return nil
	})

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	path := ""
	if *manifestFlag != "" {
		path = *manifestFlag
	} else if *mFlag != "" {
		path = *mFlag
	} else if flagSet.NArg() > 0 {
		path = flagSet.Arg(0)
	}

	if path == "" {
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	config, err := app.NewConfig(app.Config{
		ManifestPath: path,
		Tag:          *tagFlag,
		Commit:       *commitFlag,
		Channels:     channelFlags,
		ReleaseAPI:   *releaseAPIFlag,
		WorkDir:      *workDirFlag,
		DryRun:       *dryRunFlag,
		LogFormat:    logFormat,
		LogLevel:     logLevel,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	return config, false, nil
}
