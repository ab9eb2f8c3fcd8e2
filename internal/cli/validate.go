package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mastodon/mastodon-ios-sub005/internal/config"
)

// ValidationResult is the JSON payload of a successful validate.
type ValidationResult struct {
	Valid bool       `json:"valid"`
	Feeds []FeedInfo `json:"feeds"`
}

// FeedInfo summarizes one compiled feed definition.
type FeedInfo struct {
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	Domain   string `json:"domain"`
	Refresh  string `json:"refresh"`
	PageSize int    `json:"page_size"`
}

// ValidationIssue locates a rejected definition.
type ValidationIssue struct {
	Field  string `json:"field"`
	File   string `json:"file,omitempty"`
	Line   int    `json:"line,omitempty"`
	Column int    `json:"column,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <feeds.cue>",
		Short: "Validate feed definitions",
		Long: `Compile a CUE feed definition file against the feed schema.

Checks field types, gateway kinds, page sizes and refresh schedules
without contacting any remote.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	formatter := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())

	defs, err := config.LoadFeeds(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	result := ValidationResult{Valid: true, Feeds: make([]FeedInfo, len(defs))}
	for i, d := range defs {
		formatter.VerboseLog("feed %s: %s %s every %q", d.Name, d.Kind, d.Domain, d.Refresh)
		result.Feeds[i] = FeedInfo{
			Name:     d.Name,
			Kind:     d.Kind,
			Domain:   d.Domain,
			Refresh:  d.Refresh,
			PageSize: d.PageSize,
		}
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	return formatter.Success(fmt.Sprintf("✓ %d feed(s) valid", len(defs)))
}

// reportLoadError prints a feed definition error and maps it to exit code 1.
func reportLoadError(formatter *OutputFormatter, err error) error {
	var le *config.LoadError
	if !errors.As(err, &le) {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitFailure, "feed definitions invalid", err)
	}

	issue := ValidationIssue{Field: le.Field}
	if le.Pos.IsValid() {
		issue.File, issue.Line, issue.Column = le.Pos.Filename(), le.Pos.Line(), le.Pos.Column()
	}
	code := ErrCodeInvalidFeed
	if le.Field == "file" {
		code = ErrCodeNotFound
	}
	_ = formatter.Error(code, le.Error(), issue)
	if code == ErrCodeNotFound {
		return WrapExitError(ExitCommandError, "feed definitions not readable", err)
	}
	return WrapExitError(ExitFailure, "feed definitions invalid", err)
}
