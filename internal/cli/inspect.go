package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mastodon/mastodon-ios-sub005/internal/feed"
	"github.com/mastodon/mastodon-ios-sub005/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	DB     string
	Domain string
	Limit  int
}

// InspectedItem is the JSON form of one stored item.
type InspectedItem struct {
	ID          string    `json:"id"`
	Kind        string    `json:"kind"`
	CreatedAt   time.Time `json:"created_at"`
	LastUpdated time.Time `json:"last_updated"`
	Refs        []string  `json:"refs,omitempty"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect",
		Short: "List stored items of a domain",
		Long: `List the items the entity store holds for a domain, newest first.

Examples:
  feedsync inspect --domain example.social
  feedsync inspect --db ./feeds.db --domain blog.example.org --limit 5 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.DB, "db", "", "database path (default $FEEDSYNC_DB or feedsync.db)")
	cmd.Flags().StringVar(&opts.Domain, "domain", "", "domain to list")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of items")
	_ = cmd.MarkFlagRequired("domain")

	return cmd
}

func runInspect(ctx context.Context, opts *InspectOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	path := opts.dbPath(opts.DB)
	if _, err := os.Stat(path); err != nil {
		_ = formatter.Error(ErrCodeNotFound, fmt.Sprintf("database not found: %s", path), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	if opts.Limit <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--limit must be positive, got %d", opts.Limit))
	}

	st, err := store.Open(path)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to open store", err)
	}
	defer st.Close()

	items, err := st.List(ctx, opts.Domain, opts.Limit)
	if err != nil {
		_ = formatter.Error(ErrCodeStoreFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "failed to list items", err)
	}

	if opts.Format == "json" {
		out := make([]InspectedItem, len(items))
		for i, it := range items {
			out[i] = inspected(it)
		}
		return formatter.Success(out)
	}

	w := cmd.OutOrStdout()
	if len(items) == 0 {
		fmt.Fprintf(w, "No items stored for %s.\n", opts.Domain)
		return nil
	}
	for _, it := range items {
		fmt.Fprintf(w, "%s  %-6s  %s\n", it.CreatedAt.UTC().Format(time.RFC3339), it.Kind, it.ID)
	}
	return nil
}

func inspected(it feed.FeedItem) InspectedItem {
	out := InspectedItem{
		ID:          it.ID,
		Kind:        string(it.Kind),
		CreatedAt:   it.CreatedAt.UTC(),
		LastUpdated: it.LastUpdated.UTC(),
	}
	for _, r := range it.Refs {
		out.Refs = append(out.Refs, r.String())
	}
	return out
}
