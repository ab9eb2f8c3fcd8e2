// Command feedsync mirrors remote feeds into a local SQLite store.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mastodon/mastodon-ios-sub005/internal/cli"
)

func main() {
	cmd := cli.NewRootCommand()
	if err := cmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "feedsync:", err)
		os.Exit(cli.GetExitCode(err))
	}
}
