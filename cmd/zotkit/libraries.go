package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/zotkit/zotkit/pkg/config"
	"github.com/zotkit/zotkit/pkg/localdb"
)

var librariesCmd = &cobra.Command{
	Use:   "libraries",
	Short: "List the libraries of the local Zotero installation",
	Long:  `Reads zotero.sqlite directly (read-only) and lists every library with its type and item count. Requires a local Zotero data directory.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env := config.Read()

		reader, err := localdb.Open(env.DatabasePath())
		if err != nil {
			return err
		}
		defer reader.Close()

		libs, err := reader.Libraries(context.Background())
		if err != nil {
			return err
		}
		if len(libs) == 0 {
			fmt.Println("No libraries found.")
			return nil
		}

		for _, lib := range libs {
			id := strconv.FormatInt(lib.LibraryID, 10)
			if lib.Type == "group" {
				id = strconv.FormatInt(lib.GroupID, 10)
			}
			name := lib.Name
			if name == "" {
				name = "Personal Library"
			}
			fmt.Printf("%-6s %-8s %-40s %d items\n", lib.Type, id, name, lib.ItemCount)
		}

		showFeeds, _ := cmd.Flags().GetBool("feeds")
		if !showFeeds {
			return nil
		}

		feeds, err := reader.Feeds(context.Background())
		if err != nil {
			return err
		}
		if len(feeds) == 0 {
			fmt.Println("\nNo feed subscriptions.")
			return nil
		}
		fmt.Println("\nFeeds:")
		for _, f := range feeds {
			fmt.Printf("%-8d %-40s %s\n", f.LibraryID, f.Name, f.URL)
		}
		return nil
	},
}

func init() {
	librariesCmd.Flags().Bool("feeds", false, "Also list RSS feed subscriptions")
}
