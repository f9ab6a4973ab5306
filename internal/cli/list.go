package cli

import (
	"os"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/kumasuke/s3ready/internal/catalog"
	"github.com/kumasuke/s3ready/internal/checks"
)

// NewListCmd creates the list command.
func NewListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every test in the catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := checks.Catalog().Select(catalog.Filter{})
			if err != nil {
				return err
			}

			t := table.NewWriter()
			t.SetOutputMirror(os.Stdout)
			t.AppendHeader(table.Row{"ID", "Name", "Category", "Tier", "Requires", "Exclusive"})
			for _, tc := range selected {
				var reqs []string
				for _, r := range tc.Requires {
					reqs = append(reqs, string(r))
				}
				exclusive := ""
				if tc.Exclusive {
					exclusive = "yes"
				}
				t.AppendRow(table.Row{
					tc.ID, tc.Name, string(tc.Category), string(tc.Tier),
					strings.Join(reqs, ", "), exclusive,
				})
			}
			t.Render()
			return nil
		},
	}
}
