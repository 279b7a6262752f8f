package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/danielpatrickdp/idea-forge/internal/catalog"
	"github.com/danielpatrickdp/idea-forge/internal/pitch"
)

// GenresCmd lists the subgenre catalog.
func GenresCmd() *cobra.Command {
	var category string
	cmd := &cobra.Command{
		Use:   "genres",
		Short: "List the subgenre catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			want := pitch.Category(strings.ToLower(category))
			out := cmd.OutOrStdout()
			for _, e := range catalog.Entries() {
				if category != "" && e.Category != want {
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", e.Category, e.Name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "only list sci-fi or fantasy entries")
	return cmd
}
