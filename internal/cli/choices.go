package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func choicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "choices",
		Short: "List the group names a submission can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			values := <-a.choices.LoadAsync(cmd.Context())
			if len(values) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), detailStyle.Render("No group choices yet."))
				return nil
			}
			for _, v := range values {
				fmt.Fprintln(cmd.OutOrStdout(), v)
			}
			return nil
		},
	}
}
