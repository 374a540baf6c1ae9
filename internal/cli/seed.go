package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// seed-choices [choice...]: replace the local group choice set.
func seedChoicesCmd() *cobra.Command {
	var file string

	cmd := &cobra.Command{
		Use:   "seed-choices [choice...]",
		Short: "Replace the group choices of the local sqlite store",
		Long: `Seed-choices replaces the group name choices kept by the sqlite store.
Choices come from the arguments, or one per line from --file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			values := args
			if file != "" {
				fromFile, err := readChoices(file)
				if err != nil {
					return err
				}
				values = append(values, fromFile...)
			}
			if len(values) == 0 {
				return fmt.Errorf("no choices given")
			}

			a, err := newApp(cmd.Context(), cfg, nil)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.local == nil {
				return fmt.Errorf("seed-choices needs the sqlite store backend, not %q", cfg.Store.Backend)
			}
			if err := a.local.SeedChoices(cmd.Context(), cfg.Lists.Submissions, cfg.Choices.Field, values); err != nil {
				return err
			}
			a.choices.Invalidate()

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Seeded %d choices for %s.", len(values), cfg.Choices.Field)))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "file with one choice per line")
	return cmd
}

func readChoices(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		out = append(out, line)
	}
	return out, scanner.Err()
}
