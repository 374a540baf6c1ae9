package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/debemdeboas/kable/internal/form"
	"github.com/debemdeboas/kable/internal/formfile"
	"github.com/debemdeboas/kable/internal/submission"
	"github.com/debemdeboas/kable/internal/validation"
)

// submit <file>: load a submission document and send it to the store.
func submitCmd() *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "submit <file>",
		Short: "Submit a newsletter document and its images",
		Long: `Submit reads a YAML submission document, fills the form with it and
creates the submission and content records. Image paths in the document
are resolved relative to the document's directory.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			doc, err := formfile.ReadFile(args[0])
			if err != nil {
				return err
			}

			a, err := newApp(ctx, cfg, func(ev submission.Event) { writeStep(out, ev) })
			if err != nil {
				return err
			}
			defer a.Close()

			if timeout <= 0 {
				timeout = cfg.Submission.Timeout
			}
			controller := form.New(a.orchestrator, form.Options{Timeout: timeout})

			images := formfile.DirResolver(filepath.Dir(args[0]))
			if err := formfile.Apply(doc, controller, a.documentOptions(images)); err != nil {
				return err
			}

			writeSubmitting(out)
			receipt, err := controller.Submit(ctx)

			var ve *validation.Error
			if errors.As(err, &ve) {
				writeInvalid(out, ve.Errors)
				return err
			}
			if err != nil {
				writeFailure(out, controller.State(), err)
				cliLogger.Error().Err(err).Msg("Submission failed")
				return fmt.Errorf("submission failed: %w", err)
			}

			writeSuccess(out, receipt)
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 0, "bound for the whole submission (default from config)")
	return cmd
}
