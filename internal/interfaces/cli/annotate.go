package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var annotateResume bool

// NewAnnotateCmd creates the annotate command.
func NewAnnotateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "annotate",
		Short: "Run entity annotation over the stored records",
		Long: "Sends every stored record's text through the biomedical entity\n" +
			"annotator and folds the recognized disease and drug codes back into the\n" +
			"records. With --resume, records that already have a stored annotation\n" +
			"are skipped.",
		RunE: runAnnotate,
	}

	cmd.Flags().BoolVar(&annotateResume, "resume", false, "skip records that already have annotations")
	return cmd
}

func runAnnotate(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	res, err := cliCtx.Client.RunAnnotation(cmd.Context(), annotateResume)
	if err != nil {
		return err
	}

	if cliCtx.OutputFormat == "json" {
		return PrintResult(cmd, res)
	}
	PrintSuccess(cmd, fmt.Sprintf("annotated %d records (%d skipped, %d failed, %d updated) in %s",
		res.Processed, res.Skipped, res.Failed, res.Updated, res.Elapsed))
	return nil
}
