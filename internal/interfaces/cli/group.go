package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/clinlink/clinlink/pkg/client"
)

var (
	groupMetric    string
	groupThreshold float64
)

// NewGroupCmd creates the group command.
func NewGroupCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "group NAME",
		Short: "Build a grouping over the stored records",
		Long: "Computes pairwise similarities between all stored records, links\n" +
			"pairs that clear the threshold on both disease and drug codes, and\n" +
			"persists the resulting groups and supergroups under a key derived from\n" +
			"NAME, the metric and the threshold.",
		Example: `  clinlink group trials
  clinlink group pubs --metric jaccard --threshold 0.25`,
		Args: cobra.ExactArgs(1),
		RunE: runGroup,
	}

	cmd.Flags().StringVar(&groupMetric, "metric", "", "similarity metric (cosine, jaccard); server default when empty")
	cmd.Flags().Float64Var(&groupThreshold, "threshold", 0, "similarity threshold in (0,1]; server default when zero")
	return cmd
}

func runGroup(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	if groupThreshold < 0 || groupThreshold > 1 {
		return fmt.Errorf("threshold must be in (0,1], got %g", groupThreshold)
	}

	res, err := cliCtx.Client.BuildGrouping(cmd.Context(), &client.GroupingRequest{
		Name:      args[0],
		Metric:    groupMetric,
		Threshold: groupThreshold,
	})
	if err != nil {
		return err
	}

	if cliCtx.OutputFormat == "json" {
		return PrintResult(cmd, res)
	}
	PrintSuccess(cmd, fmt.Sprintf("built grouping %s: %d records, %d groups, %d supergroups",
		res.Key, res.Records, res.Groups, res.Supergroups))
	return nil
}
