package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/clinlink/clinlink/pkg/client"
)

// NewGroupingsCmd creates the groupings command tree for inspecting stored
// groupings.
func NewGroupingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "groupings",
		Short: "Inspect stored groupings",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List the keys of all stored groupings",
		RunE:  runGroupingsList,
	}

	showCmd := &cobra.Command{
		Use:   "show KEY",
		Short: "Show one grouping's summary",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupingsShow,
	}

	groupsCmd := &cobra.Command{
		Use:   "groups KEY",
		Short: "List a grouping's groups with their members",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupingsGroups,
	}

	supergroupsCmd := &cobra.Command{
		Use:   "supergroups KEY",
		Short: "List a grouping's supergroups with their members",
		Args:  cobra.ExactArgs(1),
		RunE:  runGroupingsSupergroups,
	}

	recordCmd := &cobra.Command{
		Use:   "record KEY ID",
		Short: "Show which groups a record belongs to",
		Args:  cobra.ExactArgs(2),
		RunE:  runGroupingsRecord,
	}

	cmd.AddCommand(listCmd, showCmd, groupsCmd, supergroupsCmd, recordCmd)
	return cmd
}

func runGroupingsList(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	keys, err := cliCtx.Client.ListGroupings(cmd.Context())
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no groupings stored")
		return nil
	}
	return PrintResult(cmd, strings.Join(keys, "\n"))
}

// summaryView adapts a GroupingSummary for table output.
type summaryView struct {
	*client.GroupingSummary
}

func (v summaryView) TableHeaders() []string {
	return []string{"KEY", "NAME", "METRIC", "THRESHOLD", "GROUPS", "SUPERGROUPS", "CREATED"}
}

func (v summaryView) TableRows() [][]string {
	return [][]string{{
		v.Key,
		v.Name,
		v.Metric,
		strconv.FormatFloat(v.Threshold, 'g', -1, 64),
		strconv.Itoa(v.Groups),
		strconv.Itoa(v.Supergroups),
		v.CreatedAt.Format("2006-01-02 15:04:05"),
	}}
}

func runGroupingsShow(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	summary, err := cliCtx.Client.GetGrouping(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	switch cliCtx.OutputFormat {
	case "json":
		return PrintResult(cmd, summary)
	default:
		renderTable(cmd, summaryView{summary}.TableHeaders(), summaryView{summary}.TableRows())
		return nil
	}
}

// groupListView adapts member lists for table output.
type groupListView struct {
	label  string
	groups [][]string
}

func (v groupListView) TableHeaders() []string {
	return []string{"#", "SIZE", "MEMBERS"}
}

func (v groupListView) TableRows() [][]string {
	rows := make([][]string, 0, len(v.groups))
	for i, g := range v.groups {
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			strconv.Itoa(len(g)),
			strings.Join(g, ", "),
		})
	}
	return rows
}

func runGroupingsGroups(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	groups, err := cliCtx.Client.GetGroups(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printGroupList(cmd, cliCtx, "groups", groups)
}

func runGroupingsSupergroups(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	supergroups, err := cliCtx.Client.GetSupergroups(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return printGroupList(cmd, cliCtx, "supergroups", supergroups)
}

func printGroupList(cmd *cobra.Command, cliCtx *CLIContext, label string, groups [][]string) error {
	if len(groups) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "no %s\n", label)
		return nil
	}

	switch cliCtx.OutputFormat {
	case "json":
		return PrintResult(cmd, map[string]interface{}{label: groups})
	default:
		view := groupListView{label: label, groups: groups}
		renderTable(cmd, view.TableHeaders(), view.TableRows())
		return nil
	}
}

func runGroupingsRecord(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	res, err := cliCtx.Client.RecordMembership(cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}

	if cliCtx.OutputFormat == "json" {
		return PrintResult(cmd, res)
	}
	if len(res.Groups) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "record %s is in no group\n", res.RecordID)
		return nil
	}
	view := groupListView{label: "groups", groups: res.Groups}
	renderTable(cmd, view.TableHeaders(), view.TableRows())
	return nil
}
