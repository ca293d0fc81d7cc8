package cli

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

// renderTable writes an aligned table to the command's stdout.
func renderTable(cmd *cobra.Command, headers []string, rows [][]string) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(headers)
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetTablePadding("  ")
	table.SetNoWhiteSpace(true)
	table.AppendBulk(rows)
	table.Render()
}
