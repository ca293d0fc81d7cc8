package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/clinlink/clinlink/pkg/client"
)

var (
	ingestFile   string
	ingestSource string
)

// NewIngestCmd creates the ingest command.
func NewIngestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upload records from a JSON file or stdin",
		Long: "Reads a JSON array of records and uploads them to the server.\n" +
			"Each record carries an id, a source (ctgov, pubmed, ema), free text for\n" +
			"annotation and optionally pre-assigned disease_codes and drug_codes.",
		Example: `  clinlink ingest --file trials.json
  cat trials.json | clinlink ingest --source ctgov`,
		RunE: runIngest,
	}

	cmd.Flags().StringVarP(&ingestFile, "file", "f", "", "input file (defaults to stdin)")
	cmd.Flags().StringVar(&ingestSource, "source", "", "default source for records that omit one")
	return cmd
}

func runIngest(cmd *cobra.Command, args []string) error {
	cliCtx, err := GetCLIContext(cmd)
	if err != nil {
		return err
	}

	records, err := readRecords(cmd)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return fmt.Errorf("no records in input")
	}
	if ingestSource != "" {
		for i := range records {
			if records[i].Source == "" {
				records[i].Source = ingestSource
			}
		}
	}

	res, err := cliCtx.Client.IngestRecords(cmd.Context(), records)
	if err != nil {
		return err
	}

	PrintSuccess(cmd, fmt.Sprintf("ingested %d records", res.Saved))
	return nil
}

func readRecords(cmd *cobra.Command) ([]client.RecordInput, error) {
	var in io.Reader = cmd.InOrStdin()
	if ingestFile != "" {
		f, err := os.Open(ingestFile)
		if err != nil {
			return nil, fmt.Errorf("cannot open input file: %w", err)
		}
		defer f.Close()
		in = f
	}

	var records []client.RecordInput
	if err := json.NewDecoder(in).Decode(&records); err != nil {
		return nil, fmt.Errorf("cannot decode records: %w", err)
	}
	return records, nil
}
