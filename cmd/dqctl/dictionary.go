package main

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"bitbucket.org/mmdatafocus/dq_backend/dqcheck"
	"bitbucket.org/mmdatafocus/dq_backend/models"
	"github.com/spf13/cobra"
	"golang.org/x/text/encoding/charmap"
)

var dictionaryReplace bool

var ingestDictionaryCmd = &cobra.Command{
	Use:   "ingest-dictionary <csv>",
	Short: "Load the column description CSV into COLUMN_DICTIONARY",
	Long: `Load HomeCredit_columns_description.csv (Table, Row, Description, Special).
Files that are not valid UTF-8 are read as Latin-1. Unnamed index columns
are ignored.

Examples:
  dqctl ingest-dictionary HomeCredit_columns_description.csv --replace`,
	Args: cobra.ExactArgs(1),
	RunE: runIngestDictionary,
}

func init() {
	ingestDictionaryCmd.Flags().BoolVar(&dictionaryReplace, "replace", false, "Delete the existing dictionary first")
	rootCmd.AddCommand(ingestDictionaryCmd)
}

func runIngestDictionary(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	entries, err := parseDictionaryCSV(data)
	if err != nil {
		return fmt.Errorf("parse %s: %w", args[0], err)
	}
	_, store, err := pipeline()
	if err != nil {
		return err
	}
	n, err := store.IngestColumnDictionary(cmd.Context(), entries, dictionaryReplace)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d column descriptions\n", n)
	return nil
}

var dictionaryHeaders = map[string]string{
	"table":       "TABLE_NAME",
	"row":         "ROW_NAME",
	"description": "DESCRIPTION",
	"special":     "SPECIAL",
}

// The dictionary names tables by their Kaggle file; lookups use the
// registered table names.
var dictionaryTables = map[string]string{
	"application_{train|test}.csv": dqcheck.TableApplication,
	"application_train.csv":        dqcheck.TableApplication,
	"bureau.csv":                   dqcheck.TableBureau,
	"previous_application.csv":     dqcheck.TablePreviousApplication,
	"installments_payments.csv":    dqcheck.TableInstallments,
}

func parseDictionaryCSV(data []byte) ([]models.ColumnDescription, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if !utf8.Valid(data) {
		decoded, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
		if err != nil {
			return nil, fmt.Errorf("latin-1 decode: %w", err)
		}
		data = decoded
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty file")
		}
		return nil, err
	}

	cols := map[string]int{}
	for i, h := range header {
		h = strings.TrimSpace(h)
		if h == "" || strings.HasPrefix(h, "Unnamed") {
			continue
		}
		if name, ok := dictionaryHeaders[strings.ToLower(h)]; ok {
			cols[name] = i
		}
	}
	for _, required := range []string{"TABLE_NAME", "ROW_NAME"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing column for %s", required)
		}
	}

	field := func(rec []string, name string) string {
		i, ok := cols[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var entries []models.ColumnDescription
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		e := models.ColumnDescription{
			SourceTable: field(rec, "TABLE_NAME"),
			RowName:     field(rec, "ROW_NAME"),
			Description: field(rec, "DESCRIPTION"),
		}
		if e.SourceTable == "" || e.RowName == "" {
			continue
		}
		if table, ok := dictionaryTables[strings.ToLower(e.SourceTable)]; ok {
			e.SourceTable = table
		}
		if special := field(rec, "SPECIAL"); special != "" {
			e.Special = &special
		}
		entries = append(entries, e)
	}
	return entries, nil
}
