package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/webcrawlerapi-go/internal/recorder"
	"github.com/JakeFAU/webcrawlerapi-go/internal/webcrawlerapi"
)

// Output formats accepted by --output.
const (
	formatJSON = "json"
	formatYAML = "yaml"
)

func validateFormat(format string) error {
	switch format {
	case formatJSON, formatYAML:
		return nil
	default:
		return fmt.Errorf("invalid --output %q: want json or yaml", format)
	}
}

// printResult writes v to the command's stdout in the --output format.
func printResult(cmd *cobra.Command, v any) error {
	format, err := cmd.Flags().GetString("output")
	if err != nil {
		format = formatJSON
	}
	w := cmd.OutOrStdout()
	if format == formatYAML {
		return printYAML(w, v)
	}
	return printJSON(w, v)
}

func printYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}

func parseScrapeType(raw string) (webcrawlerapi.ScrapeType, error) {
	t := webcrawlerapi.ScrapeType(raw)
	if !t.Valid() {
		return "", fmt.Errorf("invalid --scrape-type %q: want html, cleaned or markdown", raw)
	}
	return t, nil
}

// record hands a finished job to the recorder when one is configured. A
// recording failure fails the command after the result is printed.
func record(a App, kind string, fn func(ResultRecorder) (recorder.Receipt, error)) error {
	rec := a.GetRecorder()
	if rec == nil || !rec.Enabled() {
		return nil
	}
	receipt, err := fn(rec)
	if err != nil {
		return fmt.Errorf("record %s result: %w", kind, err)
	}
	a.GetLogger().Info("result recorded",
		zap.String("kind", kind),
		zap.String("blob_uri", receipt.BlobURI),
		zap.String("record_id", receipt.RecordID),
		zap.String("message_id", receipt.MessageID),
	)
	return nil
}
