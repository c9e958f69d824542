package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	setup "pl-ner-backend/cmd"
	"pl-ner-backend/internal/config"
	"pl-ner-backend/internal/core"
	"pl-ner-backend/internal/core/utils"
	"pl-ner-backend/internal/storage"
	"pl-ner-backend/pkg/api"

	"github.com/joho/godotenv"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

func loadAnalyzer(cmd *cobra.Command) (*core.Analyzer, func(), error) {
	envFile, _ := cmd.Flags().GetString("env")
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, nil, fmt.Errorf("error loading env file '%s': %w", envFile, err)
		}
	}

	cfg, err := config.Parse[config.CLIConfig]()
	if err != nil {
		return nil, nil, err
	}

	engine := setup.LoadEngine(cfg.Engine)
	_, model := setup.LoadModel(cfg.Model)

	release := func() {
		model.Release()
		core.DestroyOnnxRuntime() // nolint:errcheck
	}

	return core.NewAnalyzer(engine, model), release, nil
}

func checkThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be between 0 and 1, got %v", threshold)
	}
	return nil
}

func extractCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Extract entities from text, a file or stdin",
		Long: `Extract entities and print the analysis as JSON.

The text is taken from the arguments, from --file, or from stdin when
neither is given. Files are parsed the same way as job documents, so
PDF, HTML and XLSX files are supported.

Example:
  plner extract "Zadzwoń jutro o 15:30 pod numer 600 123 456"
  plner extract --file umowa.pdf --pretty
  cat notatka.txt | plner extract --threshold 0.8`,
		RunE: func(cmd *cobra.Command, args []string) error {
			file, _ := cmd.Flags().GetString("file")
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			pretty, _ := cmd.Flags().GetBool("pretty")

			if err := checkThreshold(threshold); err != nil {
				return err
			}
			if file != "" && len(args) > 0 {
				return fmt.Errorf("text arguments cannot be combined with --file")
			}

			analyzer, release, err := loadAnalyzer(cmd)
			if err != nil {
				return err
			}
			defer release()

			ctx := context.Background()

			var result api.AnalyzeResponse
			switch {
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return fmt.Errorf("error opening file: %w", err)
				}
				defer f.Close()

				result, err = analyzer.AnalyzeDocument(ctx, storage.NewDefaultParser(), file, f, threshold)
				if err != nil {
					return fmt.Errorf("error analyzing %s: %w", file, err)
				}

			case len(args) > 0:
				result, err = analyzer.Analyze(ctx, strings.Join(args, " "), threshold)
				if err != nil {
					return err
				}

			default:
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("error reading stdin: %w", err)
				}
				result, err = analyzer.Analyze(ctx, string(data), threshold)
				if err != nil {
					return err
				}
			}

			encoder := json.NewEncoder(cmd.OutOrStdout())
			if pretty {
				encoder.SetIndent("", "  ")
			}
			return encoder.Encode(result)
		},
	}

	cmd.Flags().StringP("file", "f", "", "Document to analyze")
	cmd.Flags().Float64P("threshold", "t", core.DefaultThreshold, "Minimum score of NER model entities")
	cmd.Flags().Bool("pretty", false, "Indent the JSON output")

	return cmd
}

type scanRecord struct {
	Object string               `json:"object"`
	Error  string               `json:"error,omitempty"`
	Values core.LabelToValues   `json:"values,omitempty"`
	Result *api.AnalyzeResponse `json:"result,omitempty"`
}

func scanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <dir>",
		Short: "Analyze every supported document in a directory",
		Long: `Scan a directory tree and analyze every supported document in it.

One JSON record is written per document. With --summary only the total
number of values per label is printed.

Example:
  plner scan ./dokumenty --output wyniki.jsonl
  plner scan ./dokumenty --prefix 2024/ --summary`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix, _ := cmd.Flags().GetString("prefix")
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			workers, _ := cmd.Flags().GetInt("workers")
			output, _ := cmd.Flags().GetString("output")
			summary, _ := cmd.Flags().GetBool("summary")
			full, _ := cmd.Flags().GetBool("full")

			if err := checkThreshold(threshold); err != nil {
				return err
			}

			dir, err := filepath.Abs(args[0])
			if err != nil {
				return fmt.Errorf("invalid directory: %w", err)
			}
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				return fmt.Errorf("%s is not a directory", args[0])
			}

			analyzer, release, err := loadAnalyzer(cmd)
			if err != nil {
				return err
			}
			defer release()

			ctx := context.Background()

			provider := storage.NewLocalProvider(filepath.Dir(dir))
			bucket := filepath.Base(dir)

			objects, err := storage.ListObjects(ctx, provider, bucket, prefix)
			if err != nil {
				return fmt.Errorf("error listing documents: %w", err)
			}

			supported := objects[:0]
			for _, obj := range objects {
				if storage.IsSupported(obj.Name) {
					supported = append(supported, obj)
				}
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("error creating output file: %w", err)
				}
				defer f.Close()
				out = f
			}
			writer := bufio.NewWriter(out)
			defer writer.Flush()
			encoder := json.NewEncoder(writer)

			parser := storage.NewDefaultParser()
			worker := func(ctx context.Context, obj storage.Object) (api.AnalyzeResponse, error) {
				stream, err := provider.GetObjectStream(ctx, bucket, obj.Name)
				if err != nil {
					return api.AnalyzeResponse{}, err
				}
				defer stream.Close()
				return analyzer.AnalyzeDocument(ctx, parser, obj.Name, stream, threshold)
			}

			bar := progressbar.NewOptions(len(supported),
				progressbar.OptionSetWriter(cmd.ErrOrStderr()),
				progressbar.OptionSetDescription("scanning"),
				progressbar.OptionSetWidth(30),
				progressbar.OptionShowCount(),
				progressbar.OptionClearOnFinish(),
			)

			totals := map[string]uint64{}
			failed := 0
			for completed := range utils.RunInPool(ctx, worker, supported, workers) {
				bar.Add(1) // nolint:errcheck

				record := scanRecord{Object: completed.Input.Name}
				if completed.Error != nil {
					failed++
					record.Error = completed.Error.Error()
				} else {
					record.Values = core.NewLabelToValues(completed.Result)
					for label, count := range record.Values.Counts() {
						totals[label] += count
					}
					if full {
						record.Result = &completed.Result
					}
				}

				if summary {
					continue
				}
				if err := encoder.Encode(record); err != nil {
					return fmt.Errorf("error writing result: %w", err)
				}
			}
			bar.Finish() // nolint:errcheck

			if summary {
				printSummary(writer, len(supported), failed, totals)
			}

			if skipped := len(objects) - len(supported); skipped > 0 {
				fmt.Fprintf(cmd.ErrOrStderr(), "skipped %d unsupported files\n", skipped)
			}

			return nil
		},
	}

	cmd.Flags().String("prefix", "", "Only scan documents under this path")
	cmd.Flags().Float64P("threshold", "t", core.DefaultThreshold, "Minimum score of NER model entities")
	cmd.Flags().IntP("workers", "w", 4, "Number of documents analyzed in parallel")
	cmd.Flags().StringP("output", "o", "", "Write results to a file instead of stdout")
	cmd.Flags().Bool("summary", false, "Print label totals instead of per document records")
	cmd.Flags().Bool("full", false, "Include the full analysis with offsets in each record")

	return cmd
}

func printSummary(w io.Writer, documents, failed int, totals map[string]uint64) {
	fmt.Fprintf(w, "Documents: %d (%d failed)\n", documents, failed)

	labels := make([]string, 0, len(totals))
	for label := range totals {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		fmt.Fprintf(w, "  %-10s %d\n", label, totals[label])
	}
}
