package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/mitchens84/APPLE-HEALTH/internal/config"
	"github.com/mitchens84/APPLE-HEALTH/internal/healthdata"
	"github.com/mitchens84/APPLE-HEALTH/internal/infrastructure"
	"github.com/mitchens84/APPLE-HEALTH/internal/report"
	"github.com/mitchens84/APPLE-HEALTH/internal/services"
)

func main() {
	exportPath := flag.String("in", "", "path to the Apple Health export.xml")
	outDir := flag.String("out", "", "output directory for dataset CSVs (defaults to data/reports relative to executable)")
	typesFlag := flag.String("types", "", "comma-separated record types to extract (raw identifiers)")
	all := flag.Bool("all", false, "extract every record type found in the export")
	workouts := flag.Bool("workouts", false, "extract the workouts dataset as well")
	list := flag.Bool("list", false, "list the record types present in the export and exit")
	parallel := flag.Int("parallel", 0, "number of concurrent extractions (overrides config; 1 = sequential)")
	xlsx := flag.Bool("xlsx", false, "also write the schedule report as an Excel workbook")
	interactive := flag.Bool("interactive", false, "run the interactive menu instead of batch mode")
	configPath := flag.String("config", "", "path to a config.yaml (overrides the default lookup)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("HEALTH_CONFIG_FILE", *configPath)
	}

	// Initialize paths first to get default directories
	paths, err := config.GetPaths()
	if err != nil {
		slog.Error("Failed to initialize paths", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Warn("Failed to load config, using defaults", "error", err)
		cfg = config.Default()
		cfg.Logging.FilePath = paths.GetLogPath("processor.log")
	}
	if *parallel > 0 {
		cfg.Processing.Workers = *parallel
	}
	if *xlsx {
		cfg.Processing.WriteXLSX = true
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Warn("Failed to initialize logger, using default", "error", err)
		logger = slog.Default()
	}

	stdin := bufio.NewScanner(os.Stdin)
	if *exportPath == "" && *interactive {
		if path, ok := prompt(stdin, "Path to export.xml: "); ok {
			*exportPath = path
		}
	}
	if *exportPath == "" {
		fmt.Fprintln(os.Stderr, "no export file given, pass -in <path>")
		flag.Usage()
		os.Exit(2)
	}
	if *outDir == "" {
		*outDir = paths.ReportsDir
	}
	if err := os.MkdirAll(*outDir, 0755); err != nil {
		logger.Error("Error creating output directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Starting Apple Health export processing",
		slog.String("export_path", *exportPath),
		slog.String("output_dir", *outDir),
		slog.Int("workers", cfg.Processing.Workers),
		slog.Bool("interactive", *interactive))

	sess := newCLISession(*exportPath, *outDir, logger)
	svc := services.NewProcessingService(cfg, paths, consoleSink{}, logger)

	ctx := context.Background()
	switch {
	case *list:
		err = runListTypes(ctx, sess)
	case *interactive:
		err = runInteractive(ctx, stdin, sess, svc)
	default:
		err = runBatch(ctx, sess, svc, *typesFlag, *all, *workouts)
	}
	if err != nil {
		logger.Error("Processing failed", slog.String("error", err.Error()))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// newCLISession wraps one export file in the session shape the processing
// service works on. The CLI has exactly one session per run, so a fixed id
// keeps the logs readable.
func newCLISession(exportPath, outDir string, logger *slog.Logger) *services.Session {
	return &services.Session{
		ID:         "cli",
		ExportPath: exportPath,
		OutputDir:  outDir,
		Processor:  healthdata.NewProcessor(exportPath, logger),
		Report:     report.New(logger),
	}
}

// runListTypes prints the type catalog, one numbered line per record type
// with the display name followed by the raw identifier -types expects.
func runListTypes(ctx context.Context, sess *services.Session) error {
	types, err := sess.Processor.ListTypes(ctx)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		fmt.Println("No record types found in the export")
		return nil
	}
	printCatalog(types)
	return nil
}

func printCatalog(types []string) {
	for i, raw := range types {
		fmt.Printf("%3d. %s  [%s]\n", i+1, report.CleanMetricName(raw), raw)
	}
}

// runBatch resolves the selected record types and processes them in one
// batch, ending with the consolidated schedule report.
func runBatch(ctx context.Context, sess *services.Session, svc *services.ProcessingService, typesCSV string, all, includeWorkouts bool) error {
	selected, err := selectTypes(ctx, sess, typesCSV, all)
	if err != nil {
		return err
	}
	if len(selected) == 0 && !includeWorkouts {
		return fmt.Errorf("nothing selected: pass -types, -all or -workouts")
	}

	result, err := svc.ProcessAll(ctx, sess, selected, includeWorkouts)
	if err != nil {
		return err
	}

	fmt.Printf("Schedule report: %s\n", result.ReportPath)
	if result.Failed > 0 {
		return fmt.Errorf("%d of %d datasets failed", result.Failed, result.Failed+result.Processed)
	}
	return nil
}

// selectTypes returns the record types a batch run should extract: the full
// catalog for -all, otherwise the parsed -types list.
func selectTypes(ctx context.Context, sess *services.Session, typesCSV string, all bool) ([]string, error) {
	if all {
		return sess.Processor.ListTypes(ctx)
	}
	return splitTypesFlag(typesCSV), nil
}

// splitTypesFlag parses the -types value into raw type identifiers, dropping
// empty segments and surrounding whitespace.
func splitTypesFlag(typesCSV string) []string {
	var types []string
	for _, part := range strings.Split(typesCSV, ",") {
		if t := strings.TrimSpace(part); t != "" {
			types = append(types, t)
		}
	}
	return types
}

// runInteractive drives the menu loop. Extraction failures are reported and
// the menu comes back, so a bad export path or metric pick never kills the
// session.
func runInteractive(ctx context.Context, in *bufio.Scanner, sess *services.Session, svc *services.ProcessingService) error {
	for {
		fmt.Println()
		fmt.Println("Apple Health Export Processor")
		fmt.Println(" 1. Extract a specific metric")
		fmt.Println(" 2. Process everything and build the schedule report")
		fmt.Println(" 3. Extract workouts")
		fmt.Println(" 4. Exit")

		choice, ok := prompt(in, "Select an option: ")
		if !ok {
			return nil
		}

		switch choice {
		case "1":
			if err := interactiveExtractMetric(ctx, in, sess, svc); err != nil {
				fmt.Printf("Extraction failed: %v\n", err)
			}
		case "2":
			if err := runBatch(ctx, sess, svc, "", true, true); err != nil {
				fmt.Printf("Processing failed: %v\n", err)
			}
		case "3":
			summary, err := svc.ExtractWorkouts(ctx, sess)
			if err != nil {
				fmt.Printf("Extraction failed: %v\n", err)
				continue
			}
			fmt.Printf("Wrote %d workouts to %s\n", summary.RecordCount, summary.FilePath)
		case "4", "q", "quit", "exit":
			return nil
		default:
			fmt.Println("Invalid option, enter 1-4")
		}
	}
}

// interactiveExtractMetric lists the catalog, reads a selection and extracts
// the chosen metric into the output directory.
func interactiveExtractMetric(ctx context.Context, in *bufio.Scanner, sess *services.Session, svc *services.ProcessingService) error {
	types, err := sess.Processor.ListTypes(ctx)
	if err != nil {
		return err
	}
	if len(types) == 0 {
		fmt.Println("No record types found in the export")
		return nil
	}
	printCatalog(types)

	input, ok := prompt(in, "Metric number: ")
	if !ok {
		return nil
	}
	rawType, err := pickType(types, input)
	if err != nil {
		return err
	}

	summary, err := svc.ExtractDataset(ctx, sess, rawType)
	if err != nil {
		return err
	}
	fmt.Printf("Wrote %d records to %s\n", summary.RecordCount, summary.FilePath)
	return nil
}

// pickType resolves a 1-based catalog number to its raw record type.
func pickType(types []string, input string) (string, error) {
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return "", fmt.Errorf("not a number: %q", input)
	}
	if n < 1 || n > len(types) {
		return "", fmt.Errorf("pick a number between 1 and %d", len(types))
	}
	return types[n-1], nil
}

// prompt prints a label and reads one trimmed line. ok is false once stdin
// is exhausted.
func prompt(in *bufio.Scanner, label string) (string, bool) {
	fmt.Print(label)
	if !in.Scan() {
		fmt.Println()
		return "", false
	}
	return strings.TrimSpace(in.Text()), true
}

// consoleSink mirrors batch progress to stdout so a user watching the
// terminal sees movement without reading the structured logs.
type consoleSink struct{}

func (consoleSink) Broadcast(messageType string, data interface{}) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return
	}
	switch messageType {
	case "processing_started":
		fmt.Printf("Processing %v datasets\n", m["total"])
	case "processing_progress":
		fmt.Printf("Processed %v (%v of %v)\n", m["dataset"], m["index"], m["total"])
	case "processing_error":
		fmt.Printf("Failed %v: %v\n", m["dataset"], m["error"])
	case "processing_complete":
		fmt.Printf("Processing complete: %v datasets, %v failed\n", m["processed"], m["failed"])
	}
}
