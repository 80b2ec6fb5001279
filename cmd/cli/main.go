// Command cli drives the reconciliation engine against a local store:
// add records, review flags, run the risk rules, export.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dvloznov/recon-engine/internal/config"
	"github.com/dvloznov/recon-engine/internal/domain"
	"github.com/dvloznov/recon-engine/internal/engine"
	"github.com/dvloznov/recon-engine/internal/export"
	"github.com/dvloznov/recon-engine/internal/logger"
	"github.com/dvloznov/recon-engine/internal/recon"
	"github.com/dvloznov/recon-engine/internal/store"
	"github.com/dvloznov/recon-engine/internal/store/boltstore"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func main() {
	log := logger.New(logger.Options{Level: "warn"})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "add":
		runAdd(log)
	case "list":
		runList(log)
	case "review":
		runReview(log)
	case "dedupe":
		runDedupe(log)
	case "risk":
		runRisk(log)
	case "recalc":
		runRecalc(log)
	case "balance":
		runBalance(log)
	case "dashboard":
		runDashboard(log)
	case "export":
		runExport(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Reconciliation Engine CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  add        Submit a record through the reconciliation pipeline")
	fmt.Println("  list       List records, optionally filtered")
	fmt.Println("  review     Clear the needs-review flag on records")
	fmt.Println("  dedupe     Delete all records flagged as duplicates")
	fmt.Println("  risk       Run the risk rules over the full snapshot")
	fmt.Println("  recalc     Recalculate all running balances")
	fmt.Println("  balance    Show or set the ledger balance")
	fmt.Println("  dashboard  Show summary statistics")
	fmt.Println("  export     Export records as CSV or JSON")
	fmt.Println("  help       Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// openEngine loads config and opens the bolt-backed engine the CLI works on.
func openEngine(fs *flag.FlagSet, log zerolog.Logger) (*engine.Engine, func(), config.Config) {
	configPath := fs.Lookup("config").Value.String()
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	st, err := boltstore.Open(cfg.Storage.BoltPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.Storage.BoltPath).Msg("Failed to open database")
	}

	eng, err := engine.New(cfg, st)
	if err != nil {
		st.Close()
		log.Fatal().Err(err).Msg("Failed to build engine")
	}
	return eng, func() { st.Close() }, cfg
}

func commonFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.String("config", os.Getenv("RECON_CONFIG"), "Path to YAML config")
	return fs
}

func cliContext(log zerolog.Logger) context.Context {
	return logger.WithContext(context.Background(), log)
}

func runAdd(log zerolog.Logger) {
	fs := commonFlags("add")
	date := fs.String("date", "", "Transaction date (as written on the source)")
	vendor := fs.String("vendor", "", "Vendor name")
	income := fs.String("income", "", "Income amount")
	expense := fs.String("expense", "", "Expense amount")
	category := fs.String("category", "", "Category (auto-detected when empty)")
	notes := fs.String("notes", "", "Free-form notes")
	fs.Parse(os.Args[2:])

	if *vendor == "" {
		log.Fatal().Msg("Error: --vendor is required")
	}
	if *income == "" && *expense == "" {
		log.Fatal().Msg("Error: one of --income or --expense is required")
	}

	rec := &domain.TransactionRecord{
		Date:     *date,
		Vendor:   *vendor,
		Category: *category,
		Notes:    *notes,
	}
	var err error
	if *income != "" {
		if rec.Income, err = decimal.NewFromString(*income); err != nil {
			log.Fatal().Err(err).Msg("Invalid --income")
		}
	}
	if *expense != "" {
		if rec.Expense, err = decimal.NewFromString(*expense); err != nil {
			log.Fatal().Err(err).Msg("Invalid --expense")
		}
	}

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	result, err := eng.Submit(cliContext(log), rec)
	if err != nil {
		log.Fatal().Err(err).Msg("Reconciliation failed")
	}

	fmt.Printf("Record #%d saved: %s (%s %s)\n",
		result.Record.ID, result.Record.Vendor, result.Record.Currency, amountOf(result.Record))
	if result.Categorization != nil {
		fmt.Printf("Category: %s (%.0f%% confidence)\n",
			result.Record.Category, result.Categorization.Confidence*100)
	}
	if result.Record.IsDuplicate {
		fmt.Println(red("Possible duplicate of record #" + strconv.FormatInt(result.Record.DuplicateOf, 10)))
		fmt.Println(recon.Summary(result.Matches))
	}
	if result.Record.NeedsReview {
		fmt.Println(yellow("Flagged for review:"))
		for _, flag := range result.Review.Flags {
			fmt.Printf("  - %s\n", flag)
		}
		for _, warning := range result.Review.Warnings {
			fmt.Printf("  - %s\n", warning)
		}
	}
	fmt.Printf("Balance: %s\n", result.Totals.CurrentBalance.StringFixed(2))
}

func runList(log zerolog.Logger) {
	fs := commonFlags("list")
	flagged := fs.Bool("flagged", false, "Only records needing review")
	dups := fs.Bool("duplicates", false, "Only records flagged as duplicates")
	category := fs.String("category", "", "Filter by category")
	limit := fs.Int("limit", 0, "Maximum number of records")
	fs.Parse(os.Args[2:])

	filter := store.Filter{Category: *category, Limit: *limit}
	if *flagged {
		needsReview := true
		filter.NeedsReview = &needsReview
	}
	if *dups {
		isDuplicate := true
		filter.IsDuplicate = &isDuplicate
	}

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	records, err := eng.List(cliContext(log), filter)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list records")
	}
	if len(records) == 0 {
		fmt.Println("No records.")
		return
	}

	for _, rec := range records {
		marker := green("ok")
		if rec.IsDuplicate {
			marker = red("dup")
		} else if rec.NeedsReview {
			marker = yellow("review")
		}
		fmt.Printf("#%-4d %-12s %-30s %10s %-10s [%s]\n",
			rec.ID, rec.Date, truncate(rec.Vendor, 30), amountOf(rec), rec.Category, marker)
	}
	fmt.Printf("\n%d record(s)\n", len(records))
}

func runReview(log zerolog.Logger) {
	fs := commonFlags("review")
	idsArg := fs.String("ids", "", "Comma-separated record IDs")
	fs.Parse(os.Args[2:])

	if *idsArg == "" {
		log.Fatal().Msg("Error: --ids is required")
	}
	var ids []int64
	for _, part := range strings.Split(*idsArg, ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			log.Fatal().Str("id", part).Msg("Invalid record ID")
		}
		ids = append(ids, id)
	}

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	changed, err := eng.MarkReviewed(cliContext(log), ids)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to mark records reviewed")
	}
	fmt.Printf("%d record(s) marked as reviewed.\n", changed)
}

func runDedupe(log zerolog.Logger) {
	fs := commonFlags("dedupe")
	fs.Parse(os.Args[2:])

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	removed, err := eng.RemoveDuplicates(cliContext(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to remove duplicates")
	}
	fmt.Printf("%d duplicate record(s) removed.\n", removed)
}

func runRisk(log zerolog.Logger) {
	fs := commonFlags("risk")
	fs.Parse(os.Args[2:])

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	report, err := eng.RiskReport(cliContext(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Risk analysis failed")
	}
	if report.NoAlerts {
		fmt.Println(green("No risk alerts."))
		return
	}

	for _, alert := range report.Alerts {
		var tag string
		switch alert.Severity {
		case domain.SeverityHigh:
			tag = red(strings.ToUpper(string(alert.Severity)))
		case domain.SeverityMedium:
			tag = yellow(strings.ToUpper(string(alert.Severity)))
		default:
			tag = green(strings.ToUpper(string(alert.Severity)))
		}
		fmt.Printf("[%s] %s: %s\n", tag, alert.Type, alert.Message)
	}
	fmt.Printf("\n%d alert(s)\n", len(report.Alerts))
}

func runRecalc(log zerolog.Logger) {
	fs := commonFlags("recalc")
	fs.Parse(os.Args[2:])

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	totals, err := eng.Recalculate(cliContext(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Recalculation failed")
	}
	printBalance(totals)
}

func runBalance(log zerolog.Logger) {
	fs := commonFlags("balance")
	set := fs.String("set-opening", "", "Set the opening balance")
	fs.Parse(os.Args[2:])

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	ctx := cliContext(log)
	if *set != "" {
		opening, err := decimal.NewFromString(*set)
		if err != nil {
			log.Fatal().Err(err).Msg("Invalid --set-opening")
		}
		totals, err := eng.SetOpeningBalance(ctx, opening)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set opening balance")
		}
		printBalance(totals)
		return
	}

	balance, err := eng.Balance(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to get balance")
	}
	printBalance(*balance)
}

func runDashboard(log zerolog.Logger) {
	fs := commonFlags("dashboard")
	fs.Parse(os.Args[2:])

	eng, closeStore, _ := openEngine(fs, log)
	defer closeStore()

	dash, err := eng.Dashboard(cliContext(log))
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to compute dashboard")
	}

	fmt.Printf("Entries:    %d total, %s clean, %s flagged, %s duplicates\n",
		dash.TotalEntries,
		green(strconv.Itoa(dash.CleanEntries)),
		yellow(strconv.Itoa(dash.FlaggedEntries)),
		red(strconv.Itoa(dash.Duplicates)))
	fmt.Printf("Income:     %s\n", dash.TotalIncome.StringFixed(2))
	fmt.Printf("Expense:    %s\n", dash.TotalExpense.StringFixed(2))
	if len(dash.CategoryBreakdown) > 0 {
		fmt.Println("Categories:")
		for category, count := range dash.CategoryBreakdown {
			fmt.Printf("  %-12s %d\n", category, count)
		}
	}
	if len(dash.ConfidenceDistribution) > 0 {
		fmt.Println("Confidence:")
		for band, count := range dash.ConfidenceDistribution {
			fmt.Printf("  %-12s %d\n", band, count)
		}
	}
}

func runExport(log zerolog.Logger) {
	fs := commonFlags("export")
	format := fs.String("format", "csv", "Export format (csv or json)")
	out := fs.String("out", "", "Output file (stdout when empty)")
	upload := fs.Bool("upload", false, "Also upload to the configured GCS bucket")
	fs.Parse(os.Args[2:])

	eng, closeStore, cfg := openEngine(fs, log)
	defer closeStore()

	w := os.Stdout
	if *out != "" {
		f, err := os.Create(*out)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create output file")
		}
		defer f.Close()
		w = f
	}

	var uploader export.Uploader
	if *upload {
		if cfg.Export.GCSBucket == "" {
			log.Fatal().Msg("Error: --upload requires export.gcs_bucket in config")
		}
		uploader = export.NewGCSUploader(cfg.Export.GCSBucket)
	}

	ctx, cancel := context.WithTimeout(cliContext(log), 5*time.Minute)
	defer cancel()

	uri, err := eng.Export(ctx, w, export.Format(*format), uploader)
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}
	if *out != "" {
		fmt.Printf("Exported to %s\n", *out)
	}
	if uri != "" {
		fmt.Printf("Uploaded to %s\n", uri)
	}
}

func amountOf(rec *domain.TransactionRecord) string {
	if rec.Income.IsPositive() {
		return "+" + rec.Income.StringFixed(2)
	}
	return "-" + rec.Expense.StringFixed(2)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}

func printBalance(b domain.Balance) {
	fmt.Printf("Opening:  %s\n", b.OpeningBalance.StringFixed(2))
	fmt.Printf("Income:   %s\n", b.TotalIncome.StringFixed(2))
	fmt.Printf("Expense:  %s\n", b.TotalExpense.StringFixed(2))
	fmt.Printf("Current:  %s\n", b.CurrentBalance.StringFixed(2))
}
