package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	sheetorm "github.com/ideamans/go-sheetorm"
	"github.com/ideamans/go-sheetorm/adapters/excel"
	"github.com/ideamans/go-sheetorm/adapters/googlesheets"
)

var (
	filePath      string
	spreadsheetID string
	credentials   string
	schemaPath    string
	storePath     string
	sheetName     string
	namedRange    string
	a1Range       string
	logLevel      string

	assignments []string
	rowIndex    int
	rowCount    int
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "sheetorm",
	Short: "Typed table access to spreadsheet ranges",
	Long: `Read and modify a spreadsheet range as typed records, following a column schema
declared in YAML. The workbook is an Excel file (--file) or a Google spreadsheet (--spreadsheet).`,
	SilenceUsage:      true,
	PersistentPreRunE: setupLogger,
}

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Print every record as YAML",
	Args:  cobra.NoArgs,
	RunE:  runRead,
}

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Print the number of records",
	Args:  cobra.NoArgs,
	RunE:  runCount,
}

var insertCmd = &cobra.Command{
	Use:   "insert",
	Short: "Insert a record",
	Long:  `Insert a record built from --set key=value pairs. Without --index the record is appended.`,
	Args:  cobra.NoArgs,
	RunE:  runInsert,
}

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update properties of the record at --index",
	Args:  cobra.NoArgs,
	RunE:  runUpdate,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete --count records starting at --index",
	Args:  cobra.NoArgs,
	RunE:  runDelete,
}

var seqCmd = &cobra.Command{
	Use:   "seq",
	Short: "Inspect or change sequence counters",
}

var seqNextCmd = &cobra.Command{
	Use:   "next <property>",
	Short: "Issue and print the next sequence value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeqNext,
}

var seqCurrentCmd = &cobra.Command{
	Use:   "current <property>",
	Short: "Print the last issued sequence value",
	Args:  cobra.ExactArgs(1),
	RunE:  runSeqCurrent,
}

var seqResetCmd = &cobra.Command{
	Use:   "reset <property> <value>",
	Short: "Overwrite a sequence counter",
	Args:  cobra.ExactArgs(2),
	RunE:  runSeqReset,
}

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Use a two-column key/value range as a store",
	Long:  `The bound range must have "key" and "value" header cells; --schema is not used.`,
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under key",
	Args:  cobra.ExactArgs(1),
	RunE:  runKVGet,
}

var kvSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Store a value under key",
	Args:  cobra.ExactArgs(2),
	RunE:  runKVSet,
}

var kvListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print every key/value pair",
	Args:  cobra.NoArgs,
	RunE:  runKVList,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&filePath, "file", "", "Excel workbook path")
	pf.StringVar(&spreadsheetID, "spreadsheet", "", "Google spreadsheet ID")
	pf.StringVar(&credentials, "credentials", "", "Service account JSON key for --spreadsheet (default: GOOGLE_APPLICATION_CREDENTIALS or ADC)")
	pf.StringVar(&schemaPath, "schema", "", "YAML column schema")
	pf.StringVar(&storePath, "store", "", "YAML file holding sequence counters (default: <file>.seq.yaml or sheetorm.seq.yaml)")
	pf.StringVar(&sheetName, "sheet", "", "Bind the used area of a whole sheet")
	pf.StringVar(&namedRange, "named", "", "Bind a named range")
	pf.StringVar(&a1Range, "a1", "", "Bind an A1 address such as Sheet1!B2:E")
	pf.StringVar(&logLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	rootCmd.MarkFlagsMutuallyExclusive("file", "spreadsheet")
	rootCmd.MarkFlagsMutuallyExclusive("sheet", "named", "a1")

	insertCmd.Flags().StringArrayVar(&assignments, "set", nil, "Property assignment key=value (repeatable)")
	insertCmd.Flags().IntVar(&rowIndex, "index", 0, "Insert before this record index; negative counts from the end")

	updateCmd.Flags().StringArrayVar(&assignments, "set", nil, "Property assignment key=value (repeatable)")
	updateCmd.Flags().IntVar(&rowIndex, "index", 0, "Record index; negative counts from the end")
	_ = updateCmd.MarkFlagRequired("index")

	deleteCmd.Flags().IntVar(&rowIndex, "index", 0, "First record index; negative counts from the end")
	deleteCmd.Flags().IntVar(&rowCount, "count", 1, "Number of records to delete")
	_ = deleteCmd.MarkFlagRequired("index")

	seqCmd.AddCommand(seqNextCmd, seqCurrentCmd, seqResetCmd)
	kvCmd.AddCommand(kvGetCmd, kvSetCmd, kvListCmd)
	rootCmd.AddCommand(readCmd, countCmd, insertCmd, updateCmd, deleteCmd, seqCmd, kvCmd)
}

func setupLogger(cmd *cobra.Command, args []string) error {
	level, ok := logLevels[logLevel]
	if !ok {
		return fmt.Errorf("unknown log level: %q", logLevel)
	}

	logger := slog.New(tint.NewHandler(colorable.NewColorable(os.Stderr), &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !isatty.IsTerminal(os.Stderr.Fd()),
	}))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

func descriptor() (sheetorm.RangeDescriptor, error) {
	switch {
	case sheetName != "":
		return sheetorm.SheetRange(sheetName), nil
	case namedRange != "":
		return sheetorm.NamedRange(namedRange), nil
	case a1Range != "":
		return sheetorm.A1Range(a1Range), nil
	}
	return sheetorm.RangeDescriptor{}, fmt.Errorf("one of --sheet, --named or --a1 is required")
}

func openWorkbook(ctx context.Context) (sheetorm.Workbook, string, error) {
	switch {
	case filePath != "":
		wb, err := excel.New(&excel.Config{FilePath: filePath})
		if err != nil {
			return nil, "", err
		}
		return wb, filePath + ".seq.yaml", nil
	case spreadsheetID != "":
		config := googlesheets.Config{SpreadsheetID: spreadsheetID}
		var (
			wb  *googlesheets.Workbook
			err error
		)
		if credentials != "" || os.Getenv("GOOGLE_APPLICATION_CREDENTIALS") != "" {
			wb, err = googlesheets.NewWithJSONKeyFile(ctx, config, credentials)
		} else {
			wb, err = googlesheets.NewWithDefaultCredentials(ctx, config)
		}
		if err != nil {
			return nil, "", err
		}
		return wb, "sheetorm.seq.yaml", nil
	}
	return nil, "", fmt.Errorf("one of --file or --spreadsheet is required")
}

func openClient(ctx context.Context) (*sheetorm.Client, error) {
	wb, defaultStore, err := openWorkbook(ctx)
	if err != nil {
		return nil, err
	}

	path := storePath
	if path == "" {
		path = defaultStore
	}
	store, err := sheetorm.OpenFileStore(path)
	if err != nil {
		return nil, err
	}

	return sheetorm.New(wb, &sheetorm.Config{Store: store, Logger: slog.Default()}), nil
}

// withTable binds the selected range and closes the client, saving the workbook, afterwards
func withTable(cmd *cobra.Command, fn func(ctx context.Context, table *sheetorm.Table) error) (err error) {
	ctx := cmd.Context()

	if schemaPath == "" {
		return fmt.Errorf("--schema is required")
	}
	schema, err := loadSchema(schemaPath)
	if err != nil {
		return err
	}
	desc, err := descriptor()
	if err != nil {
		return err
	}

	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	table, err := client.Table(ctx, desc, schema)
	if err != nil {
		return err
	}
	return fn(ctx, table)
}

func runRead(cmd *cobra.Command, args []string) error {
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		items, err := table.Read(ctx)
		if err != nil {
			return err
		}
		return printYAML(cmd, items)
	})
}

func runCount(cmd *cobra.Command, args []string) error {
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		fmt.Fprintln(cmd.OutOrStdout(), table.Count())
		return nil
	})
}

func runInsert(cmd *cobra.Command, args []string) error {
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		item, err := parseAssignments(table.Schema(), assignments)
		if err != nil {
			return err
		}

		if cmd.Flags().Changed("index") {
			err = table.InsertAt(ctx, []sheetorm.Entity{item}, rowIndex, false)
		} else {
			err = table.Append(ctx, item)
		}
		if err != nil {
			return err
		}

		slog.Info("Record inserted", "rows", table.Count())
		return printYAML(cmd, item)
	})
}

func runUpdate(cmd *cobra.Command, args []string) error {
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		item, err := parseAssignments(table.Schema(), assignments)
		if err != nil {
			return err
		}
		if len(item) == 0 {
			return fmt.Errorf("nothing to update: pass at least one --set")
		}
		if err := table.UpdateAt(ctx, []sheetorm.Entity{item}, rowIndex); err != nil {
			return err
		}
		slog.Info("Record updated", "index", rowIndex)
		return nil
	})
}

func runDelete(cmd *cobra.Command, args []string) error {
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		before := table.Count()
		if err := table.DeleteAt(ctx, rowIndex, rowCount); err != nil {
			return err
		}
		slog.Info("Records deleted", "count", before-table.Count())
		return nil
	})
}

func runSeqNext(cmd *cobra.Command, args []string) error {
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		v, err := table.SeqNext(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	})
}

func runSeqCurrent(cmd *cobra.Command, args []string) error {
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		v, ok, err := table.SeqCurrent(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("sequence '%s' has not been issued yet", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	})
}

func runSeqReset(cmd *cobra.Command, args []string) error {
	value, err := strconv.ParseInt(args[1], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid sequence value %q", args[1])
	}
	return withTable(cmd, func(ctx context.Context, table *sheetorm.Table) error {
		return table.SeqReset(ctx, args[0], value)
	})
}

// withStore binds the selected range as a key/value store
func withStore(cmd *cobra.Command, fn func(ctx context.Context, store *sheetorm.TableStore) error) (err error) {
	ctx := cmd.Context()

	desc, err := descriptor()
	if err != nil {
		return err
	}
	client, err := openClient(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := client.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()

	store, err := client.KeyValueStore(ctx, desc)
	if err != nil {
		return err
	}
	return fn(ctx, store)
}

func runKVGet(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *sheetorm.TableStore) error {
		v, ok, err := store.Get(ctx, args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("%w: %s", sheetorm.ErrKeyNotFound, args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), v)
		return nil
	})
}

func runKVSet(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *sheetorm.TableStore) error {
		return store.Set(ctx, args[0], args[1])
	})
}

func runKVList(cmd *cobra.Command, args []string) error {
	return withStore(cmd, func(ctx context.Context, store *sheetorm.TableStore) error {
		entries, err := store.Entries(ctx)
		if err != nil {
			return err
		}
		keys := make([]string, 0, len(entries))
		for k := range entries {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", k, entries[k])
		}
		return nil
	})
}

func printYAML(cmd *cobra.Command, v interface{}) error {
	enc := yaml.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	return enc.Close()
}
