package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/liliang-cn/sqrecord/internal/encoding"
	"github.com/liliang-cn/sqrecord/pkg/core"
	"github.com/liliang-cn/sqrecord/pkg/sqrecord"
)

var (
	dbPath  string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "sqrecord",
	Short: "CLI tool for record-level SQLite access",
	Long:  `A command-line interface for reading and writing SQLite table rows as records.`,
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List tables",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		tables, err := db.Tables(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list tables: %w", err)
		}
		for _, name := range tables {
			fmt.Println(name)
		}
		return nil
	},
}

var describeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "Show columns, primary key and constraints of a table",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		table, err := db.Table(ctx, args[0])
		if err != nil {
			return err
		}

		fmt.Printf("Table: %s\n", table.Name())
		fmt.Printf("  Strategy: %s\n", table.Strategy())
		for _, col := range table.Handle().Columns() {
			fmt.Printf("  %s %s\n", col.Name, col.Type)
		}

		constraints, err := table.Constraints(ctx)
		if err != nil {
			return fmt.Errorf("failed to read constraints: %w", err)
		}
		for _, c := range constraints {
			line := fmt.Sprintf("  %s (%s)", c.Kind, strings.Join(c.Columns, ", "))
			if c.References != "" {
				line += " REFERENCES " + c.References
			}
			fmt.Println(line)
		}
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Display row counts for every table",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.Stats(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get stats: %w", err)
		}

		outputJSON, _ := cmd.Flags().GetBool("json")
		if outputJSON {
			data, _ := json.MarshalIndent(stats, "", "  ")
			fmt.Println(string(data))
			return nil
		}
		for _, s := range stats {
			fmt.Printf("%s: %d rows, %d columns", s.Name, s.Rows, s.Columns)
			if len(s.PrimaryKey) > 0 {
				fmt.Printf(", key (%s)", strings.Join(s.PrimaryKey, ", "))
			}
			fmt.Println()
		}
		return nil
	},
}

var selectCmd = &cobra.Command{
	Use:   "select <table>",
	Short: "Print rows as JSON lines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		table, err := db.Table(ctx, args[0])
		if err != nil {
			return err
		}

		var opts []core.SelectOption
		if columns, _ := cmd.Flags().GetStringSlice("columns"); len(columns) > 0 {
			opts = append(opts, core.WithColumns(columns...))
		}

		switch {
		case cmd.Flags().Changed("index"):
			index, _ := cmd.Flags().GetInt("index")
			r, err := table.SelectByIndex(ctx, index, opts...)
			if err != nil {
				return err
			}
			return printRecords([]core.Record{r})

		case cmd.Flags().Changed("slice"):
			s, _ := cmd.Flags().GetString("slice")
			slice, err := parseSlice(s)
			if err != nil {
				return err
			}
			records, err := table.SelectBySlice(ctx, slice, opts...)
			if err != nil {
				return err
			}
			return printRecords(records)

		case cmd.Flags().Changed("chunk"):
			size, _ := cmd.Flags().GetInt("chunk")
			chunks, err := table.SelectChunks(ctx, size, opts...)
			if err != nil {
				return err
			}
			for chunks.Next() {
				if err := printRecords(chunks.Chunk()); err != nil {
					return err
				}
			}
			return chunks.Err()

		default:
			records, err := table.SelectAll(ctx, opts...)
			if err != nil {
				return err
			}
			return printRecords(records)
		}
	},
}

var insertCmd = &cobra.Command{
	Use:   "insert <table>",
	Short: "Insert records given as a JSON array",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := recordsFlag(cmd)
		if err != nil {
			return err
		}
		return withTable(cmd, args[0], func(ctx context.Context, table *sqrecord.Table) error {
			if err := table.InsertRecords(ctx, records); err != nil {
				return fmt.Errorf("failed to insert records: %w", err)
			}
			fmt.Printf("Inserted %d records into %s\n", len(records), table.Name())
			return nil
		})
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <table>",
	Short: "Update records by primary key or by --match columns",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := recordsFlag(cmd)
		if err != nil {
			return err
		}
		match, _ := cmd.Flags().GetStringSlice("match")
		return withTable(cmd, args[0], func(ctx context.Context, table *sqrecord.Table) error {
			if len(match) > 0 {
				err = table.UpdateMatchingRecords(ctx, match, records)
			} else {
				err = table.UpdateRecords(ctx, records, nil)
			}
			if err != nil {
				return fmt.Errorf("failed to update records: %w", err)
			}
			fmt.Printf("Updated %d records in %s\n", len(records), table.Name())
			return nil
		})
	},
}

var setCmd = &cobra.Command{
	Use:   "set <table> <column> <value>",
	Short: "Set a column to one value on every row",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		column, value := args[1], encoding.ParseValue(args[2])
		return withTable(cmd, args[0], func(ctx context.Context, table *sqrecord.Table) error {
			if err := table.SetColumnValues(ctx, column, value); err != nil {
				return fmt.Errorf("failed to set column: %w", err)
			}
			fmt.Printf("Set %s.%s = %s\n", table.Name(), column, encoding.FormatValue(value))
			return nil
		})
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <table>",
	Short: "Delete rows by column values, by records or all rows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		column, _ := cmd.Flags().GetString("column")

		return withTable(cmd, args[0], func(ctx context.Context, table *sqrecord.Table) error {
			switch {
			case all:
				if err := table.DeleteAllRecords(ctx); err != nil {
					return fmt.Errorf("failed to delete records: %w", err)
				}
				fmt.Printf("Deleted all records from %s\n", table.Name())

			case column != "":
				valuesStr, _ := cmd.Flags().GetString("values")
				values, err := parseValues(valuesStr)
				if err != nil {
					return err
				}
				if err := table.DeleteRecords(ctx, column, values); err != nil {
					return fmt.Errorf("failed to delete records: %w", err)
				}
				fmt.Printf("Deleted rows of %s where %s in %d values\n", table.Name(), column, len(values))

			case cmd.Flags().Changed("records"):
				records, err := recordsFlag(cmd)
				if err != nil {
					return err
				}
				if err := table.DeleteRecordsByValues(ctx, records); err != nil {
					return fmt.Errorf("failed to delete records: %w", err)
				}
				fmt.Printf("Deleted %d records from %s\n", len(records), table.Name())

			default:
				return fmt.Errorf("one of --all, --column or --records is required")
			}
			return nil
		})
	},
}

var dumpCmd = &cobra.Command{
	Use:   "dump <table> <file>",
	Short: "Export a table to a JSON, JSON Lines or CSV file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, compression, err := fileFormat(cmd, args[1])
		if err != nil {
			return err
		}
		chunk, _ := cmd.Flags().GetInt("chunk")

		return withTable(cmd, args[0], func(ctx context.Context, table *sqrecord.Table) error {
			f, err := os.Create(args[1])
			if err != nil {
				return fmt.Errorf("failed to create file: %w", err)
			}

			opts := core.DumpOptions{Format: format, Compression: compression, ChunkSize: chunk}
			stats, err := table.Dump(ctx, f, opts)
			if cerr := f.Close(); err == nil {
				err = cerr
			}
			if err != nil {
				_ = os.Remove(args[1])
				return fmt.Errorf("failed to dump table: %w", err)
			}
			fmt.Printf("Dumped %d records from %s (%d bytes)\n", stats.Rows, table.Name(), stats.BytesWritten)
			return nil
		})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <table> <file>",
	Short: "Import records from a JSON, JSON Lines or CSV file",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		format, compression, err := fileFormat(cmd, args[1])
		if err != nil {
			return err
		}
		batch, _ := cmd.Flags().GetInt("batch")

		return withTable(cmd, args[0], func(ctx context.Context, table *sqrecord.Table) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open file: %w", err)
			}
			defer f.Close()

			stats, err := table.Load(ctx, f, core.LoadOptions{Format: format, Compression: compression, BatchSize: batch})
			if err != nil {
				return fmt.Errorf("failed to load records: %w", err)
			}
			fmt.Printf("Loaded %d records into %s in %d batches\n", stats.Rows, table.Name(), stats.Batches)
			return nil
		})
	},
}

func openDB() (*sqrecord.DB, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("database path not specified")
	}

	var opts []sqrecord.Option
	if verbose {
		handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})
		opts = append(opts, sqrecord.WithLogger(core.NewSlogLogger(slog.New(handler))))
	}

	db, err := sqrecord.Open(sqrecord.DefaultConfig(dbPath), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// withTable opens the database, reflects name and runs fn
func withTable(cmd *cobra.Command, name string, fn func(context.Context, *sqrecord.Table) error) error {
	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	ctx := cmd.Context()
	table, err := db.Table(ctx, name)
	if err != nil {
		return err
	}
	return fn(ctx, table)
}

func recordsFlag(cmd *cobra.Command) ([]core.Record, error) {
	s, _ := cmd.Flags().GetString("records")
	if s == "" {
		return nil, fmt.Errorf("--records is required")
	}
	var records []core.Record
	if err := json.Unmarshal([]byte(s), &records); err != nil {
		return nil, fmt.Errorf("invalid records JSON: %w", err)
	}
	return records, nil
}

func parseValues(s string) ([]any, error) {
	if s == "" {
		return nil, fmt.Errorf("--values is required with --column")
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var raw []any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("invalid values JSON: %w", err)
	}
	values := make([]any, len(raw))
	for i, v := range raw {
		dv, err := encoding.DecodeJSONValue(v)
		if err != nil {
			return nil, fmt.Errorf("value %d: %w", i, err)
		}
		values[i] = dv
	}
	return values, nil
}

// parseSlice reads "start:stop" where either bound may be empty
func parseSlice(s string) (core.Slice, error) {
	startStr, stopStr, ok := strings.Cut(s, ":")
	if !ok {
		return core.Slice{}, fmt.Errorf("invalid slice %q, want start:stop", s)
	}

	var slice core.Slice
	if startStr != "" {
		start, err := strconv.Atoi(startStr)
		if err != nil {
			return core.Slice{}, fmt.Errorf("invalid slice start: %w", err)
		}
		slice.Start = &start
	}
	if stopStr != "" {
		stop, err := strconv.Atoi(stopStr)
		if err != nil {
			return core.Slice{}, fmt.Errorf("invalid slice stop: %w", err)
		}
		slice.Stop = &stop
	}
	return slice, nil
}

// fileFormat takes --format and --compress when given and the file extension otherwise
func fileFormat(cmd *cobra.Command, path string) (core.DumpFormat, core.Compression, error) {
	format, compression := core.DetectFile(path)

	if s, _ := cmd.Flags().GetString("format"); s != "" {
		f, err := core.ParseDumpFormat(s)
		if err != nil {
			return "", "", err
		}
		format = f
	}
	if s, _ := cmd.Flags().GetString("compress"); s != "" {
		c, err := core.ParseCompression(s)
		if err != nil {
			return "", "", err
		}
		compression = c
	}
	return format, compression, nil
}

func printRecords(records []core.Record) error {
	for _, r := range records {
		data, err := json.Marshal(r)
		if err != nil {
			return err
		}
		fmt.Println(string(data))
	}
	return nil
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "records.db", "Database file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	statsCmd.Flags().Bool("json", false, "Output as JSON")

	selectCmd.Flags().Int("index", 0, "Row index, negative counts from the end")
	selectCmd.Flags().String("slice", "", "Row range start:stop, either bound may be empty or negative")
	selectCmd.Flags().Int("chunk", 0, "Stream rows in chunks of this size")
	selectCmd.Flags().StringSlice("columns", nil, "Columns to select")
	selectCmd.MarkFlagsMutuallyExclusive("index", "slice", "chunk")

	insertCmd.Flags().String("records", "", "Records as a JSON array of objects")
	insertCmd.MarkFlagRequired("records")

	updateCmd.Flags().String("records", "", "Records as a JSON array of objects")
	updateCmd.Flags().StringSlice("match", nil, "Columns identifying the rows to update")
	updateCmd.MarkFlagRequired("records")

	deleteCmd.Flags().String("column", "", "Column to match against --values")
	deleteCmd.Flags().String("values", "", "Values as a JSON array")
	deleteCmd.Flags().String("records", "", "Records as a JSON array of objects")
	deleteCmd.Flags().Bool("all", false, "Delete every row")
	deleteCmd.MarkFlagsMutuallyExclusive("all", "column", "records")

	dumpCmd.Flags().String("format", "", "json, jsonl or csv (default from the file extension)")
	dumpCmd.Flags().String("compress", "", "none, gzip, zstd or lz4 (default from the file extension)")
	dumpCmd.Flags().Int("chunk", 1000, "Rows read per query")

	loadCmd.Flags().String("format", "", "json, jsonl or csv (default from the file extension)")
	loadCmd.Flags().String("compress", "", "none, gzip, zstd or lz4 (default from the file extension)")
	loadCmd.Flags().Int("batch", 500, "Records inserted per statement batch")

	rootCmd.AddCommand(
		tablesCmd,
		describeCmd,
		statsCmd,
		selectCmd,
		insertCmd,
		updateCmd,
		setCmd,
		deleteCmd,
		dumpCmd,
		loadCmd,
	)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Fatal(err)
	}
}
