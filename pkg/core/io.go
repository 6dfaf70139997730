package core

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/liliang-cn/sqrecord/internal/encoding"
)

// DumpFormat represents the format for table export
type DumpFormat string

const (
	// DumpFormatJSON exports a single JSON document with a records array
	DumpFormatJSON DumpFormat = "json"
	// DumpFormatJSONL exports one JSON object per line
	DumpFormatJSONL DumpFormat = "jsonl"
	// DumpFormatCSV exports a header row followed by one row per record
	DumpFormatCSV DumpFormat = "csv"
)

// Compression wraps the dump stream
type Compression string

const (
	CompressionNone Compression = "none"
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
	CompressionLZ4  Compression = "lz4"
)

// ParseDumpFormat validates a format name
func ParseDumpFormat(s string) (DumpFormat, error) {
	switch f := DumpFormat(strings.ToLower(s)); f {
	case DumpFormatJSON, DumpFormatJSONL, DumpFormatCSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unsupported format %q", ErrInvalidConfig, s)
	}
}

// ParseCompression validates a compression name; "" means none
func ParseCompression(s string) (Compression, error) {
	switch c := Compression(strings.ToLower(s)); c {
	case "", CompressionNone:
		return CompressionNone, nil
	case CompressionGzip, CompressionZstd, CompressionLZ4:
		return c, nil
	default:
		return "", fmt.Errorf("%w: unsupported compression %q", ErrInvalidConfig, s)
	}
}

// DetectFile guesses format and compression from a file name such as
// "users.jsonl.zst". Unknown extensions yield JSONL without compression.
func DetectFile(path string) (DumpFormat, Compression) {
	name := strings.ToLower(filepath.Base(path))
	compression := CompressionNone
	switch {
	case strings.HasSuffix(name, ".gz"):
		compression = CompressionGzip
	case strings.HasSuffix(name, ".zst"):
		compression = CompressionZstd
	case strings.HasSuffix(name, ".lz4"):
		compression = CompressionLZ4
	}
	if compression != CompressionNone {
		name = strings.TrimSuffix(name, filepath.Ext(name))
	}

	switch filepath.Ext(name) {
	case ".json":
		return DumpFormatJSON, compression
	case ".csv":
		return DumpFormatCSV, compression
	default:
		return DumpFormatJSONL, compression
	}
}

// DumpOptions defines options for table export
type DumpOptions struct {
	Format      DumpFormat  // Export format
	Compression Compression // Stream compression
	ChunkSize   int         // Rows read per query (default: 1000)
	Columns     []string    // Exported columns, all when empty
}

// DefaultDumpOptions returns default dump options
func DefaultDumpOptions() DumpOptions {
	return DumpOptions{
		Format:      DumpFormatJSONL,
		Compression: CompressionNone,
		ChunkSize:   1000,
	}
}

// DumpStats provides statistics about the export operation
type DumpStats struct {
	Rows         int   `json:"rows"`
	BytesWritten int64 `json:"bytesWritten"`
}

// LoadOptions defines options for table import
type LoadOptions struct {
	Format      DumpFormat  // Import format
	Compression Compression // Stream compression
	BatchSize   int         // Records per InsertRecords call (default: 500)
	Mutation    []MutationOption
}

// DefaultLoadOptions returns default load options
func DefaultLoadOptions() LoadOptions {
	return LoadOptions{
		Format:      DumpFormatJSONL,
		Compression: CompressionNone,
		BatchSize:   500,
	}
}

// LoadStats provides statistics about the import operation
type LoadStats struct {
	Rows    int `json:"rows"`
	Batches int `json:"batches"`
}

// tableDump is the DumpFormatJSON document
type tableDump struct {
	Table   string   `json:"table"`
	Columns []string `json:"columns"`
	Records []Record `json:"records"`
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func compressWriter(w io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case "", CompressionNone:
		return nopWriteCloser{w}, nil
	case CompressionGzip:
		return gzip.NewWriter(w), nil
	case CompressionZstd:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case CompressionLZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression %q", ErrInvalidConfig, c)
	}
}

func decompressReader(r io.Reader, c Compression) (io.ReadCloser, error) {
	switch c {
	case "", CompressionNone:
		return io.NopCloser(r), nil
	case CompressionGzip:
		return gzip.NewReader(r)
	case CompressionZstd:
		dec, err := zstd.NewReader(r)
		if err != nil {
			return nil, err
		}
		return zstdReadCloser{dec}, nil
	case CompressionLZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, fmt.Errorf("%w: unsupported compression %q", ErrInvalidConfig, c)
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

type zstdReadCloser struct{ *zstd.Decoder }

func (z zstdReadCloser) Close() error {
	z.Decoder.Close()
	return nil
}

// Dump streams every row of a table to w in the requested format.
// Rows are read in chunks through q, so pass a Session for a consistent snapshot.
func Dump(ctx context.Context, q Executor, table TableHandle, w io.Writer, opts DumpOptions) (*DumpStats, error) {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultDumpOptions().ChunkSize
	}
	if opts.Format == "" {
		opts.Format = DumpFormatJSONL
	}
	if _, err := ParseDumpFormat(string(opts.Format)); err != nil {
		return nil, wrapError("dump", err)
	}

	columns, err := projection(table, []SelectOption{WithColumns(opts.Columns...)})
	if err != nil {
		return nil, wrapError("dump", err)
	}
	chunks, err := SelectChunks(ctx, q, table, opts.ChunkSize, WithColumns(columns...))
	if err != nil {
		return nil, wrapError("dump", err)
	}

	counter := &countingWriter{w: w}
	cw, err := compressWriter(counter, opts.Compression)
	if err != nil {
		return nil, wrapError("dump", err)
	}
	bw := bufio.NewWriter(cw)

	stats := &DumpStats{}
	switch opts.Format {
	case DumpFormatJSON:
		err = dumpJSON(bw, table, columns, chunks, stats)
	case DumpFormatJSONL:
		err = dumpJSONL(bw, chunks, stats)
	case DumpFormatCSV:
		err = dumpCSV(bw, columns, chunks, stats)
	}
	if err == nil {
		err = bw.Flush()
	}
	if cerr := cw.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to finish compressed stream: %w", cerr)
	}
	if err != nil {
		return nil, wrapError("dump", err)
	}

	stats.BytesWritten = counter.n
	return stats, nil
}

// dumpJSON writes the document by hand so rows are never held in memory at once
func dumpJSON(w io.Writer, table TableHandle, columns []string, chunks *Chunks[Record], stats *DumpStats) error {
	name, _ := json.Marshal(table.Name())
	cols, _ := json.Marshal(columns)
	if _, err := fmt.Fprintf(w, `{"table":%s,"columns":%s,"records":[`, name, cols); err != nil {
		return err
	}
	for chunks.Next() {
		for _, r := range chunks.Chunk() {
			data, err := json.Marshal(r)
			if err != nil {
				return fmt.Errorf("failed to encode record %d: %w", stats.Rows, err)
			}
			if stats.Rows > 0 {
				if _, err := io.WriteString(w, ","); err != nil {
					return err
				}
			}
			if _, err := w.Write(data); err != nil {
				return err
			}
			stats.Rows++
		}
	}
	if err := chunks.Err(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "]}\n")
	return err
}

func dumpJSONL(w io.Writer, chunks *Chunks[Record], stats *DumpStats) error {
	encoder := json.NewEncoder(w)
	for chunks.Next() {
		for _, r := range chunks.Chunk() {
			if err := encoder.Encode(r); err != nil {
				return fmt.Errorf("failed to encode record %d: %w", stats.Rows, err)
			}
			stats.Rows++
		}
	}
	return chunks.Err()
}

// dumpCSV writes NULL as an empty field; an empty string reads back as NULL
func dumpCSV(w io.Writer, columns []string, chunks *Chunks[Record], stats *DumpStats) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(columns); err != nil {
		return err
	}

	row := make([]string, len(columns))
	for chunks.Next() {
		for _, r := range chunks.Chunk() {
			for i, c := range columns {
				v, _ := r.Get(c)
				row[i] = encoding.FormatValue(v)
			}
			if err := writer.Write(row); err != nil {
				return err
			}
			stats.Rows++
		}
	}
	if err := chunks.Err(); err != nil {
		return err
	}
	writer.Flush()
	return writer.Error()
}

// Load reads records from r and inserts them in batches through exec.
// Nothing is committed; run it inside WithSession for an all-or-nothing import.
func Load(ctx context.Context, exec Executor, table TableHandle, r io.Reader, opts LoadOptions) (*LoadStats, error) {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultLoadOptions().BatchSize
	}
	if opts.Format == "" {
		opts.Format = DumpFormatJSONL
	}
	if _, err := ParseDumpFormat(string(opts.Format)); err != nil {
		return nil, wrapError("load", err)
	}

	rc, err := decompressReader(r, opts.Compression)
	if err != nil {
		return nil, wrapError("load", fmt.Errorf("failed to open compressed stream: %w", err))
	}
	defer func() { _ = rc.Close() }()

	stats := &LoadStats{}
	batch := make([]Record, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := InsertRecords(ctx, exec, table, batch, opts.Mutation...); err != nil {
			return fmt.Errorf("batch starting at record %d: %w", stats.Rows, err)
		}
		stats.Rows += len(batch)
		stats.Batches++
		batch = batch[:0]
		return nil
	}
	emit := func(rec Record) error {
		batch = append(batch, rec)
		if len(batch) >= opts.BatchSize {
			return flush()
		}
		return nil
	}

	switch opts.Format {
	case DumpFormatJSON:
		err = loadJSON(rc, emit)
	case DumpFormatJSONL:
		err = loadJSONL(rc, emit)
	case DumpFormatCSV:
		err = loadCSV(rc, emit)
	}
	if err == nil {
		err = flush()
	}
	if err != nil {
		return nil, wrapError("load", err)
	}
	return stats, nil
}

func loadJSON(r io.Reader, emit func(Record) error) error {
	var doc tableDump
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("failed to decode JSON: %w", err)
	}
	for _, rec := range doc.Records {
		if err := emit(rec); err != nil {
			return err
		}
	}
	return nil
}

func loadJSONL(r io.Reader, emit func(Record) error) error {
	decoder := json.NewDecoder(r)
	for line := 1; ; line++ {
		var rec Record
		if err := decoder.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("failed to decode record %d: %w", line, err)
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}

func loadCSV(r io.Reader, emit func(Record) error) error {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	reader.FieldsPerRecord = len(header)

	for line := 2; ; line++ {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read line %d: %w", line, err)
		}
		var rec Record
		for i, c := range header {
			rec.set(c, encoding.ParseValue(fields[i]))
		}
		if err := emit(rec); err != nil {
			return err
		}
	}
}

// DumpToFile exports a table to a file, removing the file if the export fails
func DumpToFile(ctx context.Context, q Executor, table TableHandle, path string, opts DumpOptions) (*DumpStats, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, wrapError("dump_to_file", fmt.Errorf("failed to create file: %w", err))
	}

	stats, err := Dump(ctx, q, table, file, opts)
	if cerr := file.Close(); err == nil && cerr != nil {
		err = wrapError("dump_to_file", cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return nil, err
	}
	return stats, nil
}

// LoadFromFile imports a file into a table
func LoadFromFile(ctx context.Context, exec Executor, table TableHandle, path string, opts LoadOptions) (*LoadStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, wrapError("load_from_file", fmt.Errorf("failed to open file: %w", err))
	}
	defer func() { _ = file.Close() }()

	return Load(ctx, exec, table, file, opts)
}
