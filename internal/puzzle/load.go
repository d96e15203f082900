package puzzle

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Valid rows have all columns or all but the opening variation.
const minFields = NumFields - 1

// Load reads a corpus file. Files ending in .zst are decompressed on the fly.
func Load(path string, logger *log.Logger) (*Corpus, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open puzzle corpus: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open zstd stream: %w", err)
		}
		defer dec.Close()
		r = dec
	}

	c, err := Read(r, logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	logger.Printf("LOAD %s: %s puzzles", path, humanize.Comma(int64(c.Len())))
	return c, nil
}

// Read parses a corpus from r. Rows with the wrong number of columns are
// logged and skipped, as is a header row.
func Read(r io.Reader, logger *log.Logger) (*Corpus, error) {
	utf8 := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))
	cr := csv.NewReader(utf8)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.ReuseRecord = true

	c := &Corpus{}
	for {
		row, err := cr.Read()
		if err == io.EOF {
			break
		}
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			logger.Printf("Invalid line %d: %v", perr.Line, perr.Err)
			continue
		}
		if err != nil {
			return nil, err
		}

		if len(row) != NumFields && len(row) != minFields {
			line, _ := cr.FieldPos(0)
			logger.Printf("Invalid line %d: %d fields", line, len(row))
			continue
		}
		if row[FieldID] == FieldNames[FieldID] {
			continue
		}

		var p Puzzle
		for i, v := range row {
			p.SetField(i, v)
		}
		c.Puzzles = append(c.Puzzles, p)
	}
	return c, nil
}
