package dataset

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"

	"github.com/hailam/chesstrain/internal/oracle"
)

// Each log record is the byte 'N', the key, a comma, then win and loss as
// little-endian float64 and eval as a little-endian int32.
const (
	recordMarker = 'N'
	keyEnd       = ','
	payloadSize  = 8 + 8 + 4
)

// errTruncated marks a record cut off by the end of the log.
var errTruncated = errors.New("truncated record")

type payload struct {
	Win  float64
	Loss float64
	Eval int32
}

type countingReader struct {
	r *bufio.Reader
	n int64
}

func (cr *countingReader) ReadByte() (byte, error) {
	b, err := cr.r.ReadByte()
	if err == nil {
		cr.n++
	}
	return b, err
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}

// ReadFrom adds every record of a log to the cache. Bytes that do not start
// a record are skipped one at a time, a truncated final record is dropped,
// and a key that appears again replaces the earlier label.
func (c *Cache) ReadFrom(r io.Reader) (int64, error) {
	cr := &countingReader{r: bufio.NewReaderSize(r, 1<<16)}
	for {
		b, err := cr.ReadByte()
		if err == io.EOF {
			return cr.n, nil
		}
		if err != nil {
			return cr.n, err
		}
		if b != recordMarker {
			c.logger.Printf("corrupt N at byte %d", cr.n-1)
			continue
		}

		key, label, err := readRecord(cr)
		if errors.Is(err, errTruncated) {
			c.logger.Printf("dataset: dropping %v at byte %d", err, cr.n)
			return cr.n, nil
		}
		if err != nil {
			return cr.n, err
		}
		c.replace(key, label)
	}
}

func readRecord(cr *countingReader) (string, oracle.Label, error) {
	key, err := cr.r.ReadString(keyEnd)
	cr.n += int64(len(key))
	if err == io.EOF {
		return "", oracle.Label{}, errTruncated
	}
	if err != nil {
		return "", oracle.Label{}, err
	}

	var p payload
	if err := binary.Read(cr, binary.LittleEndian, &p); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return "", oracle.Label{}, errTruncated
		}
		return "", oracle.Label{}, err
	}
	return key[:len(key)-1], oracle.Label{Win: p.Win, Loss: p.Loss, Eval: p.Eval}, nil
}

// WriteTo writes the whole cache as a log in sorted key order.
func (c *Cache) WriteTo(w io.Writer) (int64, error) {
	bw := bufio.NewWriterSize(w, 1<<16)
	var n int64
	var buf [payloadSize]byte
	for _, key := range c.Keys() {
		l := c.entries[key].label
		bw.WriteByte(recordMarker)
		bw.WriteString(key)
		bw.WriteByte(keyEnd)

		binary.LittleEndian.PutUint64(buf[0:], math.Float64bits(l.Win))
		binary.LittleEndian.PutUint64(buf[8:], math.Float64bits(l.Loss))
		binary.LittleEndian.PutUint32(buf[16:], uint32(l.Eval))
		if _, err := bw.Write(buf[:]); err != nil {
			return n, err
		}
		n += int64(len(key)) + 2 + payloadSize
	}
	return n, bw.Flush()
}

// Load reads the log at path into the cache. A missing file leaves the cache
// empty.
func (c *Cache) Load(path string) error {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		c.logger.Printf("dataset %s not found, starting empty", path)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	n, err := c.ReadFrom(f)
	if err != nil {
		return fmt.Errorf("failed to read dataset %s: %w", path, err)
	}
	c.logger.Printf("LOAD %s: %s positions (%s)", path, humanize.Comma(int64(c.Len())), humanize.Bytes(uint64(n)))
	return nil
}

// Save rewrites the log at path with the full cache, through a temporary
// file so an interrupted save leaves the previous log intact.
func (c *Cache) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create dataset file: %w", err)
	}
	n, err := c.WriteTo(f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write dataset: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	c.logger.Printf("SAVE %s: %s positions (%s)", path, humanize.Comma(int64(c.Len())), humanize.Bytes(uint64(n)))
	return nil
}
