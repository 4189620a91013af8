// Package bank loads the question bank and serves it read-only.
package bank

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/pavelanni/questionbot/internal/model"
)

// Column names expected in the source header, after lower-casing.
const (
	colYear       = "year"
	colSubject    = "sub"
	colExamType   = "examtype"
	colType       = "type"
	colDifficulty = "difficulty"
	colQuestion   = "question"
)

var requiredColumns = []string{colYear, colSubject, colExamType, colType, colDifficulty, colQuestion}

// Bank is an immutable, ordered collection of question records.
type Bank struct {
	records  []model.QuestionRecord
	checksum string
	source   string
}

// Empty returns a bank with no records. Used when the source cannot be loaded.
func Empty() *Bank {
	return &Bank{}
}

// New builds a bank from records already in memory. The slice is copied.
func New(records []model.QuestionRecord) *Bank {
	rs := make([]model.QuestionRecord, len(records))
	copy(rs, records)
	return &Bank{records: rs}
}

// LoadFile reads and parses the CSV file at path.
func LoadFile(path string) (*Bank, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", model.ErrDataUnavailable, path, err)
	}
	b, err := parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	b.source = path
	return b, nil
}

// Load parses CSV from r.
func Load(r io.Reader) (*Bank, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: read: %v", model.ErrDataUnavailable, err)
	}
	return parse(data)
}

func parse(data []byte) (*Bank, error) {
	sum := sha256.Sum256(data)

	text, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%w: decode: %v", model.ErrDataUnavailable, err)
	}

	rd := csv.NewReader(strings.NewReader(text))
	rd.FieldsPerRecord = -1
	rd.LazyQuotes = true

	header, err := rd.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: no header row", model.ErrDataUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", model.ErrDataUnavailable, err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.ToLower(strings.TrimSpace(name))
		if _, dup := idx[name]; !dup {
			idx[name] = i
		}
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", model.ErrDataUnavailable, col)
		}
	}

	var records []model.QuestionRecord
	for line := 2; ; line++ {
		row, err := rd.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", model.ErrDataUnavailable, line, err)
		}
		field := func(col string) string {
			i := idx[col]
			if i >= len(row) {
				return ""
			}
			return row[i]
		}
		records = append(records, model.QuestionRecord{
			Year:         NormalizeYear(field(colYear)),
			Subject:      field(colSubject),
			ExamType:     field(colExamType),
			QuestionType: field(colType),
			Difficulty:   field(colDifficulty),
			Text:         field(colQuestion),
		})
	}

	return &Bank{records: records, checksum: hex.EncodeToString(sum[:])}, nil
}

// decode returns data as a UTF-8 string. Input that is not valid UTF-8 is
// interpreted as ISO-8859-1, which never fails.
func decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if utf8.Valid(data) {
		return string(data), nil
	}
	slog.Debug("question bank is not valid UTF-8, decoding as latin1")
	out, err := charmap.ISO8859_1.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// NormalizeYear trims s and renders integral numbers without a fractional
// part, so "2021", " 2021 " and "2021.0" all compare equal.
func NormalizeYear(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if _, err := strconv.ParseInt(s, 10, 64); err == nil {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f == float64(int64(f)) {
		return strconv.FormatInt(int64(f), 10)
	}
	return s
}

// All returns the records in source order. The returned slice must not be modified.
func (b *Bank) All() []model.QuestionRecord {
	return b.records
}

// Len returns the number of records.
func (b *Bank) Len() int {
	return len(b.records)
}

// Checksum returns the hex sha256 of the source bytes, or "" for banks not
// loaded from a source.
func (b *Bank) Checksum() string {
	return b.checksum
}

// Source returns the file path the bank was loaded from, if any.
func (b *Bank) Source() string {
	return b.source
}
