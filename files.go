package rca

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"
)

// All code interacting with files is here

const (
	Sep         = ','
	EOL         = '\n'
	StringDelim = '"'
	DateFormat  = "2006-01-02"
	FloatFormat = "%.4f"
	Header      = true
)

// Files writes the delimited reports: a header line, then one line per record.
type Files struct {
	FieldNames  []string
	EOL         byte
	Sep         byte
	StringDelim byte
	DateFormat  string
	FloatFormat string
	Header      bool

	file     *os.File
	w        *bufio.Writer
	fileName string
}

func NewFiles(fieldNames ...string) *Files {
	return &Files{
		FieldNames:  fieldNames,
		EOL:         byte(EOL),
		Sep:         byte(Sep),
		StringDelim: byte(StringDelim),
		DateFormat:  DateFormat,
		FloatFormat: FloatFormat,
		Header:      Header,
	}
}

func (f *Files) Create(fileName string) error {
	file, e := os.Create(fileName)
	if e != nil {
		return e
	}

	f.file, f.w, f.fileName = file, bufio.NewWriter(file), fileName

	return nil
}

func (f *Files) FileName() string {
	return f.fileName
}

// Close flushes buffered lines and closes the file.
func (f *Files) Close() error {
	if f.file == nil {
		return fmt.Errorf("no open files")
	}

	flushErr := f.w.Flush()
	closeErr := f.file.Close()
	f.file, f.w = nil, nil

	return errors.Join(flushErr, closeErr)
}

func (f *Files) WriteHeader() error {
	if !f.Header {
		return nil
	}

	if f.FieldNames == nil {
		return fmt.Errorf("field names not set in *Files")
	}

	return f.write([]byte(strings.Join(f.FieldNames, string(rune(f.Sep)))))
}

// WriteLine writes one record. The line is formatted in full before anything is written, so a
// bad value leaves the file as it was.
func (f *Files) WriteLine(v []any) error {
	if f.FieldNames != nil && len(v) != len(f.FieldNames) {
		return fmt.Errorf("%d values for %d fields in %s", len(v), len(f.FieldNames), f.fileName)
	}

	var line bytes.Buffer
	for ind, val := range v {
		if ind > 0 {
			line.WriteByte(f.Sep)
		}

		fld, e := f.field(val)
		if e != nil {
			return e
		}

		line.Write(fld)
	}

	return f.write(line.Bytes())
}

func (f *Files) write(line []byte) error {
	if f.w == nil {
		return fmt.Errorf("%s is not open", f.fileName)
	}

	if _, e := f.w.Write(line); e != nil {
		return e
	}

	return f.w.WriteByte(f.EOL)
}

// field formats one value. NaN is written as an empty field; strings are delimited with
// embedded delimiters doubled.
func (f *Files) field(val any) ([]byte, error) {
	switch d := val.(type) {
	case float64:
		if math.IsNaN(d) {
			return nil, nil
		}
		return []byte(fmt.Sprintf(f.FloatFormat, d)), nil
	case int:
		return []byte(strconv.Itoa(d)), nil
	case bool:
		return []byte(strconv.FormatBool(d)), nil
	case time.Time:
		return []byte(d.Format(f.DateFormat)), nil
	case string:
		return f.delimit(d), nil
	case fmt.Stringer:
		return f.delimit(d.String()), nil
	}

	return nil, fmt.Errorf("cannot write %T to %s", val, f.fileName)
}

func (f *Files) delimit(s string) []byte {
	delim := string(rune(f.StringDelim))

	return []byte(delim + strings.ReplaceAll(s, delim, delim+delim) + delim)
}

// ReadCSV reads a file written by Files and returns each record keyed by field name. A missing
// or empty file yields nil, nil.
func ReadCSV(fileName string) ([]map[string]string, error) {
	file, e := os.Open(fileName)
	if errors.Is(e, os.ErrNotExist) {
		return nil, nil
	}
	if e != nil {
		return nil, e
	}
	defer func() { _ = file.Close() }()

	rdr := csv.NewReader(file)
	rdr.FieldsPerRecord = -1

	var header []string
	if header, e = rdr.Read(); e != nil {
		if errors.Is(e, io.EOF) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read header of %s: %w", fileName, e)
	}

	var out []map[string]string
	for {
		rec, err := rdr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", fileName, err)
		}

		row := make(map[string]string, len(header))
		for ind, name := range header {
			if ind < len(rec) {
				row[name] = rec[ind]
			}
		}

		out = append(out, row)
	}

	return out, nil
}
