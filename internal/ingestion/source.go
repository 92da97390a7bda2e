package ingestion

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat is returned when a delivered file is not supported.
var ErrUnsupportedFormat = errors.New("unsupported file format")

var byteOrderMark = []byte{0xEF, 0xBB, 0xBF}

// rowSource streams a tabular file one row at a time so a worker can stop
// reading as soon as it leaves its assigned range. Next returns io.EOF at
// end of data.
type rowSource interface {
	Next() ([]string, error)
	Close() error
}

func openRowSource(path string) (rowSource, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".csv":
		return openCSVSource(path)
	case ".xlsx":
		return openExcelSource(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ext)
	}
}

type csvSource struct {
	file   *os.File
	reader *csv.Reader
}

func openCSVSource(path string) (rowSource, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open csv: %w", err)
	}

	buffered := bufio.NewReader(file)
	if prefix, peekErr := buffered.Peek(len(byteOrderMark)); peekErr == nil && bytes.Equal(prefix, byteOrderMark) {
		_, _ = buffered.Discard(len(byteOrderMark))
	}

	reader := csv.NewReader(buffered)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	return &csvSource{file: file, reader: reader}, nil
}

func (s *csvSource) Next() ([]string, error) {
	return s.reader.Read()
}

func (s *csvSource) Close() error {
	return s.file.Close()
}

type excelSource struct {
	file *excelize.File
	rows *excelize.Rows
}

func openExcelSource(path string) (rowSource, error) {
	file, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}

	sheets := file.GetSheetList()
	if len(sheets) == 0 {
		_ = file.Close()
		return nil, errors.New("excel file has no sheets")
	}

	rows, err := file.Rows(sheets[0])
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("failed to read rows from xlsx: %w", err)
	}

	return &excelSource{file: file, rows: rows}, nil
}

func (s *excelSource) Next() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, fmt.Errorf("failed to advance xlsx row: %w", err)
		}
		return nil, io.EOF
	}
	return s.rows.Columns()
}

func (s *excelSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
