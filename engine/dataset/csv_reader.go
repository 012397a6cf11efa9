package dataset

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"github.com/Carmen-Shannon/oxy-xrvis/engine/logger"
	"go.uber.org/zap"
)

// candidateDelimiters are tried in order when detecting; ties keep the earlier one.
var candidateDelimiters = []rune{',', ';', '\t', '|'}

// detectLines bounds how many leading lines delimiter detection inspects.
const detectLines = 10

type csvReader struct {
	header    bool
	delimiter rune
}

var _ Reader = &csvReader{}

// NewCSVReader creates a Reader for delimiter-separated text.
//
// Parameters:
//   - options: variadic list of CSVReaderBuilderOption functions
//
// Returns:
//   - Reader: the CSV reader
func NewCSVReader(options ...CSVReaderBuilderOption) Reader {
	r := &csvReader{header: true}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (c *csvReader) Read(r io.Reader) (*Table, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("dataset: read csv: %w", err)
	}
	content = bytes.TrimPrefix(content, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, errors.New("dataset: csv is empty")
	}

	delim := c.delimiter
	if delim == 0 {
		delim = DetectDelimiter(content)
	}

	cr := csv.NewReader(bytes.NewReader(content))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("dataset: parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, errors.New("dataset: csv has no records")
	}

	t := &Table{}
	if c.header {
		t.Columns = records[0]
		records = records[1:]
	} else {
		t.Columns = defaultColumns(len(records[0]))
	}

	width := len(t.Columns)
	for i, rec := range records {
		if len(rec) != width {
			logger.L().Debug("csv row width mismatch",
				zap.Int("row", i),
				zap.Int("cells", len(rec)),
				zap.Int("columns", width),
			)
		}
		t.Rows = append(t.Rows, fit(rec, width))
	}
	return t, nil
}

// DetectDelimiter picks the candidate separator (comma, semicolon, tab, pipe) that occurs most often
// outside quotes in the first lines of content. Comma wins when nothing is found.
//
// Parameters:
//   - content: the raw CSV text
//
// Returns:
//   - rune: the detected delimiter
func DetectDelimiter(content []byte) rune {
	counts := make(map[rune]int, len(candidateDelimiters))
	lines := bytes.Split(content, []byte("\n"))
	if len(lines) > detectLines {
		lines = lines[:detectLines]
	}

	for _, line := range lines {
		inQuotes := false
		for _, ch := range string(line) {
			if ch == '"' {
				inQuotes = !inQuotes
				continue
			}
			if inQuotes {
				continue
			}
			for _, d := range candidateDelimiters {
				if ch == d {
					counts[d]++
				}
			}
		}
	}

	best, most := ',', 0
	for _, d := range candidateDelimiters {
		if counts[d] > most {
			best, most = d, counts[d]
		}
	}
	return best
}
