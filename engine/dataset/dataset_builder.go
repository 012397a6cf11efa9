package dataset

// CSVReaderBuilderOption configures a CSV Reader.
type CSVReaderBuilderOption func(*csvReader)

// WithHeader sets whether the first record names the columns. Default true.
// Without a header, columns are named "Column0", "Column1", ...
//
// Parameters:
//   - header: true when the first record is a header row
//
// Returns:
//   - CSVReaderBuilderOption: a function that applies the header setting
func WithHeader(header bool) CSVReaderBuilderOption {
	return func(r *csvReader) {
		r.header = header
	}
}

// WithDelimiter fixes the field delimiter. Zero, the default, detects it from the first lines.
//
// Parameters:
//   - delimiter: the separator rune, or 0 to auto-detect
//
// Returns:
//   - CSVReaderBuilderOption: a function that applies the delimiter
func WithDelimiter(delimiter rune) CSVReaderBuilderOption {
	return func(r *csvReader) {
		r.delimiter = delimiter
	}
}

// JSONReaderBuilderOption configures a JSON Reader.
type JSONReaderBuilderOption func(*jsonReader)

// WithArrayHeader sets whether the first element of an array-of-arrays document names the columns. Default true.
//
// Parameters:
//   - header: true when the first inner array is a header row
//
// Returns:
//   - JSONReaderBuilderOption: a function that applies the header setting
func WithArrayHeader(header bool) JSONReaderBuilderOption {
	return func(r *jsonReader) {
		r.header = header
	}
}

// WithKeySeparator sets the separator joining nested object keys into flat column names. Default ".".
//
// Parameters:
//   - sep: the separator string
//
// Returns:
//   - JSONReaderBuilderOption: a function that applies the separator
func WithKeySeparator(sep string) JSONReaderBuilderOption {
	return func(r *jsonReader) {
		r.separator = sep
	}
}
