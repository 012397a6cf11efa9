package dataset

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

type jsonKind int

const (
	jsonScalar jsonKind = iota
	jsonObject
	jsonArray
)

// jsonValue is a decoded JSON value that keeps object keys in document order.
type jsonValue struct {
	kind   jsonKind
	scalar string
	keys   []string
	fields map[string]*jsonValue
	items  []*jsonValue
}

type jsonReader struct {
	header    bool
	separator string
}

var _ Reader = &jsonReader{}

// NewJSONReader creates a Reader for JSON documents. Accepted shapes:
//   - an array of objects: columns are the keys in first-seen order, nested objects flattened
//   - an array of arrays: the first inner array is the header unless disabled
//   - an object: arrays of equal position spread across rows, everything else repeats on every row
//
// Parameters:
//   - options: variadic list of JSONReaderBuilderOption functions
//
// Returns:
//   - Reader: the JSON reader
func NewJSONReader(options ...JSONReaderBuilderOption) Reader {
	r := &jsonReader{header: true, separator: "."}
	for _, opt := range options {
		opt(r)
	}
	return r
}

func (j *jsonReader) Read(r io.Reader) (*Table, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	root, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("dataset: parse json: %w", err)
	}

	switch root.kind {
	case jsonArray:
		return j.fromArray(root.items)
	case jsonObject:
		return j.fromObject(root)
	default:
		return nil, errors.New("dataset: json root must be an array or object")
	}
}

func (j *jsonReader) fromArray(items []*jsonValue) (*Table, error) {
	if len(items) == 0 {
		return nil, errors.New("dataset: json array is empty")
	}

	if items[0].kind == jsonArray {
		t := &Table{}
		start := 0
		if j.header {
			for _, h := range items[0].items {
				t.Columns = append(t.Columns, h.text())
			}
			start = 1
		} else {
			t.Columns = defaultColumns(len(items[0].items))
		}
		for _, item := range items[start:] {
			if item.kind != jsonArray {
				return nil, errors.New("dataset: json rows mix arrays and non-arrays")
			}
			row := make([]string, len(item.items))
			for i, cell := range item.items {
				row[i] = cell.text()
			}
			t.Rows = append(t.Rows, fit(row, len(t.Columns)))
		}
		return t, nil
	}

	rows := make([]map[string]string, 0, len(items))
	cols := newColumnSet()
	for _, item := range items {
		if item.kind != jsonObject {
			return nil, errors.New("dataset: json rows mix objects and non-objects")
		}
		row := make(map[string]string)
		j.flatten(item, "", row, cols)
		rows = append(rows, row)
	}
	return cols.table(rows), nil
}

func (j *jsonReader) fromObject(obj *jsonValue) (*Table, error) {
	cols := newColumnSet()
	base := make(map[string]string)
	var spread [][]map[string]string

	for _, key := range obj.keys {
		v := obj.fields[key]
		if v.kind != jsonArray {
			j.flatten(v, key, base, cols)
			continue
		}
		var col []map[string]string
		for _, item := range v.items {
			cell := make(map[string]string)
			j.flatten(item, key, cell, cols)
			col = append(col, cell)
		}
		spread = append(spread, col)
	}

	n := 1
	for _, col := range spread {
		n = max(n, len(col))
	}

	rows := make([]map[string]string, n)
	for i := range rows {
		rows[i] = make(map[string]string, len(base))
		for k, v := range base {
			rows[i][k] = v
		}
		for _, col := range spread {
			if i < len(col) {
				for k, v := range col[i] {
					rows[i][k] = v
				}
			}
		}
	}
	if len(cols.order) == 0 {
		return nil, errors.New("dataset: json object is empty")
	}
	return cols.table(rows), nil
}

// flatten writes v into out. Objects recurse with joined keys; arrays nested below the row level
// are kept as compact JSON text.
func (j *jsonReader) flatten(v *jsonValue, prefix string, out map[string]string, cols *columnSet) {
	if v.kind != jsonObject {
		out[prefix] = v.text()
		cols.add(prefix)
		return
	}
	for _, key := range v.keys {
		name := key
		if prefix != "" {
			name = prefix + j.separator + key
		}
		j.flatten(v.fields[key], name, out, cols)
	}
}

// columnSet records column names in first-seen order.
type columnSet struct {
	order []string
	seen  map[string]bool
}

func newColumnSet() *columnSet {
	return &columnSet{seen: make(map[string]bool)}
}

func (c *columnSet) add(name string) {
	if !c.seen[name] {
		c.seen[name] = true
		c.order = append(c.order, name)
	}
}

func (c *columnSet) table(rows []map[string]string) *Table {
	t := &Table{Columns: c.order, Rows: make([][]string, len(rows))}
	for i, row := range rows {
		cells := make([]string, len(c.order))
		for k, name := range c.order {
			cells[k] = row[name]
		}
		t.Rows[i] = cells
	}
	return t
}

func decodeValue(dec *json.Decoder) (*jsonValue, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			v := &jsonValue{kind: jsonObject, fields: make(map[string]*jsonValue)}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("unexpected object key %v", keyTok)
				}
				child, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				if _, dup := v.fields[key]; !dup {
					v.keys = append(v.keys, key)
				}
				v.fields[key] = child
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return v, nil
		case '[':
			v := &jsonValue{kind: jsonArray}
			for dec.More() {
				child, err := decodeValue(dec)
				if err != nil {
					return nil, err
				}
				v.items = append(v.items, child)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return v, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %v", t)
		}
	case json.Number:
		return &jsonValue{scalar: t.String()}, nil
	case string:
		return &jsonValue{scalar: t}, nil
	case bool:
		return &jsonValue{scalar: strconv.FormatBool(t)}, nil
	case nil:
		return &jsonValue{}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}

// text renders a value as a table cell. Containers render as compact JSON.
func (v *jsonValue) text() string {
	if v.kind == jsonScalar {
		return v.scalar
	}
	var b bytes.Buffer
	v.encode(&b)
	return b.String()
}

func (v *jsonValue) encode(b *bytes.Buffer) {
	switch v.kind {
	case jsonObject:
		b.WriteByte('{')
		for i, k := range v.keys {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteString(strconv.Quote(k))
			b.WriteByte(':')
			v.fields[k].encode(b)
		}
		b.WriteByte('}')
	case jsonArray:
		b.WriteByte('[')
		for i, item := range v.items {
			if i > 0 {
				b.WriteByte(',')
			}
			item.encode(b)
		}
		b.WriteByte(']')
	default:
		if _, err := strconv.ParseFloat(v.scalar, 64); err == nil || v.scalar == "true" || v.scalar == "false" {
			b.WriteString(v.scalar)
			return
		}
		b.WriteString(strconv.Quote(strings.ToValidUTF8(v.scalar, "")))
	}
}
