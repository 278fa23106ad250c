package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// SourceRow is one parsed file row keyed by header. RowNumber is the 1-based
// data row index in the file, or the deletion log position during a replay.
type SourceRow struct {
	RowNumber int
	Values    map[string]any
}

func (r SourceRow) MarshalJSON() ([]byte, error) {
	if r.Values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Values)
}

// RowFailure records one row that did not make it into the target table.
type RowFailure struct {
	RowNumber    int            `json:"row_number"`
	RowData      map[string]any `json:"row_data"`
	ErrorMessage string         `json:"error_message"`
}

// RowSnapshot is a full-row copy of a target record, keyed by target column.
type RowSnapshot map[string]any

// Marshal encodes the snapshot for a JSON column.
func (s RowSnapshot) Marshal() ([]byte, error) {
	if s == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]any(s))
}

// UnmarshalRowSnapshot decodes a JSON column. Whole numbers come back as int64
// and other numbers as float64 so replays bind the same Go types the drivers return.
func UnmarshalRowSnapshot(data []byte) (RowSnapshot, error) {
	values, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode row snapshot: %w", err)
	}
	return RowSnapshot(values), nil
}

// MarshalRowData encodes a failed row payload.
func MarshalRowData(values map[string]any) ([]byte, error) {
	if values == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(values)
}

func UnmarshalRowData(data []byte) (map[string]any, error) {
	values, err := decodeObject(data)
	if err != nil {
		return nil, fmt.Errorf("decode row data: %w", err)
	}
	return values, nil
}

// ErrorDetails is the structured error payload of an import log.
type ErrorDetails struct {
	Message        string       `json:"message"`
	SampleErrors   []RowFailure `json:"sample_errors,omitempty"`
	MissingHeaders []string     `json:"missing_headers,omitempty"`
}

func (d *ErrorDetails) Marshal() ([]byte, error) {
	if d == nil {
		return nil, nil
	}
	return json.Marshal(d)
}

func UnmarshalErrorDetails(data []byte) (*ErrorDetails, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil, nil
	}
	var d ErrorDetails
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("decode error details: %w", err)
	}
	return &d, nil
}

func decodeObject(data []byte) (map[string]any, error) {
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return map[string]any{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var values map[string]any
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	for k, v := range values {
		if n, ok := v.(json.Number); ok {
			values[k] = numberValue(n)
		}
	}
	return values, nil
}

func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
