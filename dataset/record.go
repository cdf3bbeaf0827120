package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
)

const (
	OperationDescription = "operation_description"
	ExampleDescription   = "example_description"
	ExampleSummary       = "example_summary"
	SchemaDescription    = "schema_description"
)

// Record is a single linearized example: a flattened api spec fragment paired
// with the human written description it should produce.
type Record struct {
	SourceFile string `json:"source_file"`
	Type       string `json:"type"`
	InputText  string `json:"input_text"`
	TargetText string `json:"target_text"`
}

// WriteRecords writes records in json-lines format, one record per line.
func WriteRecords(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	for i, record := range records {
		if err := enc.Encode(record); err != nil {
			return fmt.Errorf("error encoding record %d: %w", i, err)
		}
	}
	return nil
}

// ReadRecords reads json-lines records, skipping blank lines.
func ReadRecords(r io.Reader) ([]Record, error) {
	var records []Record

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var record Record
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return nil, fmt.Errorf("error parsing record on line %d: %w", line, err)
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading records: %w", err)
	}

	return records, nil
}

// Dedupe removes records with duplicate input text, keeping the first
// occurrence. Extraction order is deterministic so this is stable.
func Dedupe(records []Record) []Record {
	seen := make(map[string]bool, len(records))
	unique := make([]Record, 0, len(records))
	for _, record := range records {
		if seen[record.InputText] {
			continue
		}
		seen[record.InputText] = true
		unique = append(unique, record)
	}
	return unique
}
