package dataset

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"apidocbench/telemetry"
	"apidocbench/utils/logging"
)

// Keys that can appear alongside http methods under a path item.
var nonMethodKeys = map[string]bool{
	"summary":     true,
	"description": true,
	"parameters":  true,
	"servers":     true,
	"$ref":        true,
}

const maxExampleValueLen = 200

// ExtractStats counts what happened during an extraction pass. Malformed
// files and entries are skipped and counted rather than failing the run.
type ExtractStats struct {
	FilesProcessed int `json:"files_processed"`
	FilesSkipped   int `json:"files_skipped"`
	Extracted      int `json:"extracted"`
	Dropped        int `json:"dropped"`
}

type Extractor struct {
	Stats ExtractStats
}

// ExtractDir walks root for spec documents (.yaml, .yml, .json) in sorted
// order and extracts records from each. Files that fail to parse are skipped
// with a warning; only filesystem errors are fatal.
func (e *Extractor) ExtractDir(root string) ([]Record, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml", ".json":
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("error walking spec directory %v: %w", root, err)
	}
	sort.Strings(files)

	var records []Record
	for _, path := range files {
		extracted, err := e.ExtractFile(path)
		if err != nil {
			slog.Warn("skipping malformed spec file", "path", path, "error", err, "code", logging.DATA_SKIP)
			e.Stats.FilesSkipped++
			telemetry.FilesSkipped.Inc()
			continue
		}
		e.Stats.FilesProcessed++
		records = append(records, extracted...)
	}

	return records, nil
}

// ExtractFile parses a single spec document and returns its records. Specs in
// the wild are frequently malformed, so the document is walked as loosely
// typed maps and anything with an unexpected shape is ignored.
func (e *Extractor) ExtractFile(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading spec file %v: %w", path, err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("error parsing spec file %v: %w", path, err)
	}

	filename := filepath.Base(path)

	records := e.operationRecords(doc, filename)
	records = append(records, e.componentRecords(doc, filename)...)

	return records, nil
}

func (e *Extractor) operationRecords(doc map[string]interface{}, filename string) []Record {
	var records []Record

	paths, ok := asMap(doc["paths"])
	if !ok {
		return nil
	}

	for _, path := range sortedKeys(paths) {
		pathItem, ok := asMap(paths[path])
		if !ok {
			continue
		}

		for _, method := range sortedKeys(pathItem) {
			if nonMethodKeys[method] {
				continue
			}
			content, ok := asMap(pathItem[method])
			if !ok {
				continue
			}

			op := Operation{
				Method:      method,
				Path:        path,
				Summary:     asString(content["summary"]),
				Tags:        asStringList(content["tags"]),
				Description: CleanText(asString(content["description"])),
			}

			// Short descriptions like "Returns 200 OK" carry no signal
			// for the generation task.
			if op.Description == "" || wordCount(op.Description) <= 5 {
				e.Stats.Dropped++
				telemetry.RecordsDropped.Inc()
				continue
			}

			records = append(records, e.keep(Record{
				SourceFile: filename,
				Type:       OperationDescription,
				InputText:  op.Linearize(),
				TargetText: op.Description,
			}))
		}
	}

	return records
}

func (e *Extractor) componentRecords(doc map[string]interface{}, filename string) []Record {
	components, ok := asMap(doc["components"])
	if !ok {
		return nil
	}

	var records []Record

	if examples, ok := asMap(components["examples"]); ok {
		for _, name := range sortedKeys(examples) {
			content, ok := asMap(examples[name])
			if !ok {
				continue
			}

			summary := asString(content["summary"])
			description := asString(content["description"])
			value := ""
			if raw, exists := content["value"]; exists && raw != nil {
				value = truncate(fmt.Sprintf("%v", raw), maxExampleValueLen)
			}

			if description != "" && summary != "" {
				records = append(records, e.keep(Record{
					SourceFile: filename,
					Type:       ExampleDescription,
					InputText:  linearizeExample(name, summary, value),
					TargetText: CleanText(description),
				}))
			} else if summary != "" {
				records = append(records, e.keep(Record{
					SourceFile: filename,
					Type:       ExampleSummary,
					InputText:  linearizeExample(name, "", value),
					TargetText: CleanText(summary),
				}))
			}
		}
	}

	if schemas, ok := asMap(components["schemas"]); ok {
		for _, name := range sortedKeys(schemas) {
			content, ok := asMap(schemas[name])
			if !ok {
				continue
			}

			description := CleanText(asString(content["description"]))
			if description == "" || wordCount(description) <= 3 {
				continue
			}

			var fields []string
			if props, ok := asMap(content["properties"]); ok {
				fields = sortedKeys(props)
			}

			records = append(records, e.keep(Record{
				SourceFile: filename,
				Type:       SchemaDescription,
				InputText:  linearizeSchema(name, fields),
				TargetText: description,
			}))
		}
	}

	return records
}

func (e *Extractor) keep(record Record) Record {
	e.Stats.Extracted++
	telemetry.RecordsExtracted.WithLabelValues(record.Type).Inc()
	return record
}

func asMap(v interface{}) (map[string]interface{}, bool) {
	m, ok := v.(map[string]interface{})
	return m, ok
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asStringList(v interface{}) []string {
	list, ok := v.([]interface{})
	if !ok {
		return nil
	}
	strs := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			strs = append(strs, s)
		}
	}
	return strs
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
