package eval

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"

	"apidocbench/registry"
	"apidocbench/storage"
)

type reportFile struct {
	RunId   uuid.UUID `json:"run_id"`
	Created time.Time `json:"created"`

	Results []Result `json:"results"`
}

// WriteReport renders the leaderboard under runs/<id>/ as report.json and a
// human readable report.md, and records the report artifact. ROUGE and BLEU
// are reported on a 0 to 100 scale, semantic similarity on 0 to 1.
func WriteReport(reg *registry.Registry, store storage.Storage, runId uuid.UUID, results []Result) (string, error) {
	ranked := make([]Result, len(results))
	copy(ranked, results)
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Rouge1 != ranked[j].Rouge1 {
			return ranked[i].Rouge1 > ranked[j].Rouge1
		}
		return ranked[i].Model+"/"+ranked[i].Setting < ranked[j].Model+"/"+ranked[j].Setting
	})

	dir := filepath.Join("runs", runId.String())

	data, err := json.MarshalIndent(reportFile{RunId: runId, Created: time.Now().UTC(), Results: ranked}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("error serializing report: %w", err)
	}
	jsonPath := filepath.Join(dir, "report.json")
	if err := store.Write(jsonPath, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("error writing report: %w", err)
	}

	markdownPath := filepath.Join(dir, "report.md")
	if err := store.Write(markdownPath, bytes.NewReader(renderMarkdown(ranked))); err != nil {
		return "", fmt.Errorf("error writing report: %w", err)
	}

	if _, err := reg.RecordArtifact(runId, registry.ReportArtifact, jsonPath); err != nil {
		return "", err
	}
	return markdownPath, nil
}

func renderMarkdown(ranked []Result) []byte {
	var buf bytes.Buffer

	buf.WriteString("# Generation Quality Leaderboard\n\n")
	buf.WriteString("| Model | Setting | ROUGE-1 | BLEU | BERTScore | Examples |\n")
	buf.WriteString("|-------|---------|---------|------|-----------|----------|\n")
	for _, result := range ranked {
		fmt.Fprintf(&buf, "| %s | %s | %.2f | %.2f | %.4f | %d |\n",
			result.Model, result.Setting,
			result.Rouge1*100, result.Bleu*100, result.BertScore,
			result.Examples)
	}

	return buf.Bytes()
}
