package dataset

import (
	"fmt"
	"strings"
)

// Operation is one api endpoint definition pulled out of a spec document.
// Immutable once extracted.
type Operation struct {
	Method      string
	Path        string
	Summary     string
	Tags        []string
	Description string
}

// Linearize flattens an operation into the fixed prompt template shared by
// both model pipelines. The template must stay stable across experiments:
// trained checkpoints only understand inputs in this exact shape.
func (op Operation) Linearize() string {
	return fmt.Sprintf("Method: %s | Path: %s | Summary: %s | Tags: %s",
		strings.ToUpper(op.Method), op.Path, op.Summary, strings.Join(op.Tags, ", "))
}

func linearizeExample(name, summary, value string) string {
	if summary != "" {
		return fmt.Sprintf("Example: %s | Summary: %s | Data: %s", name, summary, value)
	}
	return fmt.Sprintf("Example: %s | Data: %s", name, value)
}

func linearizeSchema(name string, fields []string) string {
	return fmt.Sprintf("Schema: %s | Fields: %s", name, strings.Join(fields, ", "))
}
