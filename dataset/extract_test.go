package dataset

import (
	"os"
	"path/filepath"
	"testing"
)

const sampleSpec = `
openapi: 3.0.0
info:
  title: User Service
paths:
  /users/{id}:
    summary: User operations
    get:
      summary: Retrieve a user by ID
      tags: [users, accounts]
      description: >
        Returns the full user object for the given identifier, including
        profile fields and account status.
    delete:
      summary: Delete user
      description: Gone.
  /health:
    get:
      summary: Health check
components:
  examples:
    userExample:
      summary: A typical user
      description: Shows a fully populated user object with all optional fields present.
      value: {"id": 7, "name": "ada"}
    tokenExample:
      summary: An auth token response
      value: {"token": "abc"}
  schemas:
    User:
      description: A registered user of the system with profile data.
      properties:
        id: {type: integer}
        name: {type: string}
`

func writeSpec(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0666); err != nil {
		t.Fatal(err)
	}
}

func TestExtractFile(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "users.yaml", sampleSpec)

	var extractor Extractor
	records, err := extractor.ExtractFile(filepath.Join(dir, "users.yaml"))
	if err != nil {
		t.Fatal(err)
	}

	byType := make(map[string][]Record)
	for _, record := range records {
		byType[record.Type] = append(byType[record.Type], record)
	}

	ops := byType[OperationDescription]
	if len(ops) != 1 {
		t.Fatalf("expected 1 operation record, got %d", len(ops))
	}
	expected := "Method: GET | Path: /users/{id} | Summary: Retrieve a user by ID | Tags: users, accounts"
	if ops[0].InputText != expected {
		t.Errorf("unexpected input text:\n got %q\nwant %q", ops[0].InputText, expected)
	}
	if ops[0].TargetText == "" {
		t.Error("operation target text is empty")
	}

	// "Gone." and the description-less health check are below the word
	// threshold and must be dropped.
	if extractor.Stats.Dropped != 2 {
		t.Errorf("expected 2 dropped operations, got %d", extractor.Stats.Dropped)
	}

	if len(byType[ExampleDescription]) != 1 {
		t.Errorf("expected 1 example description record, got %d", len(byType[ExampleDescription]))
	}
	if len(byType[ExampleSummary]) != 1 {
		t.Errorf("expected 1 example summary record, got %d", len(byType[ExampleSummary]))
	}
	if len(byType[SchemaDescription]) != 1 {
		t.Errorf("expected 1 schema record, got %d", len(byType[SchemaDescription]))
	}

	for _, record := range records {
		if record.InputText == "" || record.TargetText == "" {
			t.Errorf("record %+v has empty input or target", record)
		}
		if record.SourceFile != "users.yaml" {
			t.Errorf("unexpected source file %q", record.SourceFile)
		}
	}
}

func TestExtractDirSkipsMalformed(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "good.yaml", sampleSpec)
	writeSpec(t, dir, "broken.yaml", "paths: [\n  unclosed")
	writeSpec(t, dir, "scalar.yaml", "just a string")
	writeSpec(t, dir, "notes.txt", "not a spec")

	var extractor Extractor
	records, err := extractor.ExtractDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	if extractor.Stats.FilesSkipped != 2 {
		t.Errorf("expected 2 skipped files, got %d", extractor.Stats.FilesSkipped)
	}
	if extractor.Stats.FilesProcessed != 1 {
		t.Errorf("expected 1 processed file, got %d", extractor.Stats.FilesProcessed)
	}
	if len(records) == 0 {
		t.Fatal("expected records from the well formed file")
	}
}

func TestExtractDirDeterministicOrder(t *testing.T) {
	dir := t.TempDir()
	writeSpec(t, dir, "b.yaml", sampleSpec)
	writeSpec(t, dir, "a.yaml", sampleSpec)

	var first Extractor
	records1, err := first.ExtractDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	var second Extractor
	records2, err := second.ExtractDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	if len(records1) != len(records2) {
		t.Fatalf("record counts differ: %d vs %d", len(records1), len(records2))
	}
	for i := range records1 {
		if records1[i] != records2[i] {
			t.Fatalf("records differ at index %d", i)
		}
	}
	if records1[0].SourceFile != "a.yaml" {
		t.Errorf("expected sorted walk order, first record from %q", records1[0].SourceFile)
	}
}

func TestCleanText(t *testing.T) {
	cases := []struct {
		input, expected string
	}{
		{"", ""},
		{"<p>Hello <b>world</b></p>", "Hello world"},
		{"line one\nline two\r\n  spaced   out  ", "line one line two spaced out"},
		{"already clean", "already clean"},
	}
	for _, tt := range cases {
		if got := CleanText(tt.input); got != tt.expected {
			t.Errorf("CleanText(%q) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

func TestDedupe(t *testing.T) {
	records := []Record{
		{SourceFile: "a.yaml", InputText: "x", TargetText: "first"},
		{SourceFile: "b.yaml", InputText: "x", TargetText: "second"},
		{SourceFile: "b.yaml", InputText: "y", TargetText: "kept"},
	}

	unique := Dedupe(records)
	if len(unique) != 2 {
		t.Fatalf("expected 2 unique records, got %d", len(unique))
	}
	if unique[0].TargetText != "first" {
		t.Errorf("dedupe should keep the first occurrence, got %q", unique[0].TargetText)
	}
}
