package logging

import (
	"log/slog"
	"os"

	slogmulti "github.com/samber/slog-multi"
)

type LogCode string

const (
	// SYSTEM EVENTS (SYSTEM*)
	SYSTEM LogCode = "SYSTEM"

	// DATA OPERATIONS (DATA*)
	DATA_EXTRACT LogCode = "DATA_EXTRACT"
	DATA_SPLIT   LogCode = "DATA_SPLIT"
	DATA_SKIP    LogCode = "DATA_SKIP"

	// MODEL OPERATIONS (MODEL*)
	MODEL_TRAIN    LogCode = "MODEL_TRAIN"
	MODEL_SAVE     LogCode = "MODEL_SAVE"
	MODEL_GENERATE LogCode = "MODEL_GENERATE"
	MODEL_EVAL     LogCode = "MODEL_EVAL"
)

// InitRunLogging configures the default logger to write json logs to the given
// log file and plain text logs to stderr. The stage and run id are attached to
// every json record so that individual runs can be filtered in log storage.
func InitRunLogging(logFile *os.File, stage string, runId string) {
	var jsonHandler slog.Handler = slog.NewJSONHandler(logFile, &slog.HandlerOptions{Level: slog.LevelDebug})

	jsonHandler = jsonHandler.WithAttrs([]slog.Attr{
		slog.String("stage", stage),
		slog.String("run_id", runId),
	})
	textHandler := slog.NewTextHandler(os.Stderr, nil)

	logger := slog.New(slogmulti.Fanout(jsonHandler, textHandler))
	slog.SetDefault(logger)
}
