package ontology

import (
	"log/slog"
	"sync"

	"github.com/averros/semquery/internal/logging"
)

var (
	ontologyLogger *slog.Logger
	loggerOnce     sync.Once
)

// getLogger returns the package logger, falling back to the default slog
// logger when logging.Init has not run (tests).
func getLogger() *slog.Logger {
	loggerOnce.Do(func() {
		ontologyLogger = logging.ForService("ontology")
		if ontologyLogger == nil {
			ontologyLogger = slog.Default().With("service", "ontology")
		}
	})
	return ontologyLogger
}
