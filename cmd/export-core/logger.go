package main

import (
	"context"
	"fmt"

	server "github.com/mutablelogic/go-server"
)

// loggerAdapter satisfies export.Logger over the go-server logging stack, so
// the pipeline never depends on a concrete logging library directly.
type loggerAdapter struct {
	ctx context.Context
	log server.Logger
}

func (l loggerAdapter) Debug(msg string, args ...any) {
	l.log.Debugf(l.ctx, "%s %s", msg, formatArgs(args))
}

func (l loggerAdapter) Warn(msg string, args ...any) {
	l.log.Printf(l.ctx, "WARN %s %s", msg, formatArgs(args))
}

func (l loggerAdapter) Error(msg string, args ...any) {
	l.log.Printf(l.ctx, "ERROR %s %s", msg, formatArgs(args))
}

func formatArgs(args []any) string {
	out := ""
	for i := 0; i+1 < len(args); i += 2 {
		out += fmt.Sprintf("%v=%v ", args[i], args[i+1])
	}
	return out
}
