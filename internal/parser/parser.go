// Package parser converts raw client payloads into core types.
//
// Browser sensor events arrive as loosely typed JSON: numbers may be
// quoted, nullable fields are null rather than absent, and optional
// readings come and go between events. The parser absorbs that noise and
// hands the rest of the system clean core values or a sentinel error.
package parser

import (
	"errors"
	"log/slog"
)

var (
	ErrMissingCoordinate = errors.New("payload carries no coordinate")
	ErrMissingHeading    = errors.New("payload carries no heading source")
	ErrMissingKey        = errors.New("payload carries no key")
)

// Parser decodes client payloads. Safe for concurrent use.
type Parser struct {
	logger *slog.Logger

	// appVersion is stamped into sessions whose client did not report one.
	appVersion string
}

func New(logger *slog.Logger, appVersion string) *Parser {
	return &Parser{
		logger:     logger.With("component", "parser"),
		appVersion: appVersion,
	}
}
