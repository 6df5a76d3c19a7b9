package cliconfig

import (
	"io"

	"github.com/bft-labs/asdustat/pkg/log"
)

// NewLogger builds the process logger from log_level and log_format.
func NewLogger(cfg Config, w io.Writer) (*log.ZerologAdapter, error) {
	return log.NewZerologAdapterFor(w, cfg.LogFormat, cfg.LogLevel)
}
