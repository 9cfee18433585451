package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGelfWriter connects a GELF UDP writer to the given Graylog address.
// Each record written to it is shipped as one GELF message.
func NewGelfWriter(address string) (io.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("gelf writer for %s: %w", address, err)
	}
	w.Facility = "waypointd"
	return w, nil
}
