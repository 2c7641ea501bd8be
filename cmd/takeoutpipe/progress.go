package main

import (
	"fmt"
	"io"

	"github.com/On-Jun9/TakeoutPipe/internal/pipeline"
)

// progressPrinter renders pipeline updates: status messages on their own
// line and a per-file counter rewritten in place.
type progressPrinter struct {
	w      io.Writer
	inline bool
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (pp *progressPrinter) Update(u pipeline.ProgressUpdate) {
	switch u.Type {
	case pipeline.ProgressStatus:
		pp.endLine()
		fmt.Fprintln(pp.w, u.Message)
	case pipeline.ProgressFile:
		fmt.Fprintf(pp.w, "\r[%d/%d] %s (%s)", u.Current, u.Total, u.Filename, u.Outcome)
		pp.inline = true
	case pipeline.ProgressComplete:
		pp.endLine()
	}
}

func (pp *progressPrinter) endLine() {
	if pp.inline {
		fmt.Fprintln(pp.w)
		pp.inline = false
	}
}
