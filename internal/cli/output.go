package cli

import (
	"encoding/json"
	"fmt"
	"io"
)

// printer renders command results in the format chosen by --format.
type printer struct {
	format string
	w      io.Writer
}

func (o *RootOptions) printer(w io.Writer) *printer {
	return &printer{format: o.Format, w: w}
}

// result writes data as indented JSON, or as the key/value lines of text
// in text mode.
func (p *printer) result(data interface{}, text [][2]string) error {
	if p.format == "json" {
		enc := json.NewEncoder(p.w)
		enc.SetIndent("", "  ")
		return enc.Encode(data)
	}

	width := 0
	for _, kv := range text {
		width = max(width, len(kv[0])+1)
	}
	for _, kv := range text {
		if _, err := fmt.Fprintf(p.w, "%-*s  %s\n", width, kv[0]+":", kv[1]); err != nil {
			return err
		}
	}
	return nil
}
