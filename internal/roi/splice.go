package roi

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/banshee-data/contour.predict/internal/model"
)

var ErrTemplateTooShort = errors.New("roi: template ends inside the vertex block")

// Splice copies template to w, replacing the lines of the first vertex
// block with the points of pred, one "x y z" per line in vertex order.
// Every other line is copied verbatim. Nothing is written to w unless the
// splice succeeds.
func Splice(template io.Reader, w io.Writer, pred *model.Fraction) error {
	doc, err := readDocument(template)
	if err != nil {
		return fmt.Errorf("roi: read template: %w", err)
	}

	block := -1
	declared := -1
	for i, line := range doc.lines {
		if strings.Contains(line, VertexCountKey) {
			if n, err := parseVertexCount(line); err == nil {
				declared = n
			}
		}
		if strings.Contains(line, VertexBlockKey) {
			block = i
			break
		}
	}
	if block < 0 {
		return fmt.Errorf("template: %w", ErrMissingVertexBlock)
	}
	n := len(pred.Points)
	if block+n >= len(doc.lines) {
		return fmt.Errorf("%w: need %d lines after line %d, have %d",
			ErrTemplateTooShort, n, block+1, len(doc.lines)-block-1)
	}
	if declared >= 0 && declared != n {
		opsf("template declares %d vertices before line %d, splicing %d", declared, block+1, n)
	}

	var buf bytes.Buffer
	for i, raw := range doc.raw {
		if i > block && i <= block+n {
			buf.WriteString(pred.Points[i-block-1].String())
			buf.WriteByte('\n')
			continue
		}
		buf.WriteString(raw)
	}
	diagf("spliced %d vertices after template line %d", n, block+1)

	_, err = w.Write(buf.Bytes())
	return err
}
