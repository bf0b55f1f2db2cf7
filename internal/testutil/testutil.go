// Package testutil builds synthetic fractions and planning documents for
// tests.
package testutil

import (
	"fmt"
	"strings"

	"github.com/banshee-data/contour.predict/internal/model"
)

// DriftingFractions returns f fractions of v vertices. Vertex n of fraction
// m sits at (n, -n, 10) shifted by m*step on every axis.
func DriftingFractions(f, v int, step float64) []model.Fraction {
	out := make([]model.Fraction, f)
	for m := 0; m < f; m++ {
		pts := make([]model.Point, v)
		d := float64(m) * step
		for n := range pts {
			pts[n] = model.Point{X: float64(n) + d, Y: -float64(n) + d, Z: 10 + d}
		}
		out[m] = model.NewFraction(fmt.Sprintf("CTV12_FX%d", m+1), pts...)
	}
	return out
}

// BuildPlan renders fractions as a planning document. Each fraction becomes
// a roi={...} section whose marker line is "name: <fraction name>;".
// Sections for any decoy fractions are written first, under their own names.
func BuildPlan(decoys []model.Fraction, fractions ...model.Fraction) string {
	var b strings.Builder
	b.WriteString("// Region of Interest file\n")
	b.WriteString("// Data set: ART\n")
	b.WriteString("file_stamp={\n  written_by: contour.predict test;\n};\n")
	for _, f := range append(append([]model.Fraction{}, decoys...), fractions...) {
		writeSection(&b, f)
	}
	return b.String()
}

func writeSection(b *strings.Builder, f model.Fraction) {
	fmt.Fprintf(b, "roi={\n")
	fmt.Fprintf(b, "  name: %s;\n", f.Name)
	fmt.Fprintf(b, "  color: red;\n")
	fmt.Fprintf(b, "  mesh={\n")
	fmt.Fprintf(b, "    number_of_vertices = %d;\n", len(f.Points))
	fmt.Fprintf(b, "    number_of_triangles = 0;\n")
	fmt.Fprintf(b, "    vertices={\n")
	for _, p := range f.Points {
		fmt.Fprintf(b, "%s\n", p)
	}
	fmt.Fprintf(b, "    };\n")
	fmt.Fprintf(b, "  };\n")
	fmt.Fprintf(b, "};\n")
}
