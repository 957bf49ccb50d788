package pipeline

import (
	"fmt"
	"io"

	"github.com/fatih/color"
)

// PrintSummary writes a human-readable staging overview: one block per
// stage with its phase, job count, and member specs.
func (d *Descriptor) PrintSummary(w io.Writer) {
	heading := color.New(color.FgCyan, color.Bold)
	dim := color.New(color.Faint)

	total := 0
	for _, stage := range d.planned {
		heading.Fprintf(w, "stage-%d", stage.Index)
		dim.Fprintf(w, "  (%s, %d jobs)\n", stage.Phase, len(stage.Specs))
		for _, spec := range stage.Specs {
			fmt.Fprintf(w, "  %s\n", spec)
		}
		total += len(stage.Specs)
	}

	heading.Fprintf(w, "total")
	dim.Fprintf(w, "  (%d jobs in %d stages + index refresh)\n", total, len(d.planned))
}
