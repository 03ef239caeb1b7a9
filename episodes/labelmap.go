package episodes

import (
	"fmt"
	"io"
)

// ClassLabel pairs a class folder with the local label it was assigned
// within a task. Local labels are dense in [0, NWay) and reassigned fresh
// per task; they carry no global class identity.
type ClassLabel struct {
	Folder string
	Label  int
}

// TaskLabels is the label map of a single task, in label-assignment order.
type TaskLabels []ClassLabel

// PrintLabelMap writes a human-readable dump of the class-folder-to-label
// mappings of every batch generated since the last print, then clears them:
// the maps are consumed once. Returns a *UsageError if no batch has been
// generated since the last print.
func (s *TaskBatchSampler) PrintLabelMap(w io.Writer) error {
	if len(s.lastLabelMap) == 0 {
		return &UsageError{Reason: "PrintLabelMap must be called after generating a batch"}
	}
	fmt.Fprintln(w, "Label map of current batch")
	for i, task := range s.lastLabelMap {
		fmt.Fprintf(w, "========= Task %d ==========\n", i+1)
		for _, ref := range task {
			fmt.Fprintf(w, "map %s --> %d\n", s.variant.DisplayName(ref.Folder), ref.Label)
		}
	}
	fmt.Fprintln(w, "========== END ==========")
	s.lastLabelMap = nil
	return nil
}
