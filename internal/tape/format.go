package tape

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/born-ml/adtape/internal/opcode"
)

// Format writes one line per operator: position, first result, opcode and
// arguments, variables shown as v<i> and parameters by value.
func Format[T Base](w io.Writer, p *Player[T]) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "op\tvar\tcode\targs")
	for op, s := range p.All() {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", op, formatVar(s), s.Code, formatArgs(p, s))
	}
	return tw.Flush()
}

func formatVar(s Step) string {
	if s.Code.NumRes() == 0 {
		return "-"
	}
	return fmt.Sprintf("v%d", s.Var)
}

func formatArgs[T Base](p *Player[T], s Step) string {
	kinds := make([]byte, len(s.Args))
	for slot := range opcode.VarSlots(s.Code, s.Args) {
		kinds[slot] = 'v'
	}
	for slot := range opcode.ParamSlots(s.Code, s.Args) {
		kinds[slot] = 'p'
	}
	parts := make([]string, len(s.Args))
	for i, a := range s.Args {
		switch kinds[i] {
		case 'v':
			parts[i] = fmt.Sprintf("v%d", a)
		case 'p':
			parts[i] = fmt.Sprint(p.Parameter(a))
		default:
			parts[i] = fmt.Sprint(a)
		}
	}
	if (s.Code == opcode.CExp || s.Code == opcode.CSkip) && len(parts) > 0 {
		parts[0] = opcode.Rel(s.Args[0]).String()
	}
	return strings.Join(parts, " ")
}
