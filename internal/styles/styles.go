package styles

import (
	"io"
	"os"

	"github.com/muesli/termenv"
)

// Palette colours text for one destination, using that destination's
// terminal capabilities. Writers that are not terminals get plain text.
type Palette struct {
	out *termenv.Output
}

func For(w io.Writer) Palette {
	return Palette{out: termenv.NewOutput(w)}
}

func (p Palette) Error(s string) string {
	return p.out.String(s).Foreground(p.out.Color("9")).String()
}

func (p Palette) Status(s string) string {
	return p.out.String(s).Foreground(p.out.Color("12")).String()
}

func (p Palette) Summary(s string) string {
	return p.out.String(s).Foreground(p.out.Color("11")).Bold().String()
}

func (p Palette) Muted(s string) string {
	return p.out.String(s).Foreground(p.out.Color("8")).String()
}

func (p Palette) Notice(s string) string {
	return p.out.String(s).Foreground(p.out.Color("10")).String()
}

var (
	stdout = For(os.Stdout)
	stderr = For(os.Stderr)

	ERROR   = stderr.Error
	STATUS  = stdout.Status
	SUMMARY = stdout.Summary
	MUTED   = stdout.Muted
	NOTICE  = stderr.Notice
)
