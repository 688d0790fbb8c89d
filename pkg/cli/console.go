package cli

import (
	"context"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/secmon-lab/ipasync/pkg/utils/safe"
	"github.com/urfave/cli/v3"
)

var (
	okColor      = color.New(color.FgGreen, color.Bold)
	failColor    = color.New(color.FgRed, color.Bold)
	headingColor = color.New(color.FgCyan, color.Bold)
)

// console prints human readable results. Nothing is printed in quiet mode.
type console struct {
	ctx   context.Context
	w     io.Writer
	quiet bool
}

func newConsole(ctx context.Context, c *cli.Command, quiet bool) *console {
	var w io.Writer = os.Stdout
	if root := c.Root(); root != nil && root.Writer != nil {
		w = root.Writer
	}
	return &console{ctx: ctx, w: w, quiet: quiet}
}

func (x *console) printf(format string, args ...any) {
	if x.quiet {
		return
	}
	safe.Fprintf(x.ctx, x.w, format, args...)
}

func (x *console) OK(msg string) {
	x.printf("%s %s\n", okColor.Sprint("[OK]"), msg)
}

func (x *console) Fail(msg string) {
	x.printf("%s %s\n", failColor.Sprint("[NG]"), msg)
}

// Result prints OK or NG depending on ok
func (x *console) Result(ok bool, msg string) {
	if ok {
		x.OK(msg)
	} else {
		x.Fail(msg)
	}
}

// List prints a heading followed by one item per line
func (x *console) List(heading string, items []string) {
	x.printf("%s (%d)\n", headingColor.Sprint(heading), len(items))
	for _, item := range items {
		x.printf("  - %s\n", item)
	}
}
