package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/document"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/cursor"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
)

const replHelp = `commands:
  /text        set the query (a bare / clears it)
  n, p         next or previous match
  c            toggle case sensitivity
  x            toggle exclusion mode
  s MODE       sort by default, asc, desc or shuffle
  l            list the current results
  h            show this help
  q            quit`

func newInteractiveCmd(global *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "interactive",
		Aliases: []string{"i"},
		Short:   "Browse the collection with a live query and match cursor",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, col, err := global.loadCollection(cmd.Context())
			if err != nil {
				return err
			}
			seed := cfg.Browse.ShuffleSeed
			if seed == 0 {
				seed = time.Now().UnixNano()
			}
			r := newREPL(cmd.OutOrStdout(), filter.NewEngine(seed), col)
			return r.run(cmd.InOrStdin())
		},
	}
}

// repl drives one session from line commands. Every cursor move is echoed
// through the session viewport.
type repl struct {
	out     io.Writer
	session *session.Session
}

func newREPL(out io.Writer, engine *filter.Engine, col *document.Collection) *repl {
	r := &repl{out: out}
	r.session = session.New("terminal", engine, session.ViewportFunc(r.bringIntoView))
	r.session.Load(col)
	return r
}

// bringIntoView runs with the session locked and must not call back into it.
func (r *repl) bringIntoView(position int, doc document.Document) {
	fmt.Fprintf(r.out, "-> [%d] #%s %s\n", position+1, doc.ID, doc.Title)
}

func (r *repl) run(in io.Reader) error {
	fmt.Fprintln(r.out, statusLine(r.session.View()))
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(r.out, "browse> ")
		if !scanner.Scan() {
			fmt.Fprintln(r.out)
			return scanner.Err()
		}
		if quit := r.exec(scanner.Text()); quit {
			return nil
		}
	}
}

// exec applies one command line and reports whether the user asked to quit.
func (r *repl) exec(line string) bool {
	line = strings.TrimRight(line, "\r\n")
	if strings.HasPrefix(line, "/") {
		r.show(r.session.SetQuery(line[1:]))
		return false
	}

	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	switch strings.ToLower(fields[0]) {
	case "n", "next":
		r.step(cursor.Forward)
	case "p", "prev":
		r.step(cursor.Backward)
	case "c", "case":
		r.show(r.session.ToggleCaseSensitive())
	case "x", "exclude":
		r.show(r.session.ToggleExclude())
	case "s", "sort":
		arg := ""
		if len(fields) > 1 {
			arg = fields[1]
		}
		mode, err := filter.ParseSortMode(arg)
		if err != nil {
			fmt.Fprintln(r.out, err)
			return false
		}
		r.show(r.session.SetSort(mode))
	case "l", "list":
		printView(r.out, r.session.View())
	case "h", "help", "?":
		fmt.Fprintln(r.out, replHelp)
	case "q", "quit", "exit":
		return true
	default:
		fmt.Fprintf(r.out, "unknown command %q, type h for help\n", fields[0])
	}
	return false
}

func (r *repl) step(dir cursor.Direction) {
	view := r.session.Step(dir)
	if !view.Cursor.Active {
		fmt.Fprintln(r.out, "no matches")
		return
	}
	fmt.Fprintln(r.out, "match "+view.Cursor.Label)
	if view.Focus >= 0 {
		d := view.Documents[view.Focus]
		fmt.Fprintf(r.out, "    %s\n", highlight.Markup(d.BodySpans, markOpen, markClose, false))
	}
}

func (r *repl) show(view session.View) {
	fmt.Fprintln(r.out, statusLine(view))
}
