package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/filter"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/searcher/highlight"
	"github.com/Adithya-Monish-Kumar-K/Blog-Search-Browser/internal/session"
)

const (
	markOpen  = "["
	markClose = "]"
)

func newSearchCmd(global *globalOptions) *cobra.Command {
	var (
		caseSensitive bool
		exclude       bool
		sortFlag      string
		asJSON        bool
		seed          int64
	)
	cmd := &cobra.Command{
		Use:   "search [query...]",
		Short: "Filter the collection once and print the result",
		RunE: func(cmd *cobra.Command, args []string) error {
			mode, err := filter.ParseSortMode(sortFlag)
			if err != nil {
				return err
			}
			_, col, err := global.loadCollection(cmd.Context())
			if err != nil {
				return err
			}
			view := session.Evaluate(filter.NewEngine(seed), col, filter.Options{
				Query:         strings.Join(args, " "),
				CaseSensitive: caseSensitive,
				ExcludeMode:   exclude,
				Sort:          mode,
			})
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}
			printView(cmd.OutOrStdout(), view)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&caseSensitive, "case", "c", false, "match case")
	cmd.Flags().BoolVarP(&exclude, "exclude", "x", false, "show posts that do not contain the query")
	cmd.Flags().StringVarP(&sortFlag, "sort", "s", "default", "sort order (default, asc, desc, shuffle)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the result as JSON")
	cmd.Flags().Int64Var(&seed, "seed", 1, "shuffle seed")
	return cmd
}

func printView(w io.Writer, view session.View) {
	fmt.Fprintln(w, statusLine(view))
	for _, d := range view.Documents {
		marker := "  "
		if d.Current {
			marker = "> "
		}
		fmt.Fprintf(w, "%s#%s %s  %s\n", marker, d.ID,
			d.Timestamp.Format("2006-01-02"),
			highlight.Markup(d.TitleSpans, markOpen, markClose, false))
		if d.Body != "" {
			fmt.Fprintf(w, "    %s\n", highlight.Markup(d.BodySpans, markOpen, markClose, false))
		}
	}
}

func statusLine(view session.View) string {
	onOff := func(b bool) string {
		if b {
			return "on"
		}
		return "off"
	}
	status := fmt.Sprintf("query %q  case %s  exclude %s  sort %s  showing %d of %d",
		view.Options.Query,
		onOff(view.Options.CaseSensitive),
		onOff(view.Options.ExcludeMode),
		view.Options.Sort,
		len(view.Documents), view.CollectionSize,
	)
	if view.Cursor.Active {
		status += "  match " + view.Cursor.Label
	}
	return status
}
