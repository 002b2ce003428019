// quillcli is a small inspection tool over a quill index directory:
// dump the table of contents, list segments, and run ad-hoc queries.
package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	quill "github.com/quillsearch/quill"
)

var indexPath string

func main() {
	root := &cobra.Command{
		Use:           "quillcli",
		Short:         "inspect and query a quill index",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&indexPath, "index", "i", ".", "index directory")
	root.AddCommand(tocCmd(), segmentsCmd(), searchCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "quillcli:", err)
		os.Exit(1)
	}
}

func openIndex() (*quill.Index, error) {
	return quill.Open(indexPath, nil, quill.ReadOnly())
}

func tocCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toc",
		Short: "print the current generation and live segment list",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex()
			if err != nil {
				return err
			}
			s, err := ix.Searcher()
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Printf("generation\t%d\n", s.Generation())
			fmt.Printf("live docs\t%d\n", s.DocCount())
			for _, f := range ix.Schema().Fields() {
				fmt.Printf("field\t%s\tindexed=%v stored=%v positions=%v unique=%v\n",
					f.Name, f.Indexed, f.Stored, f.Positions, f.Unique)
			}
			return nil
		},
	}
}

func segmentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segments",
		Short: "list live segments with doc counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ix, err := openIndex()
			if err != nil {
				return err
			}
			s, err := ix.Searcher()
			if err != nil {
				return err
			}
			defer s.Close()
			for _, e := range s.Entries() {
				fmt.Printf("%s\tgen=%d\tdocs=%d\n", e.ID, e.Generation, e.DocCount)
			}
			return nil
		},
	}
}

func searchCmd() *cobra.Command {
	var limit int
	var mode string
	var verbose bool
	cmd := &cobra.Command{
		Use:   "search field:term [field:term ...]",
		Short: "run a term query (or an and/or of several) and print scored hits",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var children []quill.Query
			for _, arg := range args {
				field, term, ok := strings.Cut(arg, ":")
				if !ok {
					return fmt.Errorf("argument %q is not of the form field:term", arg)
				}
				children = append(children, quill.TermQuery(field, term))
			}
			var q quill.Query
			switch {
			case len(children) == 1:
				q = children[0]
			case mode == "or":
				q = quill.OrQuery(children...)
			default:
				q = quill.AndQuery(children...)
			}

			opts := []quill.Option{quill.ReadOnly()}
			if verbose {
				zl, err := zap.NewDevelopment()
				if err != nil {
					return err
				}
				opts = append(opts, quill.WithLogger(zl.Sugar()))
			}
			ix, err := quill.Open(indexPath, nil, opts...)
			if err != nil {
				return err
			}
			s, err := ix.Searcher()
			if err != nil {
				return err
			}
			defer s.Close()

			hits, err := s.Search(q, limit)
			if err != nil {
				return err
			}
			for rank, h := range hits {
				doc, err := s.StoredFields(h)
				if err != nil {
					return err
				}
				fmt.Printf("%d\tscore=%.4f\tseg=%d doc=%d\t%v\n", rank+1, h.Score, h.Segment, h.DocID, doc)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum hits to print")
	cmd.Flags().StringVar(&mode, "mode", "and", "combine multiple terms with and|or")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log writer/searcher internals")
	return cmd
}
