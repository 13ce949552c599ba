package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/ddddddO/gtree"
	"github.com/dgallion1/wikitoc/internal/directive"
	"github.com/dgallion1/wikitoc/internal/importer"
	"github.com/dgallion1/wikitoc/internal/remote"
	"github.com/dgallion1/wikitoc/internal/toc"
	"github.com/dgallion1/wikitoc/internal/wikipage"
	"github.com/dgallion1/wikitoc/internal/wikitext"
	"github.com/spf13/cobra"
)

const rootLongDesc = `
wikitoc works on a wiki stored as a directory tree: one directory per page,
named as a WikiWord, holding content.txt and an optional properties.yaml.

Render a page's table of contents with the same !contents directive pages
embed, render whole pages, print the hierarchy, or import a Markdown, HTML,
text, DOCX or PDF document as a tree of pages.
`

type cliApp struct {
	dir      string
	rootName string
	timeout  time.Duration
	retries  int
	regrace  bool
	verbose  bool
}

func newRootCmd() *cobra.Command {
	app := &cliApp{}
	cmd := &cobra.Command{
		Use:           "wikitoc",
		Short:         "Render wiki tables of contents",
		Long:          strings.TrimSpace(rootLongDesc),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.PersistentFlags()
	flags.StringVarP(&app.dir, "root", "r", ".", "wiki root directory")
	flags.StringVar(&app.rootName, "root-name", "RooT", "name of the root page")
	flags.DurationVar(&app.timeout, "timeout", 10*time.Second, "timeout for fetching virtual wiki children")
	flags.IntVar(&app.retries, "retries", 3, "retries for failed virtual wiki fetches")
	flags.BoolVarP(&app.verbose, "verbose", "v", false, "log debug output to stderr")

	cmd.AddCommand(app.newTOCCmd(), app.newPageCmd(), app.newTreeCmd(), app.newImportCmd())
	return cmd
}

func (a *cliApp) logger(w io.Writer) *slog.Logger {
	level := slog.LevelWarn
	if a.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// open loads the wiki under a.dir. A missing directory is an empty wiki,
// so import can start one from scratch.
func (a *cliApp) open() (*wikipage.Store, error) {
	if _, err := os.Stat(a.dir); errors.Is(err, fs.ErrNotExist) {
		return wikipage.NewStore(a.rootName), nil
	}
	return wikipage.LoadDir(a.dir, a.rootName)
}

func (a *cliApp) tocRenderer(log *slog.Logger) *toc.Renderer {
	return toc.NewRenderer(remote.NewClient(a.timeout, a.retries, time.Hour, log))
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func (a *cliApp) newTOCCmd() *cobra.Command {
	line := directive.Keyword
	cmd := &cobra.Command{
		Use:   "toc PAGE",
		Short: "Render the table of contents of a page",
		Example: `  wikitoc toc ParenT
  wikitoc toc ParenT --directive '!contents -R2 -g'`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !strings.HasSuffix(line, "\n") {
				line += "\n"
			}
			inv := directive.Match(line)
			if inv == nil || inv.Len != len(line) {
				return fmt.Errorf("not a contents directive: %q", strings.TrimSpace(line))
			}
			inv.Regrace = inv.Regrace || a.regrace

			store, err := a.open()
			if err != nil {
				return err
			}
			page, err := store.Find(args[0])
			if err != nil {
				return err
			}
			out, err := a.tocRenderer(a.logger(cmd.ErrOrStderr())).Render(commandContext(cmd), page, *inv)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
	cmd.Flags().StringVarP(&line, "directive", "d", line, "directive to render")
	cmd.Flags().BoolVarP(&a.regrace, "regrace", "g", false, "split WikiWord labels into words")
	return cmd
}

func (a *cliApp) newPageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "page PAGE",
		Short: "Render a whole page to HTML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.open()
			if err != nil {
				return err
			}
			page, err := store.Find(args[0])
			if err != nil {
				return err
			}
			log := a.logger(cmd.ErrOrStderr())
			out, err := wikitext.NewRenderer(a.tocRenderer(log), log, false).RenderPage(commandContext(cmd), page)
			if err != nil {
				return err
			}
			_, err = io.WriteString(cmd.OutOrStdout(), out)
			return err
		},
	}
}

func (a *cliApp) newTreeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tree [PAGE]",
		Short: "Print the page hierarchy",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.open()
			if err != nil {
				return err
			}
			start := store.Root()
			if len(args) == 1 {
				if start, err = store.Find(args[0]); err != nil {
					return err
				}
			}

			root := gtree.NewRoot(start.Name())
			addBranch(root, start)
			return gtree.OutputProgrammably(cmd.OutOrStdout(), root)
		},
	}
}

func addBranch(node *gtree.Node, p *wikipage.Page) {
	for _, c := range p.ChildPages() {
		text := c.Name()
		if v := c.VirtualSource(); v != "" {
			text += " -> " + v
		}
		addBranch(node.Add(text), c)
	}
}

func (a *cliApp) newImportCmd() *cobra.Command {
	var under, title string
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a document as a tree of pages",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := importer.ForFile(args[0])
			if err != nil {
				return err
			}
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			outline, err := p.Parse(f, args[0])
			if err != nil {
				return err
			}
			if title != "" {
				outline.Title = title
			}

			store, err := a.open()
			if err != nil {
				return err
			}
			path, err := importer.Import(store, under, outline)
			if err != nil {
				return err
			}
			if err := store.SaveDir(a.dir); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	cmd.Flags().StringVar(&under, "under", "", "page to import below (default the root)")
	cmd.Flags().StringVar(&title, "title", "", "document page title (default the file name)")
	return cmd
}
