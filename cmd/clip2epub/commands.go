package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/yuanying/clip2epub/internal/clip"
	"github.com/yuanying/clip2epub/internal/config"
	"github.com/yuanying/clip2epub/internal/epub"
)

func newConvertCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "convert [file...]",
		Short: "Convert text, files or stdin into an EPUB",
		Long: `Convert reads each file (or stdin when no file or "-" is given) and writes
an EPUB to the output directory. Several text inputs are combined into one
book unless --separate is set. Image files always become their own book.`,
		RunE: runConvert,
	}

	f := cmd.Flags()
	f.String("title", "", "Book title (default: detected from the content)")
	f.StringSlice("author", nil, "Book author; may be repeated")
	f.String("language", "", "Book language code (default: detected or default_language)")
	f.String("style", "", "CSS template name (default: default_style)")
	f.Int("words-per-chapter", 0, "Word budget per chapter when the content has no headings")
	f.Bool("no-split", false, "Keep the whole content in a single chapter")
	f.Bool("toc", false, "Always include a table of contents")
	f.StringSlice("tag", nil, "Tag recorded in the history; may be repeated")
	f.Bool("separate", false, "Write one book per input instead of combining them")
	f.Bool("no-cache", false, "Bypass the conversion cache")
	return cmd
}

type input struct {
	name string
	data []byte
}

func readInputs(cmd *cobra.Command, args []string) ([]input, error) {
	if len(args) == 0 {
		args = []string{"-"}
	}
	inputs := make([]input, 0, len(args))
	for _, a := range args {
		var (
			data []byte
			err  error
		)
		if a == "-" {
			data, err = io.ReadAll(cmd.InOrStdin())
		} else {
			data, err = os.ReadFile(a)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", a, err)
		}
		inputs = append(inputs, input{name: a, data: data})
	}
	return inputs, nil
}

func isImage(data []byte) bool {
	return strings.HasPrefix(mimetype.Detect(data).String(), "image/")
}

func runConvert(cmd *cobra.Command, args []string) error {
	opts, err := readCLIOptions(cmd, args)
	if err != nil {
		return err
	}
	inputs, err := readInputs(cmd, opts.Inputs)
	if err != nil {
		return err
	}

	svc, closeFn, err := buildService(&opts.globalOptions, opts.Request.Options.CSSTemplate, opts.NoCache)
	if err != nil {
		return err
	}
	defer closeFn()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	report := func(res *clip.Result) {
		fmt.Fprintln(out, res.Path)
		if res.Warning != "" {
			opts.Logger.Warn("conversion finished with warnings", "path", res.Path, "warning", res.Warning)
		}
	}

	acc := clip.NewAccumulator(clip.MaxClips)
	for _, in := range inputs {
		if isImage(in.data) {
			res, err := svc.ConvertImage(ctx, in.data, opts.Request)
			if err != nil {
				return fmt.Errorf("%s: %w", in.name, err)
			}
			report(res)
			continue
		}
		text := string(in.data)
		if opts.Separate || len(inputs) == 1 {
			res, err := svc.Convert(ctx, text, opts.Request)
			if err != nil {
				return fmt.Errorf("%s: %w", in.name, err)
			}
			report(res)
			continue
		}
		dropped, err := acc.Add(text)
		if errors.Is(err, clip.ErrNothingToConvert) {
			opts.Logger.Warn("skipping empty input", "input", in.name)
			continue
		}
		if dropped {
			opts.Logger.Warn("too many inputs, oldest dropped", "max", clip.MaxClips)
		}
	}

	if acc.Len() > 0 {
		res, err := svc.ConvertAccumulated(ctx, acc, opts.Request)
		if err != nil {
			return err
		}
		report(res)
	}
	return nil
}

func newImageCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image <file>",
		Short: "Wrap an image into a single-page EPUB",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGlobalOptions(cmd)
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", args[0], err)
			}
			title, _ := cmd.Flags().GetString("title")
			if title == "" {
				title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			}

			svc, closeFn, err := buildService(g, "", true)
			if err != nil {
				return err
			}
			defer closeFn()

			res, err := svc.ConvertImage(cmd.Context(), data, clip.Request{Overrides: epub.Overrides{Title: title}})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Path)
			return nil
		},
	}
	cmd.Flags().String("title", "", "Book title (default: the file name)")
	return cmd
}

func newInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <file.epub>",
		Short: "Summarise an EPUB and check its structure",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rep, err := epub.Inspect(args[0])
			if err != nil {
				return err
			}
			printReport(cmd.OutOrStdout(), rep)
			if !rep.Valid() {
				return fmt.Errorf("%s: %d problem(s) found", args[0], len(rep.Problems))
			}
			return nil
		},
	}
}

func printReport(w io.Writer, rep *epub.Report) {
	md := rep.Metadata
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Title:\t%s\n", md.Title)
	fmt.Fprintf(tw, "Authors:\t%s\n", strings.Join(md.Authors(), ", "))
	fmt.Fprintf(tw, "Language:\t%s\n", md.Language)
	fmt.Fprintf(tw, "Identifier:\t%s\n", md.Identifier)
	fmt.Fprintf(tw, "Type:\t%s\n", md.Type)
	fmt.Fprintf(tw, "Modified:\t%s\n", md.Modified)
	fmt.Fprintf(tw, "Spine:\t%d document(s)\n", len(rep.Spine))
	fmt.Fprintf(tw, "Resources:\t%d\n", rep.Resources)
	if rep.Cover != nil {
		fmt.Fprintf(tw, "Cover:\t%s (%s)\n", rep.Cover.Href, rep.Cover.MediaType)
	}
	tw.Flush()

	if len(rep.Nav) > 0 {
		fmt.Fprintln(w, "Contents:")
		for i, np := range rep.Nav {
			fmt.Fprintf(w, "  %d. %s\n", i+1, np.Label)
		}
	}
	for _, p := range rep.Problems {
		fmt.Fprintf(w, "problem: %s\n", p)
	}
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently produced books",
		Long: `History lists the books produced most recently. Entries persist between
runs only with the sqlite cache backend.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			g, err := readGlobalOptions(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")
			if limit <= 0 {
				return fmt.Errorf("--limit must be positive, got %d", limit)
			}
			if g.Config.Cache.Backend != config.BackendSQLite {
				g.Logger.Info("history is kept in memory; set cache.backend to sqlite to persist it")
			}

			svc, closeFn, err := buildService(g, "", true)
			if err != nil {
				return err
			}
			defer closeFn()

			entries, err := svc.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "CREATED\tTITLE\tFORMAT\tCHAPTERS\tSIZE\tPATH")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%s\n",
					e.CreatedAt.Local().Format("2006-01-02 15:04"), e.Title, e.Format, e.Chapters, e.Size, e.Path)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().Int("limit", 10, "Number of entries to show")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			paths := config.SearchPaths()
			target := paths[len(paths)-1]
			if len(args) == 1 {
				target = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if err := config.WriteDefault(target, force); err != nil {
				if errors.Is(err, config.ErrConfigExists) {
					return fmt.Errorf("%w (use --force to overwrite)", err)
				}
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), target)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "Overwrite an existing file")

	cmd.AddCommand(initCmd)
	return cmd
}
