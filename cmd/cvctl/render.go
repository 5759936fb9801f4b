package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"cvBuilder/internal/cv"
	"cvBuilder/internal/render"
)

func newRenderCmd() *cobra.Command {
	var layoutPath, themePath, contentPath, outPath, format, title, lang string

	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render a CV locally to HTML or a JSON tree",
		Long: `Render layout, theme and content JSON files without a server.

Omitted layout or theme files fall back to the built-in default template.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			layout := cv.DefaultLayout()
			if layoutPath != "" {
				data, err := os.ReadFile(layoutPath)
				if err != nil {
					return fmt.Errorf("read layout: %w", err)
				}
				if layout, err = cv.ParseLayout(data); err != nil {
					return err
				}
			}
			theme := cv.DefaultTheme()
			if themePath != "" {
				data, err := os.ReadFile(themePath)
				if err != nil {
					return fmt.Errorf("read theme: %w", err)
				}
				if theme, err = cv.ParseTheme(data); err != nil {
					return err
				}
			}
			if lang != "" {
				if !slices.Contains(cv.Languages(), lang) {
					return fmt.Errorf("unsupported language %q (want one of %s)", lang, strings.Join(cv.Languages(), ", "))
				}
				theme.Language = lang
			}
			content := cv.DefaultContent()
			if contentPath != "" {
				data, err := os.ReadFile(contentPath)
				if err != nil {
					return fmt.Errorf("read content: %w", err)
				}
				if content, err = cv.ParseContent(data); err != nil {
					return err
				}
			}

			for _, issue := range cv.Validate(layout) {
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %s\n", issue.Message)
			}

			w := cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return fmt.Errorf("create output: %w", err)
				}
				defer f.Close()
				w = f
			}
			return writeRendered(w, render.Render(layout, theme, content), format, title)
		},
	}

	cmd.Flags().StringVar(&layoutPath, "layout", "", "Layout JSON file")
	cmd.Flags().StringVar(&themePath, "theme", "", "Theme JSON file")
	cmd.Flags().StringVar(&contentPath, "content", "", "Content JSON file (section -> text)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Output file (default stdout)")
	cmd.Flags().StringVar(&format, "format", "html", "Output format: html or json")
	cmd.Flags().StringVar(&title, "title", "CV", "HTML page title")
	cmd.Flags().StringVar(&lang, "lang", "", "Override the theme label language ("+strings.Join(cv.Languages(), ", ")+")")

	return cmd
}

func writeRendered(w io.Writer, tree render.Tree, format, title string) error {
	switch strings.ToLower(format) {
	case "html":
		return render.WriteHTML(w, tree, render.PageOptions{Title: title})
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(tree)
	}
	return fmt.Errorf("unsupported format %q (want html or json)", format)
}
