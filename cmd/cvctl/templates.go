package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"cvBuilder/internal/client"
	"cvBuilder/internal/cv"
	"cvBuilder/internal/editor"
)

func newListCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := client.New(flags.api).List(cmd.Context())
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUPDATED")
			for _, item := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", item.ID, item.Name, item.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return tw.Flush()
		},
	}
}

func newPushCmd(flags *rootFlags) *cobra.Command {
	var id, name, layoutPath, themePath, previewPath string

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Create or update a template from local files",
		Long: `Upload layout and theme JSON files as a template.

Without --id a new template is created. Without --preview the server
generates the thumbnail in the background.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name = strings.TrimSpace(name)
			if name == "" {
				return errors.New("--name is required")
			}
			layoutData, err := os.ReadFile(layoutPath)
			if err != nil {
				return fmt.Errorf("read layout: %w", err)
			}
			layout, err := cv.ParseLayout(layoutData)
			if err != nil {
				return err
			}
			theme := cv.Theme{}
			if themePath != "" {
				themeData, err := os.ReadFile(themePath)
				if err != nil {
					return fmt.Errorf("read theme: %w", err)
				}
				if theme, err = cv.ParseTheme(themeData); err != nil {
					return err
				}
			}
			var preview []byte
			if previewPath != "" {
				if preview, err = os.ReadFile(previewPath); err != nil {
					return fmt.Errorf("read preview: %w", err)
				}
			}

			tpl := editor.Template{Name: name, Layout: layout, Theme: theme}
			c := client.New(flags.api)
			var saved string
			if id == "" {
				saved, err = c.CreateTemplate(cmd.Context(), tpl, preview)
			} else {
				saved, err = c.UpdateTemplate(cmd.Context(), id, tpl, preview)
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), saved)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Template ID to update")
	cmd.Flags().StringVar(&name, "name", "", "Template name")
	cmd.Flags().StringVar(&layoutPath, "layout", "", "Layout JSON file")
	cmd.Flags().StringVar(&themePath, "theme", "", "Theme JSON file")
	cmd.Flags().StringVar(&previewPath, "preview", "", "Preview PNG file")
	_ = cmd.MarkFlagRequired("layout")

	return cmd
}

type pulledTemplate struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Layout     cv.Layout `json:"layout"`
	Theme      cv.Theme  `json:"theme"`
	PreviewURL string    `json:"previewUrl,omitempty"`
}

func newPullCmd(flags *rootFlags) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Print a template as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			tpl, err := client.New(flags.api).FetchTemplate(cmd.Context(), id)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(pulledTemplate{
				ID:         tpl.ID,
				Name:       tpl.Name,
				Layout:     tpl.Layout,
				Theme:      tpl.Theme,
				PreviewURL: tpl.PreviewURL,
			})
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Template ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}

func newDeleteCmd(flags *rootFlags) *cobra.Command {
	var id string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a template",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client.New(flags.api).DeleteTemplate(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", id)
			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Template ID")
	_ = cmd.MarkFlagRequired("id")

	return cmd
}
