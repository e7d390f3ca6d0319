package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dataloom/internal/library"
	"github.com/KaramelBytes/dataloom/internal/loader"
)

var libraryCmd = &cobra.Command{
	Use:     "library",
	Aliases: []string{"lib"},
	Short:   "Manage saved datasets",
	Example: `  dataloom library save sales.csv
  dataloom library list
  dataloom library export sales.csv -o copy.csv
  dataloom library remove 3f2a9c1e`,
}

var (
	libSaveLoad loadFlags
	libSaveName string
	libOutput   string
)

func openLibrary() (*library.Library, error) {
	if cfg == nil || cfg.LibraryDir == "" {
		return nil, fmt.Errorf("library_dir is not configured")
	}
	return library.Open(cfg.LibraryDir)
}

var libraryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved datasets",
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		entries, err := lib.List()
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No saved datasets")
			return nil
		}
		tw := newTextTable(cmd.OutOrStdout(), []string{"id", "name", "rows", "cols", "saved"})
		for _, e := range entries {
			tw.Append([]string{
				shortID(e.ID), e.Name,
				fmt.Sprint(e.Rows), fmt.Sprint(e.Cols),
				e.SavedAt.Local().Format("2006-01-02 15:04"),
			})
		}
		tw.Render()
		return nil
	},
}

var librarySaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Save a dataset to the library",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t, err := loadTable(args[0], &libSaveLoad)
		if err != nil {
			return err
		}
		name := libSaveName
		if name == "" {
			name = filepath.Base(args[0])
		}
		return saveToLibrary(name, t)
	},
}

var libraryRemoveCmd = &cobra.Command{
	Use:   "remove <id|name>",
	Short: "Remove a saved dataset",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		if err := lib.Remove(args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
		return nil
	},
}

var libraryExportCmd = &cobra.Command{
	Use:   "export <id|name>",
	Short: "Write a saved dataset as CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		lib, err := openLibrary()
		if err != nil {
			return err
		}
		t, _, err := lib.Load(args[0], loader.DefaultOptions())
		if err != nil {
			return err
		}
		return writeTable(cmd.OutOrStdout(), libOutput, t)
	},
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func init() {
	rootCmd.AddCommand(libraryCmd)
	libraryCmd.AddCommand(libraryListCmd, librarySaveCmd, libraryRemoveCmd, libraryExportCmd)
	libSaveLoad.register(librarySaveCmd)
	librarySaveCmd.Flags().StringVar(&libSaveName, "name", "", "name to save under (default file name)")
	libraryExportCmd.Flags().StringVarP(&libOutput, "output", "o", "", "write the CSV here (default stdout)")
}

