package cli

import (
	"fmt"
	"path"

	"github.com/BenjaminSRussell/crawlaudit/internal/audit"
	"github.com/BenjaminSRussell/crawlaudit/internal/config"
	"github.com/BenjaminSRussell/crawlaudit/internal/index"
	"github.com/BenjaminSRussell/crawlaudit/internal/storage"
	"github.com/BenjaminSRussell/crawlaudit/internal/types"
	"github.com/spf13/cobra"
)

var reindexOutput string

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild index.html for an existing output directory",
	Long:  `Rebuild the root index.html from the report directories already in the output directory`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store := storage.NewStore(reindexOutput)

		dirs, err := store.ListDirs()
		if err != nil {
			return err
		}

		// Recover each key's URL from its saved report when there is one
		labels := make(map[string]string, len(dirs))
		for _, dir := range dirs {
			dataPath := path.Join(dir, audit.DataFile)
			if !store.Exists(dataPath) {
				continue
			}
			var data types.PageAudit
			if err := store.Load(dataPath, &data); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Warning: skipping label for %s: %v\n", dir, err)
				continue
			}
			if data.URL != "" {
				labels[dir] = data.URL
			}
		}

		n, err := index.Build(store, index.WithLabels(labels))
		if err != nil {
			return fmt.Errorf("reindex failed: %w", err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d report directories in %s\n", n, store.Root())
		return nil
	},
}

func init() {
	reindexCmd.Flags().StringVarP(&reindexOutput, "output", "o", config.DefaultOutput, "Output directory")
}
