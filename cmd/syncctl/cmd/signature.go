package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/erauner12/toolbridge-sync/internal/model"
)

var (
	sigVersion   int
	sigBlockSize int
)

var signatureCmd = &cobra.Command{
	Use:   "signature <item-id>",
	Short: "Print the block signature of a stored file version",
	Long: `Compute the rolling/strong checksum list for one version of an item's
content under blobRoot. Missing content prints an empty block list.

Examples:
  syncctl signature 3f1c...e9 --version 4
  syncctl signature 3f1c...e9 --version 4 --block-size 65536`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		itemID, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid item id %q: %w", args[0], err)
		}

		a, err := openApp(cmd)
		if err != nil {
			return err
		}
		defer a.Close()

		sig, err := a.Sync.GenerateFileSignature(cmd.Context(), itemID, sigVersion, sigBlockSize)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), sig)
	},
}

func init() {
	signatureCmd.Flags().IntVar(&sigVersion, "version", 0, "version number")
	signatureCmd.Flags().IntVar(&sigBlockSize, "block-size", model.DefaultBlockSize, "block size in bytes")
	rootCmd.AddCommand(signatureCmd)
}
