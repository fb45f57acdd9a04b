package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/yolodolo42/txflow/internal/storage"
	"github.com/yolodolo42/txflow/internal/ui"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <uri>",
	Short: "Download an ipfs:// or http(s):// resource",
	Long: `Download a resource. ipfs:// URIs resolve through ipfs_gateway, or the
client's first-party gateway when none is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringP("output", "o", "", "Write to this file instead of stdout")
}

func runFetch(cmd *cobra.Command, args []string) error {
	output, _ := cmd.Flags().GetString("output")

	cl, err := current.client()
	if err != nil {
		return err
	}

	data, err := storage.Download(cmd.Context(), cl, args[0])
	if err != nil {
		return err
	}

	if output == "" {
		_, err = os.Stdout.Write(data)
		return err
	}
	if err := os.WriteFile(output, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintln(os.Stderr, ui.Success(fmt.Sprintf("Wrote %d bytes to %s", len(data), output)))
	return nil
}
