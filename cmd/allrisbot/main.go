package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "allrisbot",
		Short: "Announce newly published council papers on Mastodon",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "config.yaml", "config file")

	root.AddCommand(runCmd())
	root.AddCommand(daemonCmd())
	root.AddCommand(previewCmd())

	return root
}

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Perform one fetch-diff-publish-record cycle",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOnce(cfgFile)
		},
	}
}

func daemonCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run cycles on a timer until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cfgFile)
		},
	}
}

func previewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview",
		Short: "Print the statuses a run would post, without posting",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPreview(cfgFile)
		},
	}
}
