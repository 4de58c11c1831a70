package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "epaper-relay",
	Short: "Relay Kavita books to e-paper displays",
	Long: `epaper-relay turns Kavita chapters into 1-bit frames for small e-paper
panels driven by microcontrollers.

It can:
- Serve paginated text and dithered page images over HTTP
- Render local .txt, .epub and image files to png, bmp, raw or hex frames
- Export a chapter as a preview EPUB of rendered display pages`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}
