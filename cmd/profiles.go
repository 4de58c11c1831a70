package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alde/epaper-relay/pkg/display"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List supported display profiles",
	Long: `List the built-in e-paper panel profiles. Select one with DISPLAY_PROFILE
or --profile; individual settings such as FONT_SIZE still override it.`,
	Args: cobra.NoArgs,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tPANEL\tSIZE\tFONT\tDITHER\tFORMAT\tFRAME")

	for _, name := range display.Names() {
		p, err := display.GetProfile(name)
		if err != nil {
			return err
		}
		c := p.Capabilities
		marker := ""
		if name == display.DefaultProfile {
			marker = " (default)"
		}
		fmt.Fprintf(w, "%s%s\t%s %s\t%dx%d\t%.0fpx\t%s\t%s\t%s\n",
			name, marker, p.Manufacturer, p.Model, c.Width, c.Height,
			c.DefaultFontSize, c.PreferredDither, c.PreferredFormat, humanize.Bytes(uint64(p.FrameBytes())))

		if verbose {
			fmt.Fprintf(w, "\t%d dpi, full refresh %.1fs, partial refresh: %t\t\t\t\t\t\n",
				c.DPI, c.FullRefreshSeconds, c.SupportsPartial)
		}
	}

	return w.Flush()
}
