package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alde/epaper-relay/pkg/raster"
	"github.com/alde/epaper-relay/pkg/relay"
	"github.com/alde/epaper-relay/pkg/source"
)

var (
	renderFlags   displayFlags
	renderOutput  string
	renderFormat  string
	renderChapter int
	renderPage    int
	renderASCII   bool
)

var renderCmd = &cobra.Command{
	Use:   "render [input file]",
	Short: "Render one page of a local file as an e-paper frame",
	Long: `Render a page of a local .txt, .epub or image file exactly as the relay
would serve it. EPUB chapters are numbered by their position in the spine,
starting at 0.

Examples:
  epaper-relay render chapter.txt -o page.png
  epaper-relay render book.epub --chapter 3 --page 2 --format raw -o frame.bin
  epaper-relay render scan.jpg --profile waveshare-7.5 --dither atkinson -o scan.bmp`,
	Args: cobra.ExactArgs(1),
	RunE: runRender,
}

func init() {
	rootCmd.AddCommand(renderCmd)

	renderFlags.register(renderCmd)
	renderFlags.registerImage(renderCmd)
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Output file path (default: input name with the format's extension)")
	renderCmd.Flags().StringVarP(&renderFormat, "format", "f", "png", "Output format (png, bmp, raw, hex)")
	renderCmd.Flags().IntVar(&renderChapter, "chapter", 0, "EPUB chapter index")
	renderCmd.Flags().IntVarP(&renderPage, "page", "p", 0, "Page to render, starting at 0")
	renderCmd.Flags().BoolVar(&renderASCII, "ascii", false, "Fold typographic punctuation to ASCII")
}

func runRender(cmd *cobra.Command, args []string) error {
	inputPath := args[0]

	settings, err := loadSettings(cmd, &renderFlags)
	if err != nil {
		return err
	}
	format, err := raster.ParseFormat(renderFormat)
	if err != nil {
		return err
	}
	dither, err := renderFlags.ditherer(cmd, settings)
	if err != nil {
		return err
	}
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}

	cleanOpts := settings.CleanOptions()
	cleanOpts.ASCIIPunctuation = renderASCII
	cleaner := source.NewTextCleaner(cleanOpts)
	file, err := source.OpenFile(inputPath, cleaner)
	if err != nil {
		return fmt.Errorf("input validation failed: %w", err)
	}
	defer file.Close()

	if verbose {
		fmt.Printf("Input: %s (%s, %d chapters)\n", inputPath, file.MIME(), file.ChapterCount())
		fmt.Printf("Display: %dx%d, font %.0fpx\n", settings.DisplayWidth, settings.DisplayHeight, settings.FontSize)
	}

	pipeline, err := newPipeline(settings, file, logger)
	if err != nil {
		return err
	}

	ctx := context.Background()
	var res *relay.Result
	if file.Kind() == source.FileImage {
		res, err = pipeline.RenderImage(ctx, relay.ImageRequest{
			ChapterID: renderChapter,
			Page:      renderPage,
			Format:    format,
			Dither:    dither,
			Normalize: renderFlags.normalize(),
		})
	} else {
		res, err = pipeline.RenderText(ctx, relay.TextRequest{
			ChapterID: renderChapter,
			Page:      renderPage,
			Format:    format,
			Dither:    dither,
		})
	}
	if err != nil {
		return err
	}

	outputPath := renderOutput
	if outputPath == "" {
		outputPath = strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + format.Extension()
	}
	if err := writeFrameFile(outputPath, res); err != nil {
		return err
	}

	fmt.Printf("Rendered page %d/%d of '%s' to %s (%s, %s)\n",
		res.Page+1, res.TotalPages, res.Title, outputPath, res.Mode, humanize.Bytes(res.Stats.OutputBytes))
	return nil
}

// writeFrameFile stores an encoded frame. Hex frames are written as text (easier to paste into firmware).
func writeFrameFile(path string, res *relay.Result) error {
	data := res.Data
	if res.Format == raster.FormatHex {
		data = []byte(res.Hex + "\n")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
