package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/alde/epaper-relay/pkg/kavita"
	"github.com/alde/epaper-relay/pkg/preview"
	"github.com/alde/epaper-relay/pkg/source"
)

var (
	exportFlags   displayFlags
	exportOutput  string
	exportFile    string
	exportChapter int
	exportPages   string
	exportWorkers int
	exportScale   int
	exportAuthor  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a chapter as a preview EPUB of rendered display pages",
	Long: `Render a chapter page by page, exactly as the display would show it, and
collect the frames in an EPUB for proofreading on a desktop reader. Chapters
come from Kavita (--chapter is the Kavita chapter id) or from a local file
(--file, where --chapter is the spine index for EPUBs).

Examples:
  epaper-relay export --chapter 1234 -o preview.epub
  epaper-relay export --file book.epub --chapter 2 --pages "0-9" -o ch2.epub
  epaper-relay export --chapter 88 --profile waveshare-2.9 --scale 3 -o small.epub`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportFlags.register(exportCmd)
	exportFlags.registerImage(exportCmd)
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output EPUB path (required)")
	exportCmd.Flags().StringVar(&exportFile, "file", "", "Local .txt, .epub or image file instead of Kavita")
	exportCmd.Flags().IntVar(&exportChapter, "chapter", 0, "Chapter id (Kavita) or index (local EPUB)")
	exportCmd.Flags().StringVar(&exportPages, "pages", "", "Page ranges to export, starting at 0 (e.g. \"0-4,10\"; default all)")
	exportCmd.Flags().IntVar(&exportWorkers, "workers", 0, "Number of worker goroutines (0 = auto)")
	exportCmd.Flags().IntVar(&exportScale, "scale", 1, "Enlarge pages by this factor in the preview")
	exportCmd.Flags().StringVar(&exportAuthor, "author", "", "Author metadata for the preview")

	exportCmd.MarkFlagRequired("output")
}

func runExport(cmd *cobra.Command, args []string) error {
	if ext := strings.ToLower(filepath.Ext(exportOutput)); ext != ".epub" {
		return fmt.Errorf("unsupported output format: %s (only .epub is supported)", ext)
	}

	pages, err := preview.ParsePageRanges(exportPages)
	if err != nil {
		return fmt.Errorf("invalid page range: %w", err)
	}

	settings, err := loadSettings(cmd, &exportFlags)
	if err != nil {
		return err
	}
	dither, err := exportFlags.ditherer(cmd, settings)
	if err != nil {
		return err
	}
	logger, err := newLogger(settings)
	if err != nil {
		return err
	}

	var fetcher source.Fetcher
	if exportFile != "" {
		file, err := source.OpenFile(exportFile, source.NewTextCleaner(settings.CleanOptions()))
		if err != nil {
			return fmt.Errorf("input validation failed: %w", err)
		}
		defer file.Close()
		fetcher = file
	} else {
		kavitaCfg := settings.KavitaConfig()
		kavitaCfg.Logger = logger
		client, err := kavita.New(kavitaCfg)
		if err != nil {
			return err
		}
		fetcher = source.NewKavitaSource(client, source.NewTextCleaner(settings.CleanOptions()), logger)
	}

	pipeline, err := newPipeline(settings, fetcher, logger)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if verbose {
		fmt.Printf("Exporting chapter %d, pages %s\n", exportChapter, pages)
		fmt.Printf("Display: %dx%d, font %.0fpx, dither %s\n",
			settings.DisplayWidth, settings.DisplayHeight, settings.FontSize, dither.Mode)
	}

	stats, err := preview.Export(ctx, pipeline, preview.ExportOptions{
		ChapterID: exportChapter,
		Pages:     pages,
		Dither:    dither,
		Normalize: exportFlags.normalize(),
		Workers:   exportWorkers,
		Book:      preview.BookOptions{Author: exportAuthor, Scale: exportScale},
		Output:    exportOutput,
		Progress:  os.Stdout,
		Verbose:   verbose,
	})
	if err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	displayExportResults(stats)
	return nil
}

func displayExportResults(stats preview.ExportStats) {
	fmt.Printf("\n=== Export Complete ===\n")
	fmt.Printf("Chapter:      %s (%s)\n", stats.Title, stats.Kind)
	fmt.Printf("Pages:        %s of %s\n", humanize.Comma(int64(stats.Rendered)), humanize.Comma(int64(stats.TotalPages)))
	fmt.Printf("Frame data:   %s\n", humanize.Bytes(stats.FrameBytes))
	fmt.Printf("Preview size: %s\n", humanize.Bytes(uint64(stats.OutputBytes)))
	fmt.Printf("Time:         %v\n", stats.Duration.Round(time.Millisecond))
	fmt.Printf("Output:       %s\n", exportOutput)
}
