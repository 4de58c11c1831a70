package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/alde/epaper-relay/pkg/config"
	"github.com/alde/epaper-relay/pkg/display"
	"github.com/alde/epaper-relay/pkg/raster"
	"github.com/alde/epaper-relay/pkg/relay"
	"github.com/alde/epaper-relay/pkg/source"
)

// displayFlags are the rendering overrides shared by every command.
type displayFlags struct {
	profile     string
	width       int
	height      int
	fontSize    float64
	fontPath    string
	margin      int
	lineSpacing int
	breakWords  bool
	paragraphs  bool
	dither      string
	threshold   int
	colorMode   string
	rotate      bool
	enhance     bool
}

func (f *displayFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.profile, "profile", "", "Display profile (see 'profiles')")
	cmd.Flags().IntVar(&f.width, "width", 0, "Display width in pixels")
	cmd.Flags().IntVar(&f.height, "height", 0, "Display height in pixels")
	cmd.Flags().Float64Var(&f.fontSize, "font-size", 0, "Font size in pixels")
	cmd.Flags().StringVar(&f.fontPath, "font", "", "TrueType/OpenType font file (default: Go Regular)")
	cmd.Flags().IntVar(&f.margin, "margin", -1, "Page margin in pixels")
	cmd.Flags().IntVar(&f.lineSpacing, "line-spacing", -1, "Extra pixels between lines")
	cmd.Flags().BoolVar(&f.breakWords, "break-words", false, "Split words wider than a line")
	cmd.Flags().BoolVar(&f.paragraphs, "paragraph-breaks", false, "Keep a blank line between paragraphs")
}

func (f *displayFlags) registerImage(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.dither, "dither", "floyd-steinberg", "Dither mode (floyd-steinberg, threshold, none, atkinson, bayer)")
	cmd.Flags().IntVar(&f.threshold, "threshold", 0, "Threshold for floyd-steinberg and threshold modes (0 = 127)")
	cmd.Flags().StringVar(&f.colorMode, "color-mode", "1bit", "Frame depth (1bit, 4level)")
	cmd.Flags().BoolVar(&f.rotate, "rotate", false, "Rotate portrait pages on landscape displays")
	cmd.Flags().BoolVar(&f.enhance, "enhance", false, "Boost contrast and sharpness before dithering")
}

// apply layers explicitly set flags over the environment settings.
func (f *displayFlags) apply(cmd *cobra.Command, s *config.Settings) error {
	changed := cmd.Flags().Changed

	if changed("profile") {
		p, err := display.GetProfile(f.profile)
		if err != nil {
			return err
		}
		s.ApplyProfile(f.profile, p)
	}
	if changed("width") {
		s.DisplayWidth = f.width
	}
	if changed("height") {
		s.DisplayHeight = f.height
	}
	if changed("font-size") {
		s.FontSize = f.fontSize
	}
	if changed("font") {
		s.FontPath = f.fontPath
	}
	if changed("margin") {
		s.PageMargin = f.margin
	}
	if changed("line-spacing") {
		s.LineSpacing = f.lineSpacing
	}
	if changed("break-words") {
		s.BreakLongWords = f.breakWords
	}
	if changed("paragraph-breaks") {
		s.ParagraphBreaks = f.paragraphs
	}

	return s.Validate()
}

// ditherer resolves --dither, falling back to the panel's preferred mode.
func (f *displayFlags) ditherer(cmd *cobra.Command, s config.Settings) (raster.Ditherer, error) {
	name := f.dither
	if !cmd.Flags().Changed("dither") {
		if p, err := display.GetProfile(s.DisplayProfile); err == nil {
			name = string(p.Capabilities.PreferredDither)
		}
	}

	mode, err := raster.ParseDitherMode(name)
	if err != nil {
		return raster.Ditherer{}, err
	}
	if f.threshold < 0 || f.threshold > 255 {
		return raster.Ditherer{}, fmt.Errorf("threshold %d must be between 0 and 255", f.threshold)
	}
	depth, err := raster.ParseColorMode(f.colorMode)
	if err != nil {
		return raster.Ditherer{}, err
	}
	return raster.Ditherer{Mode: mode, Threshold: uint8(f.threshold), Color: depth}, nil
}

func (f *displayFlags) normalize() raster.NormalizeOptions {
	return raster.NormalizeOptions{AutoRotate: f.rotate, Enhance: f.enhance}
}

// loadSettings reads the environment and applies flag overrides.
func loadSettings(cmd *cobra.Command, flags *displayFlags) (config.Settings, error) {
	s, err := config.FromEnv()
	if err != nil {
		return s, fmt.Errorf("configuration error: %w", err)
	}
	if err := flags.apply(cmd, &s); err != nil {
		return s, fmt.Errorf("configuration error: %w", err)
	}
	return s, nil
}

func newLogger(s config.Settings) (*slog.Logger, error) {
	level := s.LogLevel
	if verbose {
		level = "DEBUG"
	}
	return config.NewLogger(os.Stderr, level, s.LogFormat)
}

func newPipeline(s config.Settings, fetcher source.Fetcher, logger *slog.Logger) (*relay.Pipeline, error) {
	font, err := raster.LoadFont(s.FontPath)
	if err != nil {
		return nil, err
	}

	return relay.New(fetcher, relay.Options{
		Width:           s.DisplayWidth,
		Height:          s.DisplayHeight,
		FontSize:        s.FontSize,
		Font:            font,
		Margin:          s.PageMargin,
		LineSpacing:     s.LineSpacing,
		BreakLongWords:  s.BreakLongWords,
		ParagraphBreaks: s.ParagraphBreaks,
		Logger:          logger,
	})
}
