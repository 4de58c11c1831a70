package display

import (
	"github.com/alde/epaper-relay/pkg/raster"
)

// PanelCapabilities defines what an e-paper panel and its driver expect
type PanelCapabilities struct {
	// Panel geometry, in the orientation the client draws
	Width  int
	Height int
	DPI    int

	// Frame buffer convention
	BitsPerPixel int    // always 1 for the panels the relay targets
	WhiteBit     uint8  // value of a white pixel in the packed frame
	BitOrder     string // "msb": leftmost pixel in the most significant bit

	// Rendering defaults
	DefaultFontSize float64 // pixels
	PreferredDither raster.DitherMode
	PreferredFormat raster.Format

	// Refresh characteristics, informational
	FullRefreshSeconds float64
	SupportsPartial    bool
}

// Profile is a named e-paper panel
type Profile struct {
	Name         string
	Manufacturer string
	Model        string
	Capabilities PanelCapabilities
}

// FrameBytes returns the size of one packed frame for the panel.
func (p *Profile) FrameBytes() int {
	return raster.Stride(p.Capabilities.Width) * p.Capabilities.Height
}

// RenderSettings returns the pipeline parameters for this panel.
func (p *Profile) RenderSettings() RenderSettings {
	return RenderSettings{
		Width:    p.Capabilities.Width,
		Height:   p.Capabilities.Height,
		FontSize: p.Capabilities.DefaultFontSize,
		Dither:   p.Capabilities.PreferredDither,
		Format:   p.Capabilities.PreferredFormat,
	}
}

// RenderSettings contains the pipeline parameters derived from a profile
type RenderSettings struct {
	Width    int
	Height   int
	FontSize float64
	Dither   raster.DitherMode
	Format   raster.Format
}
