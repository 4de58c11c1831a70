package display

import (
	"fmt"
	"sort"
	"strings"

	"github.com/alde/epaper-relay/pkg/raster"
)

// DefaultProfile is the panel the relay was built around.
const DefaultProfile = "waveshare-4.2"

// Available panel profiles
var profiles = map[string]Profile{
	"waveshare-4.2": {
		Name:         "Waveshare 4.2inch e-Paper Module",
		Manufacturer: "Waveshare",
		Model:        "4.2inch e-Paper (B/W)",
		Capabilities: PanelCapabilities{
			Width:  400,
			Height: 300,
			DPI:    119,

			BitsPerPixel: 1,
			WhiteBit:     raster.White,
			BitOrder:     "msb",

			DefaultFontSize: 16,
			PreferredDither: raster.DitherFloydSteinberg,
			PreferredFormat: raster.FormatRaw,

			FullRefreshSeconds: 4,
			SupportsPartial:    true,
		},
	},
	"waveshare-2.9": {
		Name:         "Waveshare 2.9inch e-Paper Module",
		Manufacturer: "Waveshare",
		Model:        "2.9inch e-Paper V2",
		Capabilities: PanelCapabilities{
			Width:  296,
			Height: 128,
			DPI:    112,

			BitsPerPixel: 1,
			WhiteBit:     raster.White,
			BitOrder:     "msb",

			DefaultFontSize: 12, // small panel, keep more words per line
			PreferredDither: raster.DitherFloydSteinberg,
			PreferredFormat: raster.FormatRaw,

			FullRefreshSeconds: 3,
			SupportsPartial:    true,
		},
	},
	"waveshare-7.5": {
		Name:         "Waveshare 7.5inch e-Paper HAT",
		Manufacturer: "Waveshare",
		Model:        "7.5inch e-Paper V2",
		Capabilities: PanelCapabilities{
			Width:  800,
			Height: 480,
			DPI:    124,

			BitsPerPixel: 1,
			WhiteBit:     raster.White,
			BitOrder:     "msb",

			DefaultFontSize: 22,
			PreferredDither: raster.DitherFloydSteinberg,
			PreferredFormat: raster.FormatRaw,

			FullRefreshSeconds: 5,
			SupportsPartial:    false,
		},
	},
	"lilygo-t5-2.13": {
		Name:         "LilyGO T5 2.13inch",
		Manufacturer: "LilyGO",
		Model:        "T5 V2.3 2.13inch",
		Capabilities: PanelCapabilities{
			Width:  250,
			Height: 122,
			DPI:    130,

			BitsPerPixel: 1,
			WhiteBit:     raster.White,
			BitOrder:     "msb",

			DefaultFontSize: 12,
			PreferredDither: raster.DitherThreshold, // text-first board, crisp edges read better
			PreferredFormat: raster.FormatHex,

			FullRefreshSeconds: 2,
			SupportsPartial:    true,
		},
	},
	"inkplate-6": {
		Name:         "Inkplate 6",
		Manufacturer: "Soldered",
		Model:        "Inkplate 6 (1-bit mode)",
		Capabilities: PanelCapabilities{
			Width:  800,
			Height: 600,
			DPI:    166,

			BitsPerPixel: 1,
			WhiteBit:     raster.White,
			BitOrder:     "msb",

			DefaultFontSize: 24,
			PreferredDither: raster.DitherAtkinson,
			PreferredFormat: raster.FormatRaw,

			FullRefreshSeconds: 1.2,
			SupportsPartial:    true,
		},
	},
}

// GetProfile returns a panel profile by name
func GetProfile(name string) (Profile, error) {
	normalizedName := strings.ToLower(strings.TrimSpace(name))

	if profile, exists := profiles[normalizedName]; exists {
		return profile, nil
	}

	return Profile{}, fmt.Errorf("unknown display profile '%s'. Available profiles: %v", name, Names())
}

// ListProfiles returns all available panel profiles
func ListProfiles() map[string]Profile {
	return profiles
}

// Names returns the profile keys in sorted order.
func Names() []string {
	names := make([]string, 0, len(profiles))
	for key := range profiles {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}
