package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alde/epaper-relay/pkg/display"
	"github.com/alde/epaper-relay/pkg/kavita"
	"github.com/alde/epaper-relay/pkg/source"
)

// Settings is the relay configuration. It is loaded once at startup and
// treated as read-only afterwards.
type Settings struct {
	KavitaBaseURL    string
	KavitaAPIKey     string
	KavitaPluginName string
	KavitaTimeout    time.Duration
	KavitaRateLimit  float64 // requests per second, 0 disables limiting

	DisplayProfile string
	DisplayWidth   int
	DisplayHeight  int
	FontSize       float64
	FontPath       string
	LineSpacing    int
	PageMargin     int

	BreakLongWords  bool // split words wider than a line instead of overflowing
	ParagraphBreaks bool // keep a blank line between paragraphs

	ServerHost string
	ServerPort int

	LogLevel  string
	LogFormat string
}

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	p, _ := display.GetProfile(display.DefaultProfile)
	return Settings{
		KavitaBaseURL:    kavita.DefaultBaseURL,
		KavitaPluginName: kavita.DefaultPluginName,
		KavitaTimeout:    kavita.DefaultTimeout,

		DisplayProfile: display.DefaultProfile,
		DisplayWidth:   p.Capabilities.Width,
		DisplayHeight:  p.Capabilities.Height,
		FontSize:       p.Capabilities.DefaultFontSize,
		LineSpacing:    5,
		PageMargin:     10,

		ServerHost: "0.0.0.0",
		ServerPort: 8000,

		LogLevel:  "INFO",
		LogFormat: "text",
	}
}

// LookupFunc reads one configuration variable, like os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// FromEnv loads settings from the process environment.
func FromEnv() (Settings, error) {
	return Load(os.LookupEnv)
}

// Load builds settings from defaults, then the display profile, then
// individual variables, and validates the result. All parse errors are
// reported together.
func Load(lookup LookupFunc) (Settings, error) {
	s := Defaults()
	var errs []error

	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		if !ok {
			return "", false
		}
		v = strings.TrimSpace(v)
		return v, v != ""
	}

	str := func(key string, dst *string) {
		if v, ok := get(key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid integer '%s'", key, v))
				return
			}
			*dst = n
		}
	}
	float := func(key string, dst *float64) {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid number '%s'", key, v))
				return
			}
			*dst = f
		}
	}

	boolean := func(key string, dst *bool) {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: invalid boolean '%s'", key, v))
				return
			}
			*dst = b
		}
	}

	if name, ok := get("DISPLAY_PROFILE"); ok {
		p, err := display.GetProfile(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("DISPLAY_PROFILE: %w", err))
		} else {
			s.ApplyProfile(name, p)
		}
	}

	str("KAVITA_BASE_URL", &s.KavitaBaseURL)
	str("KAVITA_API_KEY", &s.KavitaAPIKey)
	str("KAVITA_PLUGIN_NAME", &s.KavitaPluginName)
	if v, ok := get("KAVITA_TIMEOUT"); ok {
		d, err := parseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("KAVITA_TIMEOUT: %w", err))
		} else {
			s.KavitaTimeout = d
		}
	}
	float("KAVITA_RATE_LIMIT", &s.KavitaRateLimit)

	integer("DISPLAY_WIDTH", &s.DisplayWidth)
	integer("DISPLAY_HEIGHT", &s.DisplayHeight)
	float("FONT_SIZE", &s.FontSize)
	str("FONT_PATH", &s.FontPath)
	integer("LINE_SPACING", &s.LineSpacing)
	integer("PAGE_MARGIN", &s.PageMargin)
	boolean("BREAK_LONG_WORDS", &s.BreakLongWords)
	boolean("PARAGRAPH_BREAKS", &s.ParagraphBreaks)

	str("SERVER_HOST", &s.ServerHost)
	integer("SERVER_PORT", &s.ServerPort)

	str("LOG_LEVEL", &s.LogLevel)
	str("LOG_FORMAT", &s.LogFormat)

	if len(errs) > 0 {
		return Settings{}, errors.Join(errs...)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// ApplyProfile copies a panel's geometry and font size into the settings.
func (s *Settings) ApplyProfile(name string, p display.Profile) {
	s.DisplayProfile = strings.ToLower(strings.TrimSpace(name))
	s.DisplayWidth = p.Capabilities.Width
	s.DisplayHeight = p.Capabilities.Height
	s.FontSize = p.Capabilities.DefaultFontSize
}

// Validate checks the settings for values the pipeline cannot work with.
func (s Settings) Validate() error {
	var errs []error

	if u, err := url.Parse(s.KavitaBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("KAVITA_BASE_URL: '%s' is not an absolute URL", s.KavitaBaseURL))
	}
	if s.KavitaTimeout <= 0 {
		errs = append(errs, fmt.Errorf("KAVITA_TIMEOUT: must be positive"))
	}
	if s.KavitaRateLimit < 0 {
		errs = append(errs, fmt.Errorf("KAVITA_RATE_LIMIT: must not be negative"))
	}
	if s.DisplayWidth <= 0 || s.DisplayHeight <= 0 {
		errs = append(errs, fmt.Errorf("display size %dx%d must be positive", s.DisplayWidth, s.DisplayHeight))
	}
	if s.FontSize <= 0 {
		errs = append(errs, fmt.Errorf("FONT_SIZE: must be positive"))
	}
	if s.LineSpacing < 0 {
		errs = append(errs, fmt.Errorf("LINE_SPACING: must not be negative"))
	}
	if s.PageMargin < 0 || 2*s.PageMargin >= s.DisplayWidth || 2*s.PageMargin >= s.DisplayHeight {
		errs = append(errs, fmt.Errorf("PAGE_MARGIN: %d leaves no room on a %dx%d display", s.PageMargin, s.DisplayWidth, s.DisplayHeight))
	}
	if s.FontPath != "" {
		if _, err := os.Stat(s.FontPath); err != nil {
			errs = append(errs, fmt.Errorf("FONT_PATH: %w", err))
		}
	}
	if s.ServerPort <= 0 || s.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT: %d out of range", s.ServerPort))
	}
	if _, err := ParseLevel(s.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
	}
	if f := strings.ToLower(s.LogFormat); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("LOG_FORMAT: '%s' (valid: text, json)", s.LogFormat))
	}

	return errors.Join(errs...)
}

// Addr returns the listen address.
func (s Settings) Addr() string {
	return net.JoinHostPort(s.ServerHost, strconv.Itoa(s.ServerPort))
}

// KavitaConfig returns the client configuration derived from the settings.
func (s Settings) KavitaConfig() kavita.Config {
	return kavita.Config{
		BaseURL:    s.KavitaBaseURL,
		APIKey:     s.KavitaAPIKey,
		PluginName: s.KavitaPluginName,
		Timeout:    s.KavitaTimeout,
		RateLimit:  s.KavitaRateLimit,
	}
}

// CleanOptions returns the text cleanup matching the layout settings.
func (s Settings) CleanOptions() source.CleanOptions {
	return source.CleanOptions{KeepParagraphBreaks: s.ParagraphBreaks}
}

// parseDuration accepts Go durations ("30s") or plain seconds ("30").
func parseDuration(v string) (time.Duration, error) {
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid duration '%s'", v)
	}
	return d, nil
}
