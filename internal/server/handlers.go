package server

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alde/epaper-relay/pkg/kavita"
	"github.com/alde/epaper-relay/pkg/raster"
	"github.com/alde/epaper-relay/pkg/relay"
)

type displayInfo struct {
	Width    int     `json:"width"`
	Height   int     `json:"height"`
	FontSize float64 `json:"font_size,omitempty"`
	Profile  string  `json:"profile,omitempty"`
}

func (s *Server) display() displayInfo {
	return displayInfo{
		Width:    s.settings.DisplayWidth,
		Height:   s.settings.DisplayHeight,
		FontSize: s.settings.FontSize,
		Profile:  s.settings.DisplayProfile,
	}
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"message": "Kavita e-paper relay",
		"version": s.version,
		"display": displayInfo{Width: s.settings.DisplayWidth, Height: s.settings.DisplayHeight},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "healthy",
		"kavita": map[string]any{
			"connected": s.kavita.Connected(),
			"base_url":  s.kavita.BaseURL(),
		},
		"display": s.display(),
	})
}

func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	libraries, err := s.kavita.Libraries(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(libraries))
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	libraryID, err := pathID(r, "library_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	series, err := s.kavita.Series(r.Context(), libraryID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(series))
}

func (s *Server) handleChapters(w http.ResponseWriter, r *http.Request) {
	seriesID, err := pathID(r, "series_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	chapters, err := s.kavita.Chapters(r.Context(), seriesID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(chapters))
}

// chapterInfo merges Kavita's chapter record with the display page count.
type chapterInfo struct {
	ChapterID  int    `json:"chapter_id"`
	Title      string `json:"title"`
	Kind       string `json:"kind"`
	Format     string `json:"format"`
	TotalPages int    `json:"total_pages"`
	Number     string `json:"number"`
	VolumeID   int    `json:"volumeId"`
	SeriesID   int    `json:"seriesId"`
	LibraryID  int    `json:"libraryId"`
}

func (s *Server) handleChapterInfo(w http.ResponseWriter, r *http.Request) {
	chapterID, err := pathID(r, "chapter_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	fontSize, err := floatParam(q, "font_size")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	info, err := s.kavita.ChapterInfo(r.Context(), chapterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	summary, err := s.pipeline.Describe(r.Context(), chapterID, fontSize)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, chapterInfo{
		ChapterID:  chapterID,
		Title:      summary.Title,
		Kind:       summary.Kind,
		Format:     info.SeriesFormat.String(),
		TotalPages: summary.Pages,
		Number:     info.ChapterNumber,
		VolumeID:   info.VolumeID,
		SeriesID:   info.SeriesID,
		LibraryID:  info.LibraryID,
	})
}

func (s *Server) handleChapterText(w http.ResponseWriter, r *http.Request) {
	chapterID, err := pathID(r, "chapter_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	req := relay.TextRequest{ChapterID: chapterID}
	if req.Page, err = pageParam(q); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Format, err = raster.ParseFormat(q.Get("format")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.FontSize, err = floatParam(q, "font_size"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Dither, err = ditherParams(q); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.pipeline.RenderText(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeFrame(w, res)
}

func (s *Server) handleChapterImage(w http.ResponseWriter, r *http.Request) {
	chapterID, err := pathID(r, "chapter_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	req := relay.ImageRequest{ChapterID: chapterID}
	if req.Page, err = pageParam(q); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Format, err = raster.ParseFormat(q.Get("format")); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Dither, err = ditherParams(q); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Normalize.AutoRotate, err = boolParam(q, "rotate"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Normalize.Enhance, err = boolParam(q, "enhance"); err != nil {
		s.writeError(w, r, err)
		return
	}

	res, err := s.pipeline.RenderImage(r.Context(), req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.Header().Set("X-Dither-Mode", string(req.Dither.Mode))
	writeFrame(w, res)
}

func (s *Server) handleGetProgress(w http.ResponseWriter, r *http.Request) {
	chapterID, err := pathID(r, "chapter_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	p, err := s.kavita.Progress(r.Context(), chapterID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleSaveProgress(w http.ResponseWriter, r *http.Request) {
	chapterID, err := pathID(r, "chapter_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	q := r.URL.Query()
	p := kavita.Progress{ChapterID: chapterID}
	for _, field := range []struct {
		name string
		dst  *int
	}{
		{"page", &p.PageNum},
		{"volume_id", &p.VolumeID},
		{"series_id", &p.SeriesID},
		{"library_id", &p.LibraryID},
	} {
		if *field.dst, err = requiredInt(q, field.name); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	if err := s.kavita.SaveProgress(r.Context(), p); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chapter_id": chapterID, "page": p.PageNum})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	chapterID, err := pathID(r, "chapter_id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	if err := s.kavita.MarkRead(r.Context(), chapterID); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "chapter_id": chapterID})
}

func pathID(r *http.Request, name string) (int, error) {
	v := r.PathValue(name)
	id, err := strconv.Atoi(v)
	if err != nil || id < 0 {
		return 0, badRequest{fmt.Errorf("%s: '%s' is not a valid id", name, v)}
	}
	return id, nil
}

func pageParam(q url.Values) (int, error) {
	v := strings.TrimSpace(q.Get("page"))
	if v == "" {
		return 0, nil
	}
	page, err := strconv.Atoi(v)
	if err != nil || page < 0 {
		return 0, badRequest{fmt.Errorf("page: '%s' must be a non-negative integer", v)}
	}
	return page, nil
}

func requiredInt(q url.Values, name string) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, badRequest{fmt.Errorf("%s is required", name)}
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, badRequest{fmt.Errorf("%s: '%s' must be a non-negative integer", name, v)}
	}
	return n, nil
}

func floatParam(q url.Values, name string) (float64, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 || f > 200 {
		return 0, badRequest{fmt.Errorf("%s: '%s' must be a number between 0 and 200", name, v)}
	}
	return f, nil
}

func boolParam(q url.Values, name string) (bool, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, badRequest{fmt.Errorf("%s: '%s' is not a boolean", name, v)}
	}
	return b, nil
}

func ditherParams(q url.Values) (raster.Ditherer, error) {
	mode, err := raster.ParseDitherMode(q.Get("dither"))
	if err != nil {
		return raster.Ditherer{}, badRequest{err}
	}

	depth, err := raster.ParseColorMode(q.Get("color_mode"))
	if err != nil {
		return raster.Ditherer{}, badRequest{err}
	}

	d := raster.Ditherer{Mode: mode, Color: depth}
	if v := strings.TrimSpace(q.Get("threshold")); v != "" {
		t, err := strconv.Atoi(v)
		if err != nil || t < 1 || t > 255 {
			return raster.Ditherer{}, badRequest{fmt.Errorf("threshold: '%s' must be between 1 and 255", v)}
		}
		d.Threshold = uint8(t)
	}
	return d, nil
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
