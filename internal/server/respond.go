package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/alde/epaper-relay/pkg/kavita"
	"github.com/alde/epaper-relay/pkg/raster"
	"github.com/alde/epaper-relay/pkg/relay"
	"github.com/alde/epaper-relay/pkg/source"
)

// errorBody is the JSON error payload. Page errors carry their position.
type errorBody struct {
	Detail     string `json:"detail"`
	ChapterID  *int   `json:"chapter_id,omitempty"`
	Page       *int   `json:"page,omitempty"`
	TotalPages *int   `json:"total_pages,omitempty"`
}

// hexFrame is the JSON body of format=hex responses.
type hexFrame struct {
	Hex         string `json:"hex"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ColorMode   string `json:"color_mode"`
	TotalPages  int    `json:"total_pages"`
	CurrentPage int    `json:"current_page"`
}

// badRequest marks query validation failures.
type badRequest struct {
	err error
}

func (e badRequest) Error() string { return e.err.Error() }
func (e badRequest) Unwrap() error { return e.err }

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps pipeline and upstream errors to HTTP statuses.
func statusFor(err error) int {
	var br badRequest
	switch {
	case errors.As(err, &br), errors.Is(err, raster.ErrUnsupportedFormat):
		return http.StatusBadRequest
	case errors.Is(err, raster.ErrPageOutOfRange),
		errors.Is(err, source.ErrChapterNotFound),
		errors.Is(err, kavita.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, raster.ErrDecodeFailure):
		return http.StatusUnprocessableEntity
	case errors.Is(err, kavita.ErrUpstreamUnavailable):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	body := errorBody{Detail: err.Error()}

	var pageErr *relay.PageError
	if errors.As(err, &pageErr) {
		body.ChapterID = &pageErr.ChapterID
		body.Page = &pageErr.Page
		body.TotalPages = &pageErr.Total
	}

	level := slog.LevelWarn
	if status >= 500 {
		level = slog.LevelError
	}
	s.logger.Log(r.Context(), level, "request failed", "path", r.URL.Path, "status", status, "error", err)

	writeJSON(w, status, body)
}

// writeFrame sends an encoded page. Hex frames are JSON; everything else is
// the encoded bytes with geometry headers.
func writeFrame(w http.ResponseWriter, res *relay.Result) {
	if res.Format == raster.FormatHex {
		writeJSON(w, http.StatusOK, hexFrame{
			Hex:         res.Hex,
			Width:       res.Width,
			Height:      res.Height,
			ColorMode:   string(res.Mode),
			TotalPages:  res.TotalPages,
			CurrentPage: res.Page,
		})
		return
	}

	h := w.Header()
	h.Set("Content-Type", res.Format.ContentType())
	h.Set("Content-Length", strconv.Itoa(len(res.Data)))
	h.Set("X-Image-Width", strconv.Itoa(res.Width))
	h.Set("X-Image-Height", strconv.Itoa(res.Height))
	h.Set("X-Image-Size", strconv.Itoa(len(res.Data)))
	h.Set("X-Total-Pages", strconv.Itoa(res.TotalPages))
	h.Set("X-Current-Page", strconv.Itoa(res.Page))
	h.Set("X-Bit-Order", "msb")
	h.Set("X-Color-Mode", string(res.Mode))
	h.Set("X-Bits-Per-Pixel", strconv.Itoa(res.Mode.BitsPerPixel()))
	h.Set("X-White-Bit", "1")
	h.Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(res.Data)
}
