package kavita

// Format is Kavita's series format (MangaFormat on the server).
type Format int

const (
	FormatImage   Format = 0
	FormatArchive Format = 1
	FormatUnknown Format = 2
	FormatEpub    Format = 3
	FormatPdf     Format = 4
)

func (f Format) String() string {
	switch f {
	case FormatImage:
		return "image"
	case FormatArchive:
		return "archive"
	case FormatEpub:
		return "epub"
	case FormatPdf:
		return "pdf"
	default:
		return "unknown"
	}
}

// IsText reports whether chapters of this format are served as HTML book
// pages rather than page images.
func (f Format) IsText() bool {
	return f == FormatEpub
}

// Session is the result of plugin authentication.
type Session struct {
	Token         string `json:"token"`
	RefreshToken  string `json:"refreshToken"`
	Username      string `json:"username"`
	APIKey        string `json:"apiKey"`
	KavitaVersion string `json:"kavitaVersion"`
}

type Library struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Type       int    `json:"type"`
	CoverImage string `json:"coverImage,omitempty"`
}

type Series struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	LocalizedName string `json:"localizedName,omitempty"`
	OriginalName  string `json:"originalName,omitempty"`
	SortName      string `json:"sortName,omitempty"`
	Summary       string `json:"summary,omitempty"`
	CoverImage    string `json:"coverImage,omitempty"`
	Pages         int    `json:"pages"`
	PagesRead     int    `json:"pagesRead"`
	Format        Format `json:"format"`
	LibraryID     int    `json:"libraryId"`
}

type Volume struct {
	ID       int       `json:"id"`
	Name     string    `json:"name"`
	Pages    int       `json:"pages"`
	SeriesID int       `json:"seriesId"`
	Chapters []Chapter `json:"chapters"`
}

type Chapter struct {
	ID         int    `json:"id"`
	Title      string `json:"title,omitempty"`
	TitleName  string `json:"titleName,omitempty"`
	Number     string `json:"number"`
	Range      string `json:"range,omitempty"`
	VolumeID   int    `json:"volumeId"`
	Pages      int    `json:"pages"`
	PagesRead  int    `json:"pagesRead"`
	IsSpecial  bool   `json:"isSpecial"`
	CoverImage string `json:"coverImage,omitempty"`
}

// ChapterInfo is the reader view of a chapter, as returned by
// /api/Reader/chapter-info.
type ChapterInfo struct {
	ChapterNumber string `json:"chapterNumber"`
	VolumeNumber  string `json:"volumeNumber"`
	VolumeID      int    `json:"volumeId"`
	SeriesName    string `json:"seriesName"`
	SeriesFormat  Format `json:"seriesFormat"`
	SeriesID      int    `json:"seriesId"`
	LibraryID     int    `json:"libraryId"`
	LibraryType   int    `json:"libraryType"`
	ChapterTitle  string `json:"chapterTitle"`
	Pages         int    `json:"pages"`
	FileName      string `json:"fileName"`
	IsSpecial     bool   `json:"isSpecial"`
	Subtitle      string `json:"subtitle"`
	Title         string `json:"title"`
}

// Progress is a reading position stored by Kavita.
type Progress struct {
	VolumeID     int    `json:"volumeId"`
	ChapterID    int    `json:"chapterId"`
	PageNum      int    `json:"pageNum"`
	SeriesID     int    `json:"seriesId"`
	LibraryID    int    `json:"libraryId"`
	BookScrollID string `json:"bookScrollId,omitempty"`
}

type filterStatement struct {
	Comparison int    `json:"comparison"`
	Field      int    `json:"field"`
	Value      string `json:"value"`
}

type sortOptions struct {
	SortField   int  `json:"sortField"`
	IsAscending bool `json:"isAscending"`
}

// seriesFilter is the v2 series filter body. Field 19 is the library id and
// comparison 0 is equality.
type seriesFilter struct {
	Statements  []filterStatement `json:"statements"`
	Combination int               `json:"combination"`
	LimitTo     int               `json:"limitTo"`
	SortOptions sortOptions       `json:"sortOptions"`
}
