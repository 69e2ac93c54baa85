package pdf

// PageProfile carries the structural signals of a single page. Page numbers
// are 1-based. Produced once per page; read-only input to scoring.
type PageProfile struct {
	Page           int
	ImageCount     int
	DrawingCount   int
	TextAreaRatio  float64 // 0..1
	ColorDiversity int
	BlockCount     int
	Text           string
}

// ProfileResult pairs a profile with the extraction outcome so callers can
// tell a clean zero-signal page apart from a failed extraction.
type ProfileResult struct {
	Profile PageProfile
	Err     error
}

// Failed reports whether structural extraction failed for this page.
func (r ProfileResult) Failed() bool { return r.Err != nil }

// Reader provides page counts and structural profiles for a document.
// Cleaned page text travels inside the profile.
type Reader interface {
	PageCount(path string) (int, error)
	Profile(path string, page int) (PageProfile, error)
}
