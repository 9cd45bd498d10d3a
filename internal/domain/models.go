package domain

// Story is the detail record of one ranked story. URL is empty for
// text-only posts; the crawler then falls back to the story's own
// discussion page.
type Story struct {
	ID         int
	Title      string
	URL        string
	CommentIDs []int
}

// Comment is a first-level comment on a story. BodyHTML is the raw comment
// markup, kept only long enough to extract outbound links from it.
type Comment struct {
	ID       int
	BodyHTML string
}

// ReportRow is one line of the crawl report: a story whose processing
// finished, successfully or not.
type ReportRow struct {
	ID    int
	Title string
}
