package domain

// Article is a single news item. Title and URL are always non-empty;
// the fetch layer rejects responses that fail that check.
type Article struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	Source      string `json:"source"`
}
