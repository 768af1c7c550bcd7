package retrieval

import "context"

// Outcome reports a successful retrieval: where the media landed and which
// strategy produced it.
type Outcome struct {
	Path     string
	Strategy string
	Rounds   int
}

// Strategy is one way of turning a media URL into a local file. CanHandle
// reports whether the strategy applies to the URL at all; Fetch returns
// the path of the downloaded file inside destDir.
type Strategy interface {
	Name() string
	CanHandle(mediaURL string) bool
	Fetch(ctx context.Context, mediaURL, destDir string) (string, error)
}
