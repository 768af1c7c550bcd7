// Package retrieval turns a media URL into a validated local file.
//
// Three strategies run in order: yt-dlp for anything it understands, a
// headless browser for pages whose players hide the media URL, and a plain
// HTTP download as the last resort. The whole sequence repeats for a few
// rounds with backoff before giving up. URLs pointing at our own object
// storage bypass the chain and use authenticated bucket access instead.
package retrieval
