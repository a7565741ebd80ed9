// Package storage downloads media files and names them.
//
// Manager writes into one output directory using a temporary file and an
// atomic rename, so a partially written file never appears under its final
// name. Fetcher streams a media URL through a Manager with a desktop user
// agent, retrying network errors, 429 and 5xx responses with backoff.
// GenerateFilename produces {username}_{type}_{unixMillis}[_{n}].{mp4|jpg}.
//
// Usage:
//
//	manager, err := storage.NewManager("./downloads")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fetcher := storage.NewFetcher(manager, storage.FetcherOptions{}, log)
//
//	name := storage.GenerateFilename(result, 0, time.Now())
//	saved, err := fetcher.DownloadMedia(ctx, result.MediaURLs[0], name)
package storage
