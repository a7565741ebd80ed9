// Package scraper orchestrates the extraction strategies.
//
// ExtractMetadata validates and classifies the URL, serves fresh results
// from an in-process TTL cache keyed by the normalized URL, and otherwise
// runs the fast extractor followed by the browser extractor. Stories skip
// the fast path. Failures of the fast path are logged and never returned
// while a browser extractor is configured.
//
// Example usage:
//
//	s := scraper.FromConfig(cfg, metrics.New(), log)
//	defer s.Close()
//
//	result, err := s.ExtractMetadata(ctx, "https://www.instagram.com/reel/XYZ/")
//	if err != nil {
//	    fmt.Println(errors.UserMessage(err))
//	    return
//	}
//	fmt.Println(result.MediaURLs)
package scraper
