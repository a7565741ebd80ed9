// Package instagram holds the page-level extraction logic shared by the
// fast and browser paths.
//
// This package includes:
//   - URL validation, content type classification and cache-key normalization
//   - The script-payload pattern table, run in Go and inside the browser page
//   - The CDN denylist and candidate de-duplication
//   - Open Graph parsing for username, caption and engagement
//   - The per-type media selection rule that decides success
//   - Client, the single-request fast extractor
//
// Example usage:
//
//	client := instagram.NewClient(8*time.Second, log)
//
//	result, err := client.ExtractFast(ctx, "https://www.instagram.com/p/ABC123/")
//	if err != nil {
//	    switch errors.TypeOf(err) {
//	    case errors.ErrorTypeInvalidURL:
//	        // Reject the input
//	    case errors.ErrorTypeExtraction:
//	        // Fall back to the browser extractor
//	    }
//	}
//	fmt.Println(result.Type, result.MediaURLs)
package instagram
