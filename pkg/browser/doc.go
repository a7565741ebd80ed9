// Package browser implements the browser-driven extraction strategy.
//
// A Session owns one headless Chrome process shared by every extraction;
// each call renders the page in its own tab through a Renderer. The
// Extractor merges what the page exposed (network responses, DOM media
// elements, preload hints and script payloads scanned with the shared
// pattern table) and applies the same selection rule as the fast path.
//
//	session := browser.NewSession(browser.SessionOptions{Headless: true}, log)
//	defer session.Close()
//
//	renderer := browser.NewChromeRenderer(session, 30*time.Second, log)
//	extractor := browser.NewExtractor(renderer, browser.DefaultConfig(), log)
//	result, err := extractor.Extract(ctx, pageURL, instagram.ContentTypeReel)
package browser
