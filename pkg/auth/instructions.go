package auth

import (
	"fmt"
	"io"
	"strings"
)

// WriteSessionGuide prints how to copy the sessionid cookie out of a
// logged-in browser
func WriteSessionGuide(w io.Writer) {
	rule := strings.Repeat("=", 72)
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w, "INSTAGRAM SESSION COOKIE")
	fmt.Fprintln(w, rule)
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Stories are only visible to logged-in accounts. igfetch can reuse the")
	fmt.Fprintln(w, "sessionid cookie of a browser where you are logged in to Instagram.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "  1. Open https://www.instagram.com and log in")
	fmt.Fprintln(w, "  2. Open Developer Tools (F12, or Cmd+Option+I on Mac)")
	fmt.Fprintln(w, "  3. Application tab (Chrome) or Storage tab (Firefox) > Cookies")
	fmt.Fprintln(w, "  4. Select https://www.instagram.com and copy the value of 'sessionid'")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Copy the whole value without quotes or semicolons. Sessions expire;")
	fmt.Fprintln(w, "run 'igfetch auth login' again when stories start failing with")
	fmt.Fprintln(w, "'requires login'.")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "The cookie grants full access to the account. It is stored in the")
	fmt.Fprintln(w, "system keyring when available, otherwise in an encrypted file.")
	fmt.Fprintln(w, rule)
}
