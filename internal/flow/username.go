package flow

import (
	"strings"
)

const (
	selUserMenuAvatar = `button[aria-label="Open user navigation menu"] img`
	selUserLoginMeta  = `meta[name="user-login"]`
	selProfileLink    = `a[href^="/"]:has-text("Your profile")`
)

// ExtractUsername resolves the authenticated account's login name from the
// page. Best effort: it tries the user-menu avatar alt text, then the
// profile settings meta tag, then the profile link. Returns "" when nothing
// matched; absence is not an error.
func (o *Operations) ExtractUsername(res Resource) string {
	if n, err := res.Count(selUserMenuAvatar); err == nil && n > 0 {
		if alt, err := res.Attribute(selUserMenuAvatar, "alt"); err == nil && strings.HasPrefix(alt, "@") {
			return strings.TrimPrefix(alt, "@")
		}
	}

	// The settings page carries a user-login meta tag.
	if err := res.Navigate(o.baseURL + "/settings/profile"); err != nil {
		o.log.Warn().Err(err).Msg("could not open profile settings for username extraction")
		return ""
	}
	if n, err := res.Count(selUserLoginMeta); err == nil && n > 0 {
		if content, err := res.Attribute(selUserLoginMeta, "content"); err == nil && content != "" {
			return content
		}
	}
	if n, err := res.Count(selProfileLink); err == nil && n > 0 {
		if href, err := res.Attribute(selProfileLink, "href"); err == nil && strings.HasPrefix(href, "/") {
			return strings.TrimPrefix(href, "/")
		}
	}
	return ""
}
