package visual

import "strings"

// VariantKind distinguishes the capture variants a component can yield.
type VariantKind int

const (
	// VariantMain is the default full-page view of a component.
	VariantMain VariantKind = iota
	// VariantOpen is the view after the component's registered interaction
	// action ran (e.g. a dropdown opened).
	VariantOpen
	// VariantSection is one named section of a multi-section page.
	VariantSection
)

// ScreenshotID identifies one captured surface within a run side. The
// component slug plus the variant tag is unique per side; String is the
// only place the identifier is ever rendered to text.
type ScreenshotID struct {
	Component string      `json:"component"`
	Variant   VariantKind `json:"variant"`
	Section   string      `json:"section,omitempty"` // set only for VariantSection
}

// MainID returns the identifier for a component's default view.
func MainID(component string) ScreenshotID {
	return ScreenshotID{Component: Slug(component)}
}

// OpenID returns the identifier for a component's interaction variant.
func OpenID(component string) ScreenshotID {
	return ScreenshotID{Component: Slug(component), Variant: VariantOpen}
}

// SectionID returns the identifier for one section of a component's page.
func SectionID(component, section string) ScreenshotID {
	return ScreenshotID{Component: Slug(component), Variant: VariantSection, Section: Slug(section)}
}

// String renders the identifier as a filesystem- and URL-safe token:
// "button", "button-open", "button-usage".
func (id ScreenshotID) String() string {
	switch id.Variant {
	case VariantOpen:
		return id.Component + "-open"
	case VariantSection:
		return id.Component + "-" + id.Section
	default:
		return id.Component
	}
}

// Slug lowercases s and collapses every non-alphanumeric run into a single
// hyphen, trimming leading and trailing hyphens.
func Slug(s string) string {
	var sb strings.Builder
	lastHyphen := true // suppress a leading hyphen
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
			lastHyphen = false
		default:
			if !lastHyphen {
				sb.WriteByte('-')
				lastHyphen = true
			}
		}
	}
	return strings.TrimSuffix(sb.String(), "-")
}

// PageSlug derives a component slug from its documentation URL path,
// using the last non-empty path segment.
func PageSlug(url string) string {
	trimmed := strings.TrimRight(url, "/")
	if i := strings.LastIndex(trimmed, "/"); i >= 0 {
		trimmed = trimmed[i+1:]
	}
	return Slug(trimmed)
}
