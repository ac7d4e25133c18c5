// Package theme builds the theme configuration handed to the documentation
// renderer.
package theme

// DefaultPrimaryColor is the primary color of a freshly opened page.
const DefaultPrimaryColor = "#000000"

// Config is the subset of the renderer's theme options that the viewer sets.
// Nil leaves are omitted so the renderer applies its own defaults.
type Config struct {
	Colors *Colors `json:"colors,omitempty"`
}

// Colors holds the color palette overrides.
type Colors struct {
	Primary *Color `json:"primary,omitempty"`
}

// Color is a single palette entry.
type Color struct {
	Main string `json:"main"`
}

// Build returns a Config with only the primary color set. The color is not
// validated; the renderer decides what to do with malformed values.
func Build(primaryColor string) Config {
	return Config{
		Colors: &Colors{
			Primary: &Color{Main: primaryColor},
		},
	}
}

// PrimaryColor returns the configured primary color, or "" if unset.
func (c Config) PrimaryColor() string {
	if c.Colors == nil || c.Colors.Primary == nil {
		return ""
	}

	return c.Colors.Primary.Main
}
