// Package viewer holds the state of one demo page: which specification is
// shown, whether it is fetched through the CORS proxy, and the theme. The
// shareable parts of that state live in the page's query string.
package viewer

import (
	"net/url"
	"time"

	"github.com/ethpandaops/specviewer/pkg/querystring"
	"github.com/ethpandaops/specviewer/pkg/theme"
)

// Query parameter names that make up the shareable state.
const (
	ParamURL    = "url"
	ParamNoCORS = "nocors"
)

// Settings are the built-in identifiers and tunables of the demo.
type Settings struct {
	// DefaultSpec is shown when the query string carries no url. It is
	// served alongside the page and never proxied.
	DefaultSpec string
	// NewVersionSpec is a bundled demo that must be fetched without the proxy.
	NewVersionSpec string
	// CORSProxy is prepended to the absolute spec URL when CORS is enabled.
	CORSProxy string
	// DefaultColor is the initial primary theme color.
	DefaultColor string
	// ThemeDelay is the quiet period applied to theme color input.
	ThemeDelay time.Duration
}

// DefaultSettings returns the settings of the stock demo page.
func DefaultSettings() Settings {
	return Settings{
		DefaultSpec:    "openapi.yaml",
		NewVersionSpec: "openapi-3-1.yaml",
		CORSProxy:      "https://cors.redoc.ly/",
		DefaultColor:   theme.DefaultPrimaryColor,
		ThemeDelay:     250 * time.Millisecond,
	}
}

// State is the application state of one page.
type State struct {
	SpecSource  string       `json:"spec_source"`
	CORSEnabled bool         `json:"cors_enabled"`
	Theme       theme.Config `json:"theme"`
}

// IsForceNoCorsSource reports whether selecting id switches the CORS proxy off.
func (s Settings) IsForceNoCorsSource(id string) bool {
	return s.NewVersionSpec != "" && id == s.NewVersionSpec
}

// InitialState derives the state of a freshly loaded page from its search
// string. The nocors flag disables the proxy whatever its value.
func (s Settings) InitialState(search string) State {
	source, ok := querystring.Get(search, ParamURL)
	if !ok {
		source = s.DefaultSpec
	}

	return State{
		SpecSource:  source,
		CORSEnabled: !querystring.Has(search, ParamNoCORS) && !s.IsForceNoCorsSource(source),
		Theme:       theme.Build(s.DefaultColor),
	}
}

// SelectSpec switches to source and returns the search string to push.
func (s Settings) SelectSpec(state State, search, source string) (State, string) {
	if s.IsForceNoCorsSource(source) {
		state.CORSEnabled = false
	}

	state.SpecSource = source

	return state, querystring.Set(search, ParamURL, source)
}

// ToggleCORS sets the proxy flag and returns the search string to push.
// A disabled proxy is encoded by the presence of an empty nocors parameter.
func ToggleCORS(state State, search string, checked bool) (State, string) {
	state.CORSEnabled = checked

	if checked {
		return state, querystring.Remove(search, ParamNoCORS)
	}

	return state, querystring.Set(search, ParamNoCORS, "")
}

// ApplyTheme replaces the theme with one built from color.
func ApplyTheme(state State, color string) State {
	state.Theme = theme.Build(color)

	return state
}

// ProxiedURL is the URL the renderer should fetch for state. With CORS
// enabled every source except the default one is resolved against page and
// prefixed with the proxy. Sources that do not parse are returned unchanged.
func (s Settings) ProxiedURL(page *url.URL, state State) string {
	if !state.CORSEnabled || state.SpecSource == "" || state.SpecSource == s.DefaultSpec {
		return state.SpecSource
	}

	ref, err := url.Parse(state.SpecSource)
	if err != nil {
		return state.SpecSource
	}

	if page != nil {
		ref = page.ResolveReference(ref)
	}

	return s.CORSProxy + ref.String()
}

// SelectedSource is the value shown in the source picker; the default spec
// shows as an empty picker.
func (s Settings) SelectedSource(state State) string {
	if state.SpecSource == s.DefaultSpec {
		return ""
	}

	return state.SpecSource
}
