package viewer

import (
	"net/url"
	"sync"

	"github.com/ethpandaops/specviewer/pkg/debounce"
	"github.com/ethpandaops/specviewer/pkg/theme"
	"github.com/sirupsen/logrus"
)

// Cause names the transition that produced a View.
type Cause string

const (
	CauseSnapshot   Cause = "snapshot"
	CauseSelectSpec Cause = "select_spec"
	CauseToggleCORS Cause = "toggle_cors"
	CauseTheme      Cause = "theme"
	CauseRestore    Cause = "restore"
)

// View is the read-only snapshot handed to the renderer after each change.
type View struct {
	Cause          Cause        `json:"cause"`
	SpecURL        string       `json:"spec_url"`
	SpecSource     string       `json:"spec_source"`
	SelectedSource string       `json:"selected_source"`
	CORSEnabled    bool         `json:"cors_enabled"`
	Theme          theme.Config `json:"theme"`
	Search         string       `json:"search"`
}

// ChangeFunc is called with the new view after every committed transition.
// It runs while the controller is locked and must not call back into it.
type ChangeFunc func(View)

// Controller owns the state of one page. Transitions are serialized; each one
// updates the state and, for shareable state, pushes a history entry built
// from the search string current at that moment.
type Controller struct {
	log      logrus.FieldLogger
	settings Settings
	page     *url.URL
	history  History
	theme    *debounce.Debouncer[string]

	mu       sync.Mutex
	state    State
	onChange []ChangeFunc
}

// NewController creates a controller for the page at pageURL, initialized
// from the history's current search string.
func NewController(log logrus.FieldLogger, settings Settings, pageURL string, history History, opts ...debounce.Option) *Controller {
	c := &Controller{
		log:      log.WithField("component", "viewer"),
		settings: settings,
		history:  history,
		state:    settings.InitialState(history.Search()),
	}

	if page, err := url.Parse(pageURL); err == nil && pageURL != "" {
		c.page = page
	}

	c.theme = debounce.New(c.commitTheme, settings.ThemeDelay, opts...)

	return c
}

// OnChange registers fn to receive the view after every transition.
func (c *Controller) OnChange(fn ChangeFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onChange = append(c.onChange, fn)
}

// State returns a copy of the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// View returns the current render snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.viewLocked(CauseSnapshot)
}

// ProxiedURL returns the URL the renderer should fetch right now.
func (c *Controller) ProxiedURL() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.settings.ProxiedURL(c.page, c.state)
}

// SelectSpec handles a new value from the source picker.
func (c *Controller) SelectSpec(source string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, search := c.settings.SelectSpec(c.state, c.history.Search(), source)
	c.state = next
	c.history.Push(search)

	c.log.WithFields(logrus.Fields{
		"source": source,
		"cors":   next.CORSEnabled,
	}).Debug("Spec source selected")

	c.notifyLocked(CauseSelectSpec)
}

// ToggleCORS handles the CORS checkbox.
func (c *Controller) ToggleCORS(checked bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	next, search := ToggleCORS(c.state, c.history.Search(), checked)
	c.state = next
	c.history.Push(search)

	c.log.WithField("cors", checked).Debug("CORS proxy toggled")

	c.notifyLocked(CauseToggleCORS)
}

// ChangeThemeColor handles raw color picker input. Bursts are collapsed and
// only the last color is committed once the input settles. Theme changes are
// not pushed to history.
func (c *Controller) ChangeThemeColor(color string) {
	c.theme.Call(color)
}

// Restore re-derives the shareable state from search after the history moved
// to an existing entry. The theme is kept.
func (c *Controller) Restore(search string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	restored := c.settings.InitialState(search)
	restored.Theme = c.state.Theme
	c.state = restored

	c.log.WithField("search", search).Debug("State restored from history")

	c.notifyLocked(CauseRestore)
}

// Close drops any pending theme change.
func (c *Controller) Close() {
	c.theme.Cancel()
}

func (c *Controller) commitTheme(color string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = ApplyTheme(c.state, color)

	c.log.WithField("color", color).Debug("Theme color committed")

	c.notifyLocked(CauseTheme)
}

func (c *Controller) viewLocked(cause Cause) View {
	return View{
		Cause:          cause,
		SpecURL:        c.settings.ProxiedURL(c.page, c.state),
		SpecSource:     c.state.SpecSource,
		SelectedSource: c.settings.SelectedSource(c.state),
		CORSEnabled:    c.state.CORSEnabled,
		Theme:          c.state.Theme,
		Search:         c.history.Search(),
	}
}

func (c *Controller) notifyLocked(cause Cause) {
	if len(c.onChange) == 0 {
		return
	}

	view := c.viewLocked(cause)

	for _, fn := range c.onChange {
		fn(view)
	}
}
