// Package tray shows the live recognizer in the system tray: the current
// sign as the tray title and a menu to pause, reload or quit.
package tray

import (
	"fmt"
	"sync"

	"github.com/getlantern/systray"

	"github.com/ahmedibraahiim/asl/internal/app"
	"github.com/ahmedibraahiim/asl/internal/recognizer"
)

// Tray is the system tray front of the live recognizer.
type Tray struct {
	mu       sync.RWMutex
	enabled  bool
	onToggle func(enabled bool)
	onReload func()
	onOpen   func()
	onQuit   func()

	menuToggle *systray.MenuItem
	menuSign   *systray.MenuItem
}

// New returns a tray with recognition enabled.
func New() *Tray {
	return &Tray{enabled: true}
}

// OnToggle is called when recognition is paused or resumed.
func (t *Tray) OnToggle(fn func(enabled bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onToggle = fn
}

// OnReload is called when "Reload model" is clicked.
func (t *Tray) OnReload(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReload = fn
}

// OnOpen is called when "Open dashboard" is clicked.
func (t *Tray) OnOpen(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onOpen = fn
}

// OnQuit is called before the tray exits.
func (t *Tray) OnQuit(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onQuit = fn
}

// Run blocks until Quit.
func (t *Tray) Run() {
	systray.Run(t.onReady, func() {})
}

func (t *Tray) onReady() {
	systray.SetTitle("ASL")
	systray.SetTooltip("ASL sign recognition")

	t.mu.Lock()
	t.menuToggle = systray.AddMenuItem(toggleLabel(t.enabled), "Pause or resume recognition")
	systray.AddSeparator()
	t.menuSign = systray.AddMenuItem(signLabel(nil), "Last recognized sign")
	t.menuSign.Disable()
	t.mu.Unlock()
	systray.AddSeparator()

	menuReload := systray.AddMenuItem("Reload model", "Load the model file again")
	menuOpen := systray.AddMenuItem("Open dashboard...", "Open the web dashboard")
	systray.AddSeparator()
	menuQuit := systray.AddMenuItem("Quit", "Quit ASL")

	go func() {
		for {
			select {
			case <-t.menuToggle.ClickedCh:
				t.toggle()
			case <-menuReload.ClickedCh:
				t.call(func() func() { return t.onReload })
			case <-menuOpen.ClickedCh:
				t.call(func() func() { return t.onOpen })
			case <-menuQuit.ClickedCh:
				t.call(func() func() { return t.onQuit })
				systray.Quit()
				return
			}
		}
	}()
}

func (t *Tray) call(pick func() func()) {
	t.mu.RLock()
	fn := pick()
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

func (t *Tray) toggle() {
	t.mu.Lock()
	t.enabled = !t.enabled
	enabled := t.enabled
	if t.menuToggle != nil {
		t.menuToggle.SetTitle(toggleLabel(enabled))
	}
	fn := t.onToggle
	t.mu.Unlock()

	if fn != nil {
		fn(enabled)
	}
}

// IsEnabled reports whether recognition is on.
func (t *Tray) IsEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.enabled
}

// Follow updates the tray from results until the channel closes.
func (t *Tray) Follow(results <-chan app.Result) {
	for res := range results {
		t.SetResult(res.Response)
	}
}

// SetResult shows resp in the tray title and menu.
func (t *Tray) SetResult(resp recognizer.Response) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	if t.menuSign == nil {
		return
	}
	t.menuSign.SetTitle(signLabel(&resp))
	systray.SetTitle(titleFor(resp))
}

func toggleLabel(enabled bool) string {
	if enabled {
		return "● Recognizing"
	}
	return "○ Paused"
}

func signLabel(resp *recognizer.Response) string {
	if resp == nil {
		return "Sign: none"
	}
	return app.OverlayText(*resp)
}

func titleFor(resp recognizer.Response) string {
	if !resp.HasHand || resp.Sign == recognizer.ErrorSign {
		return "ASL"
	}
	return fmt.Sprintf("ASL %s", resp.Sign)
}
