package chat

import "sync"

// DefaultWindowLimit bounds how many floating chat windows a session can
// hold open at once.
const DefaultWindowLimit = 3

// Window stacking geometry, in pixels from the right edge.
const (
	stackBaseOffset   = 20
	stackWindowSpread = 330
)

// Window is the ephemeral UI state of one open chat surface. It is never
// persisted; a new session starts with no windows.
type Window struct {
	Key        string `json:"key"`
	PeerID     string `json:"peer_id"`
	PeerName   string `json:"peer_name"`
	PeerAvatar string `json:"peer_avatar,omitempty"`
	Temporary  bool   `json:"temporary"`
	Minimized  bool   `json:"minimized"`
	Active     bool   `json:"active"`

	// StackIndex is the window's position among open windows, oldest first.
	StackIndex int `json:"stack_index"`
}

// WindowManager holds the bounded set of open chat windows for one session.
// Windows are kept in open order; opening past the bound evicts the
// least-recently-opened window (FIFO), which is resolved silently rather
// than surfaced as an error.
type WindowManager struct {
	mu      sync.Mutex
	limit   int
	windows []*Window
	active  string
}

// NewWindowManager creates a manager with the given bound; non-positive
// means DefaultWindowLimit.
func NewWindowManager(limit int) *WindowManager {
	if limit <= 0 {
		limit = DefaultWindowLimit
	}
	return &WindowManager{limit: limit}
}

// Open adds a window, or re-activates it if already open. Returns the key of
// the evicted window ("" if none) and whether the window already existed.
func (m *WindowManager) Open(w Window) (evicted string, existed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findLocked(w.Key) != nil {
		m.active = w.Key
		return "", true
	}

	if len(m.windows) >= m.limit {
		oldest := m.windows[0]
		m.windows = m.windows[1:]
		if m.active == oldest.Key {
			m.active = ""
		}
		evicted = oldest.Key
	}

	win := w
	m.windows = append(m.windows, &win)
	m.active = w.Key
	return evicted, false
}

// Close removes a window. If it was active, the first remaining window in
// list order becomes active. Returns the newly active key ("" if none) and
// whether the window existed.
func (m *WindowManager) Close(key string) (newActive string, closed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, w := range m.windows {
		if w.Key != key {
			continue
		}
		m.windows = append(m.windows[:i], m.windows[i+1:]...)
		if m.active == key {
			m.active = ""
			if len(m.windows) > 0 {
				m.active = m.windows[0].Key
			}
		}
		return m.active, true
	}
	return m.active, false
}

// SetMinimized toggles the minimized flag.
func (m *WindowManager) SetMinimized(key string, minimized bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.findLocked(key)
	if w == nil {
		return false
	}
	w.Minimized = minimized
	return true
}

// MarkPersisted clears the temporary flag after promotion confirms.
func (m *WindowManager) MarkPersisted(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.findLocked(key)
	if w == nil {
		return false
	}
	w.Temporary = false
	return true
}

// Get returns a copy of one window.
func (m *WindowManager) Get(key string) (Window, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.findLocked(key)
	if w == nil {
		return Window{}, false
	}
	return m.viewLocked(w), true
}

// Windows returns copies of all open windows in open order.
func (m *WindowManager) Windows() []Window {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Window, 0, len(m.windows))
	for _, w := range m.windows {
		out = append(out, m.viewLocked(w))
	}
	return out
}

// Len returns the open-window count.
func (m *WindowManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.windows)
}

func (m *WindowManager) findLocked(key string) *Window {
	for _, w := range m.windows {
		if w.Key == key {
			return w
		}
	}
	return nil
}

func (m *WindowManager) viewLocked(w *Window) Window {
	view := *w
	view.Active = m.active == w.Key
	for i, cur := range m.windows {
		if cur == w {
			view.StackIndex = i
			break
		}
	}
	return view
}

// StackOffset maps a window's index among open windows to its horizontal
// offset. Pure; indices reflow wholesale when a window closes.
func StackOffset(index int) int {
	return stackBaseOffset + index*stackWindowSpread
}
