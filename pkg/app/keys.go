package app

// Key is an input already decoded by the renderer.
type Key int

const (
	KeyNone Key = iota
	KeyUp
	KeyDown
	KeyPageUp
	KeyPageDown
	KeyTop
	KeyBottom
	KeyEnter
	KeyParent
	KeySwitchPane
	KeyTransfer
	KeyToggleHidden
	KeyHelp
	KeyRefresh
	KeyCancelBatch
	KeyDismiss
	KeyQuit
	KeyForceQuit
)

var keyNames = map[Key]string{
	KeyNone:         "none",
	KeyUp:           "up",
	KeyDown:         "down",
	KeyPageUp:       "page up",
	KeyPageDown:     "page down",
	KeyTop:          "top",
	KeyBottom:       "bottom",
	KeyEnter:        "enter",
	KeyParent:       "parent",
	KeySwitchPane:   "switch pane",
	KeyTransfer:     "transfer",
	KeyToggleHidden: "toggle hidden",
	KeyHelp:         "help",
	KeyRefresh:      "refresh",
	KeyCancelBatch:  "cancel batch",
	KeyDismiss:      "dismiss",
	KeyQuit:         "quit",
	KeyForceQuit:    "force quit",
}

func (k Key) String() string {
	if s, ok := keyNames[k]; ok {
		return s
	}
	return "unknown"
}

// Side identifies a pane.
type Side int

const (
	LocalSide Side = iota
	RemoteSide
)

// Other returns the opposite pane.
func (s Side) Other() Side {
	return 1 - s
}

func (s Side) String() string {
	if s == LocalSide {
		return "local"
	}
	return "remote"
}

// Lifecycle is the controller's run state.
type Lifecycle int

const (
	Running Lifecycle = iota
	Quitting
	ForceQuitting
	Terminated
)

func (l Lifecycle) String() string {
	switch l {
	case Running:
		return "running"
	case Quitting:
		return "quitting"
	case ForceQuitting:
		return "force quitting"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}
