package session

// Panel identifies one of the mutually exclusive overlays of the reading screen
type Panel int

// Panels
const (
	PanelNone Panel = iota
	PanelBookmarks
	PanelSearch
	PanelTableOfContents
	PanelAnnotations
)

func (p Panel) String() string {
	switch p {
	case PanelBookmarks:
		return "bookmarks"
	case PanelSearch:
		return "search"
	case PanelTableOfContents:
		return "toc"
	case PanelAnnotations:
		return "annotations"
	default:
		return "none"
	}
}

// Transition tells the caller what to do after Open.
// When Settle is true the caller must call Settled(Seq) once the settle
// delay has elapsed; nothing is presented until then.
type Transition struct {
	Present Panel
	Settle  bool
	Seq     uint64
}

// PanelController keeps at most one panel presented. Switching between
// two panels tears the first one down and waits for a settle signal
// before presenting the second.
type PanelController struct {
	active    Panel
	pending   Panel
	settling  bool
	seq       uint64
	teardowns map[Panel]func()
}

// NewPanelController returns a controller in the None state
func NewPanelController() *PanelController {
	return &PanelController{teardowns: make(map[Panel]func())}
}

// OnTeardown registers fn to run whenever p is dismissed
func (pc *PanelController) OnTeardown(p Panel, fn func()) {
	pc.teardowns[p] = fn
}

func (pc *PanelController) teardown(p Panel) {
	if fn := pc.teardowns[p]; fn != nil {
		fn()
	}
}

// Active returns the presented panel
func (pc *PanelController) Active() Panel {
	return pc.active
}

// Pending returns the panel waiting for its settle signal, if any
func (pc *PanelController) Pending() (Panel, bool) {
	return pc.pending, pc.settling
}

// Open requests that p be presented
func (pc *PanelController) Open(p Panel) Transition {
	if p == PanelNone {
		pc.Close()
		return Transition{}
	}

	if pc.settling {
		// The scheduled settle presents whatever was requested last.
		if pc.pending != p {
			pc.teardown(pc.pending)
			pc.pending = p
		}
		return Transition{Seq: pc.seq}
	}

	switch pc.active {
	case PanelNone, p:
		pc.active = p
		return Transition{Present: p}
	default:
		pc.teardown(pc.active)
		pc.active = PanelNone
		pc.pending = p
		pc.settling = true
		pc.seq++
		return Transition{Settle: true, Seq: pc.seq}
	}
}

// Settled presents the pending panel if seq belongs to the current settle
func (pc *PanelController) Settled(seq uint64) (Panel, bool) {
	if !pc.settling || seq != pc.seq {
		return PanelNone, false
	}
	pc.active = pc.pending
	pc.pending = PanelNone
	pc.settling = false
	return pc.active, true
}

// Close dismisses the active or pending panel
func (pc *PanelController) Close() {
	if pc.settling {
		pc.teardown(pc.pending)
		pc.pending = PanelNone
		pc.settling = false
		pc.seq++
	}
	if pc.active != PanelNone {
		p := pc.active
		pc.active = PanelNone
		pc.teardown(p)
	}
}
