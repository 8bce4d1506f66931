package tracker

// DrawerTransition is the outcome of one drawer visibility evaluation.
type DrawerTransition int

const (
	// DrawerNone means the evaluation did not change the drawer state.
	DrawerNone DrawerTransition = iota
	// DrawerOpened is the Closed -> Open transition.
	DrawerOpened
	// DrawerClosed is the Open -> Closed transition.
	DrawerClosed
)

// DrawerMachine tracks the cart overlay's open/closed state. It is pure:
// the shim forwards a visibility evaluation on every relevant DOM
// mutation, and the machine transitions only when the evaluated value
// actually changes. That is what makes open and close events strictly
// alternate no matter how often mutations re-report the same state.
type DrawerMachine struct {
	open bool
}

// Apply feeds one evaluated visibility reading into the machine.
func (d *DrawerMachine) Apply(visible bool) DrawerTransition {
	switch {
	case visible && !d.open:
		d.open = true
		return DrawerOpened
	case !visible && d.open:
		d.open = false
		return DrawerClosed
	default:
		return DrawerNone
	}
}

// Open reports whether the drawer is currently open.
func (d *DrawerMachine) Open() bool {
	return d.open
}
