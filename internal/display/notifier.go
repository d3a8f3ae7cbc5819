package display

// Notifier wakes the display when the store changes. Notifications
// coalesce: many calls between two reads produce one wake-up.
type Notifier struct {
	ch chan struct{}
}

// NewNotifier creates a notifier.
func NewNotifier() *Notifier {
	return &Notifier{ch: make(chan struct{}, 1)}
}

// Notify never blocks.
func (n *Notifier) Notify() {
	select {
	case n.ch <- struct{}{}:
	default:
	}
}

// C returns the channel receiving wake-ups.
func (n *Notifier) C() <-chan struct{} {
	return n.ch
}
