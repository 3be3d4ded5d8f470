// Package display is the output side of a streaming session: a window the
// annotated frames are shown in and the cancel key is read from.
package display

import "github.com/zeusync/virtualcam/internal/core/frame"

// Sink is a display window. Open and Close bracket one streaming session;
// Show and PollCancelKey are only valid in between.
type Sink interface {
	Open() error
	Close() error
	// Show presents one frame in ChannelOrder.
	Show(buf *frame.Buffer) error
	// PollCancelKey reports, without blocking, whether the user pressed the
	// cancel key since the last poll.
	PollCancelKey() bool
	ChannelOrder() frame.ChannelOrder
}

// IsCancelKey reports whether k closes the window.
func IsCancelKey(k rune) bool {
	return k == 'q' || k == 'Q'
}
