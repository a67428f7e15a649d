package release

import "time"

// Outcome is the terminal result of one channel. Every channel reports
// exactly one Outcome; a failed channel's error never cancels its siblings.
type Outcome struct {
	Channel   string
	Err       error
	Artifacts []Artifact
	Duration  time.Duration
}

// Succeeded reports whether the channel completed without error.
func (o Outcome) Succeeded() bool {
	return o.Err == nil
}
