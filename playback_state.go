package vidtex

// Backend playback state can be [Stopped], [Playing] or [Paused].
type PlaybackState uint8

// Returns a string representation of the playback state
// ("Stopped", "Playing", "Paused", "Unknown").
func (s PlaybackState) String() string {
	switch s {
	case Stopped:
		return "Stopped"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	default:
		return "Unknown"
	}
}

const (
	Stopped PlaybackState = iota
	Playing
	Paused
)

// Lifecycle state of a [Player]: [Uninitialized], [Ready] or [Closed].
// Players without a native backend stay [Uninitialized] until closed.
type PlayerState uint8

// Returns a string representation of the player state
// ("Uninitialized", "Ready", "Closed", "Unknown").
func (s PlayerState) String() string {
	switch s {
	case Uninitialized:
		return "Uninitialized"
	case Ready:
		return "Ready"
	case Closed:
		return "Closed"
	default:
		return "Unknown"
	}
}

const (
	Uninitialized PlayerState = iota
	Ready
	Closed
)
