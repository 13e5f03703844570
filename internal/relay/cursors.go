package relay

// cursors holds, per session, how many capture lines have been consumed.
// Only the relay loop touches it.
type cursors map[string]int

func (c cursors) get(session string) int { return c[session] }

func (c cursors) set(session string, n int) { c[session] = n }

func (c cursors) reset(session string) { c[session] = 0 }
