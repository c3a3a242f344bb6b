package models

// Session is the aggregate session state exposed to the rest of the
// application: who is signed in, what role they resolved to, and whether
// resolution is still in flight.
//
// Invariants:
//   - Principal == nil implies Role == RoleNone.
//   - Loading is true only between a principal-change event and the
//     completion of that principal's role resolution.
//
// Sessions are value snapshots. They are mutated exclusively by the
// session coordinator and are read-only everywhere else.
type Session struct {
	Principal *Principal
	Role      Role
	Loading   bool
}

// Anonymous reports whether no principal is signed in.
func (s Session) Anonymous() bool {
	return s.Principal == nil
}
