package exercises

// Exercise is a library definition, referenced by program memberships
// and session logs, never owned by them.
type Exercise struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Notes *string `json:"notes"`
}
