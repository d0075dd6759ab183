package testutil

// FixedRunID hands out the same run id every time, so ledgers and logs
// written by a test are reproducible.
type FixedRunID struct {
	id string
}

// NewFixedRunID returns a generator for id. Empty id selects
// "test-run-default".
func NewFixedRunID(id string) *FixedRunID {
	if id == "" {
		id = "test-run-default"
	}
	return &FixedRunID{id: id}
}

// Generate returns the fixed id.
func (g *FixedRunID) Generate() string {
	return g.id
}
