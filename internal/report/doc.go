// Package report provides a SQLite ledger of scenario runs.
//
// Each run is stored with its invariant findings and every balance read
// so known deviations can be followed across runs and environments:
//
//   - runs: scenario, mode, outcome, start time, duration and errors
//   - findings: passing invariant evaluations, held or deviation
//   - snapshots: balances read at each protocol step
//
// Ordering never depends on insertion order: runs sort by start time then
// id, findings and snapshots by their position within the run.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package report
