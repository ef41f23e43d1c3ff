package engine

import (
	"context"
	"time"

	"github.com/grantwise/schemamigrate/internal/common"
	"github.com/grantwise/schemamigrate/internal/ledger"
	"github.com/grantwise/schemamigrate/internal/source"
)

// Migrator executes migrations against a single database, strictly one at
// a time. Callers must serialize concurrent runs externally (e.g. a
// deployment-time mutex); the engine does not coordinate across processes.
type Migrator struct {
	Dir    string
	Ledger *ledger.Ledger
	// Timeout bounds each per-migration transaction; zero means unbounded.
	// On timeout the transaction is rolled back and the run aborts.
	Timeout time.Duration
}

// Applied describes one migration executed by Apply.
type Applied struct {
	Version  int
	Name     string
	Duration time.Duration
}

// RolledBack describes one migration undone by Rollback.
type RolledBack struct {
	Version int
	Name    string
}

// Apply runs every pending migration in ascending version order, each in
// its own transaction together with its ledger insert. The drift check
// runs before anything executes. On failure the failing transaction is
// rolled back and the run aborts; migrations already committed by this
// run are reported in the returned slice.
func (m *Migrator) Apply(ctx context.Context) ([]Applied, error) {
	migs, err := source.Load(m.Dir)
	if err != nil {
		return nil, err
	}
	if err := m.Ledger.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := m.Ledger.ListApplied(ctx)
	if err != nil {
		return nil, err
	}
	if err := CheckDrift(migs, applied); err != nil {
		return nil, err
	}

	appliedSet := make(map[int]struct{}, len(applied))
	for _, r := range applied {
		appliedSet[r.Version] = struct{}{}
	}

	logger := common.GetLogger().WithComponent("engine")

	results := make([]Applied, 0)
	for _, mig := range migs {
		if _, ok := appliedSet[mig.Version]; ok {
			continue
		}
		res, err := m.runUp(ctx, mig)
		if err != nil {
			return results, err
		}
		results = append(results, res)
		logger.WithVersion(mig.Version).Info("migration applied",
			"name", mig.Name, "duration", res.Duration)
	}
	return results, nil
}

func (m *Migrator) runUp(ctx context.Context, mig source.Migration) (Applied, error) {
	runCtx, cancel := m.boundContext(ctx)
	defer cancel()

	start := time.Now()
	tx, err := m.Ledger.DB().BeginTx(runCtx, nil)
	if err != nil {
		return Applied{}, &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "up", Err: err}
	}
	if _, err := tx.ExecContext(runCtx, mig.Up); err != nil {
		_ = tx.Rollback()
		return Applied{}, &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "up", Err: err}
	}
	if err := m.Ledger.RecordApplied(runCtx, tx, mig.Version, mig.Name, mig.Checksum); err != nil {
		_ = tx.Rollback()
		return Applied{}, &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "up", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return Applied{}, &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "up", Err: err}
	}
	return Applied{Version: mig.Version, Name: mig.Name, Duration: time.Since(start)}, nil
}

// Rollback undoes up to steps migrations in descending order of
// application recency (ledger order, which reflects actual history). A
// migration without a down script fails with IrreversibleMigration and
// aborts the remaining steps; rollbacks already committed stay committed.
// steps larger than the applied count rolls back everything applied.
func (m *Migrator) Rollback(ctx context.Context, steps int) ([]RolledBack, error) {
	if steps <= 0 {
		return nil, nil
	}
	migs, err := source.Load(m.Dir)
	if err != nil {
		return nil, err
	}
	if err := m.Ledger.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	applied, err := m.Ledger.ListApplied(ctx)
	if err != nil {
		return nil, err
	}
	// The down script about to run must be the one that was authored with
	// the applied up script, so drift is fatal for rollback too.
	if err := CheckDrift(migs, applied); err != nil {
		return nil, err
	}

	recent, err := m.Ledger.RecentFirst(ctx, steps)
	if err != nil {
		return nil, err
	}

	byVersion := source.ByVersion(migs)
	logger := common.GetLogger().WithComponent("engine")

	results := make([]RolledBack, 0, len(recent))
	for _, rec := range recent {
		mig := byVersion[rec.Version] // drift check guarantees presence
		if !mig.Reversible() {
			return results, &IrreversibleMigrationError{Version: mig.Version, Name: mig.Name, Declared: mig.NoDown}
		}
		if err := m.runDown(ctx, mig); err != nil {
			return results, err
		}
		results = append(results, RolledBack{Version: mig.Version, Name: mig.Name})
		logger.WithVersion(mig.Version).Info("migration rolled back", "name", mig.Name)
	}
	return results, nil
}

func (m *Migrator) runDown(ctx context.Context, mig source.Migration) error {
	runCtx, cancel := m.boundContext(ctx)
	defer cancel()

	tx, err := m.Ledger.DB().BeginTx(runCtx, nil)
	if err != nil {
		return &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "down", Err: err}
	}
	if _, err := tx.ExecContext(runCtx, mig.Down); err != nil {
		_ = tx.Rollback()
		return &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "down", Err: err}
	}
	if err := m.Ledger.RecordRolledBack(runCtx, tx, mig.Version); err != nil {
		_ = tx.Rollback()
		return &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "down", Err: err}
	}
	if err := tx.Commit(); err != nil {
		return &ExecutionError{Version: mig.Version, Name: mig.Name, Direction: "down", Err: err}
	}
	return nil
}

func (m *Migrator) boundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if m.Timeout > 0 {
		return context.WithTimeout(ctx, m.Timeout)
	}
	return context.WithCancel(ctx)
}

// CheckDrift verifies that every ledger record still has a source
// migration whose freshly computed checksum matches the one frozen at
// execution time. The first mismatch (or missing source file) is
// returned; nothing may execute after drift is detected.
func CheckDrift(migs []source.Migration, applied []ledger.Record) error {
	byVersion := source.ByVersion(migs)
	for _, rec := range applied {
		mig, ok := byVersion[rec.Version]
		if !ok {
			return &ChecksumDriftError{Version: rec.Version, Name: rec.Name, Recorded: rec.Checksum}
		}
		if mig.Checksum != rec.Checksum {
			return &ChecksumDriftError{Version: rec.Version, Name: rec.Name, Recorded: rec.Checksum, Current: mig.Checksum}
		}
	}
	return nil
}
