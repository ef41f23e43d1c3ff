package status

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/grantwise/schemamigrate/internal/engine"
	"github.com/grantwise/schemamigrate/internal/ledger"
	"github.com/grantwise/schemamigrate/internal/source"
)

// State of one migration relative to this database.
type State string

const (
	StateApplied State = "applied"
	StatePending State = "pending"
	// StateMissing marks a ledger record whose source file is gone.
	StateMissing State = "missing"
)

// Entry is one row of the status report.
type Entry struct {
	Version    int
	Name       string
	State      State
	ExecutedAt time.Time // zero when pending
	Drifted    bool

	// Irreversible means rollback would fail for this migration;
	// Declared distinguishes an intentional NoDown marker from a down
	// script that was simply never written.
	Irreversible bool
	Declared     bool

	// Checksums behind a drift flag: what the ledger froze and what the
	// source hashes to now. CurrentChecksum is empty for missing entries.
	RecordedChecksum string
	CurrentChecksum  string
}

// Report cross-references the migration source with the ledger. Read-only:
// collecting a report never mutates either side.
type Report struct {
	Current int
	Entries []Entry
}

// Drifted returns the entries whose recorded checksum no longer matches
// the source, including ledger records with no source file at all.
func (r Report) Drifted() []Entry {
	var out []Entry
	for _, e := range r.Entries {
		if e.Drifted || e.State == StateMissing {
			out = append(out, e)
		}
	}
	return out
}

// Collect builds a report for the migrations in dir against the ledger.
func Collect(ctx context.Context, dir string, l *ledger.Ledger) (Report, error) {
	migs, err := source.Load(dir)
	if err != nil {
		return Report{}, err
	}
	// A fresh database has no ledger table yet; everything is pending.
	// Collecting must not create it.
	exists, err := l.SchemaExists(ctx)
	if err != nil {
		return Report{}, err
	}
	var applied []ledger.Record
	var cur int
	if exists {
		if applied, err = l.ListApplied(ctx); err != nil {
			return Report{}, err
		}
		if cur, err = l.CurrentVersion(ctx); err != nil {
			return Report{}, err
		}
	}

	recByVersion := make(map[int]ledger.Record, len(applied))
	for _, rec := range applied {
		recByVersion[rec.Version] = rec
	}

	entries := make([]Entry, 0, len(migs)+len(applied))
	for _, mig := range migs {
		e := Entry{Version: mig.Version, Name: mig.Name, State: StatePending, Irreversible: !mig.Reversible(), Declared: mig.NoDown, CurrentChecksum: mig.Checksum}
		if rec, ok := recByVersion[mig.Version]; ok {
			e.State = StateApplied
			e.ExecutedAt = rec.ExecutedAt
			e.RecordedChecksum = rec.Checksum
			e.Drifted = rec.Checksum != mig.Checksum
			delete(recByVersion, mig.Version)
		}
		entries = append(entries, e)
	}
	// Ledger records with no source file left: surface them rather than
	// hiding history the source no longer explains.
	for _, rec := range recByVersion {
		entries = append(entries, Entry{
			Version:          rec.Version,
			Name:             rec.Name,
			State:            StateMissing,
			ExecutedAt:       rec.ExecutedAt,
			RecordedChecksum: rec.Checksum,
		})
	}
	sortEntries(entries)

	return Report{Current: cur, Entries: entries}, nil
}

// CheckDrift returns the fatal drift error for this report, if any, so
// callers can fail a status invocation the same way apply would.
func (r Report) CheckDrift() error {
	for _, e := range r.Entries {
		if e.State == StateMissing {
			return &engine.ChecksumDriftError{Version: e.Version, Name: e.Name, Recorded: e.RecordedChecksum}
		}
		if e.Drifted {
			return &engine.ChecksumDriftError{Version: e.Version, Name: e.Name, Recorded: e.RecordedChecksum, Current: e.CurrentChecksum}
		}
	}
	return nil
}

func sortEntries(entries []Entry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].Version < entries[j].Version })
}

// FormatHuman returns a human-friendly multiline table for CLI output.
func (r Report) FormatHuman() string {
	return r.format(false)
}

// FormatColorized renders the report with ANSI colors when color is true.
func (r Report) FormatColorized(color bool) string {
	return r.format(color)
}

func (r Report) format(color bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "current: %d\n", r.Current)
	for _, e := range r.Entries {
		state := string(e.State)
		if color {
			switch e.State {
			case StateApplied:
				state = "\033[32m" + state + "\033[0m"
			case StatePending:
				state = "\033[33m" + state + "\033[0m"
			case StateMissing:
				state = "\033[31m" + state + "\033[0m"
			}
		}
		fmt.Fprintf(&b, "%5d  %-8s %s", e.Version, state, e.Name)
		if e.State == StateApplied || e.State == StateMissing {
			fmt.Fprintf(&b, "  at=%s", e.ExecutedAt.UTC().Format(time.RFC3339))
		}
		if e.Drifted {
			if color {
				b.WriteString("  \033[31mDRIFT\033[0m")
			} else {
				b.WriteString("  DRIFT")
			}
		}
		if e.Irreversible {
			if e.Declared {
				b.WriteString("  irreversible")
			} else {
				b.WriteString("  no down script")
			}
		}
		b.WriteByte('\n')
	}
	return b.String()
}
