package budget

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio/v2"
)

// ledgerFile is the persisted ledger shape under runs/{run_id}/ledger.json.
// It survives crashes alongside the run journal so a resumed run replays
// committed spend instead of re-debiting.
type ledgerFile struct {
	AllocatedUSD float64 `json:"allocated_usd"`
	CommittedUSD float64 `json:"committed_usd"`
	Entries      []Entry `json:"entries"`
}

// persister abstracts ledger durability so tests can run without a disk.
type persister interface {
	load(runID string) (committed float64, entries []Entry, err error)
	save(runID string, allocated, committed float64, entries []Entry) error
}

type filePersister struct {
	runsDir string
}

func (p *filePersister) path(runID string) string {
	return filepath.Join(p.runsDir, runID, "ledger.json")
}

func (p *filePersister) load(runID string) (float64, []Entry, error) {
	data, err := os.ReadFile(p.path(runID))
	if os.IsNotExist(err) {
		return 0, nil, nil
	}
	if err != nil {
		return 0, nil, fmt.Errorf("reading ledger: %w", err)
	}
	var lf ledgerFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return 0, nil, fmt.Errorf("parsing ledger: %w", err)
	}
	return lf.CommittedUSD, lf.Entries, nil
}

func (p *filePersister) save(runID string, allocated, committed float64, entries []Entry) error {
	lf := ledgerFile{AllocatedUSD: allocated, CommittedUSD: committed, Entries: entries}
	data, err := json.MarshalIndent(lf, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Join(p.runsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	// Atomic replace: a crash mid-write never truncates the ledger.
	return renameio.WriteFile(p.path(runID), data, 0o644)
}
