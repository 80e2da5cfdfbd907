package lookup

import (
	"github.com/google/btree"
	"github.com/rs/zerolog/log"

	"github.com/yairfalse/kartta/types"
)

// Entry carries the service-derived enrichment fields attached to a
// resource row on a join hit. Immutable once the index is built.
type Entry struct {
	NormalizedID    string
	ServiceName     string
	ServiceCINumber string
	ServiceClass    string
	ProcessState    string
}

// Index maps normalized resource identifiers to enrichment entries.
// Built once per run; read-only afterwards.
type Index struct {
	tree       *btree.BTreeG[Entry]
	overwrites int
}

// Build walks every application's services and their resources and
// indexes one Entry per derivable resource id. When two services claim
// the same normalized id, the one processed last wins silently.
func Build(apps []types.Application) *Index {
	idx := &Index{
		tree: btree.NewG[Entry](32, func(a, b Entry) bool {
			return a.NormalizedID < b.NormalizedID
		}),
	}

	for _, app := range apps {
		appState := app.ProcessState()

		for _, svc := range app.Services {
			state := svc.ProcessState()
			if state == "" {
				state = appState
			}

			for _, res := range svc.Resources {
				if res.ID == "" {
					continue
				}
				entry := Entry{
					NormalizedID:    Normalize(res.ID),
					ServiceName:     svc.Name,
					ServiceCINumber: svc.CINumber,
					ServiceClass:    svc.SysClass,
					ProcessState:    state,
				}
				if _, replaced := idx.tree.ReplaceOrInsert(entry); replaced {
					idx.overwrites++
				}
			}
		}
	}

	log.Debug().
		Int("entries", idx.tree.Len()).
		Int("overwrites", idx.overwrites).
		Msg("resource-service lookup built")

	return idx
}

// Get returns the entry for a normalized resource id.
func (idx *Index) Get(normalizedID string) (Entry, bool) {
	return idx.tree.Get(Entry{NormalizedID: normalizedID})
}

// Len returns the number of distinct indexed identifiers.
func (idx *Index) Len() int {
	return idx.tree.Len()
}

// Overwrites reports how many index writes replaced an earlier entry.
// Observability only; collisions are not surfaced per-entry.
func (idx *Index) Overwrites() int {
	return idx.overwrites
}

// Ascend visits entries in normalized-id order, for debug dumps.
func (idx *Index) Ascend(fn func(Entry) bool) {
	idx.tree.Ascend(fn)
}
