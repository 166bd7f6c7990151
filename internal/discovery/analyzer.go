// Package discovery implements the CreateRelationAnalyzer and
// DiscoveryDriver (spec.md §4.5): the fixed-point closure that widens the
// DApp contract set from CREATE/CREATE2 parent/child relations, grounded on
// original_source/raw_trace_retriever/create_relations.py.
package discovery

import (
	mapset "github.com/deckarep/golang-set/v2"

	"dapp-trace-extractor/internal/trace"
)

// DenyList holds addresses that must never join the DApp set even when a
// CREATE/CREATE2 relation would otherwise admit them — e.g. well-known
// factory or proxy-registry contracts shared across unrelated DApps
// (create_relations.py's remove_predefined_contracts).
type DenyList = mapset.Set[string]

// NewDenyList builds a DenyList from a fixed address slice.
func NewDenyList(addresses []string) DenyList {
	return mapset.NewSet(addresses...)
}

// Analyzer implements create_relations.py's inner fixed-point loop: given
// the full set of trace rows accumulated so far and the current DApp/
// frontier sets, it widens both until no new CREATE/CREATE2 relation adds a
// contract, then prunes the deny list.
type Analyzer struct {
	denyList DenyList
}

func NewAnalyzer(denyList DenyList) *Analyzer {
	if denyList == nil {
		denyList = mapset.NewSet[string]()
	}
	return &Analyzer{denyList: denyList}
}

// Widen runs create_relations.py's while-loop to local convergence: it
// repeatedly computes creators-of and creations-of relations over the full
// accumulated rows and unions them into dapp/frontier until a pass adds
// nothing, then removes denied addresses from both sets. It returns the
// updated (dapp, frontier) sets; frontier holds exactly the addresses newly
// admitted this call (the next outer DiscoveryDriver iteration's seed set).
func (a *Analyzer) Widen(rows []trace.Row, dapp mapset.Set[string]) (newDApp mapset.Set[string], newlyAdmitted mapset.Set[string]) {
	creates := creationRows(rows)

	current := dapp.Clone()
	frontier := mapset.NewSet[string]()

	for {
		creators := creatorsOf(creates, current)
		creations := creationsOf(creates, current)

		widened := current.Clone()
		widened = widened.Union(creators)
		widened = widened.Union(creations)

		if widened.Equal(current) {
			break
		}
		current = widened
	}

	for addr := range current.Iter() {
		if !dapp.Contains(addr) {
			frontier.Add(addr)
		}
	}

	current = pruneDenied(current, a.denyList)
	frontier = pruneDenied(frontier, a.denyList)

	return current, frontier
}

// creationRows filters rows down to CREATE/CREATE2 steps, the only rows
// create_relations.py's algorithm considers.
func creationRows(rows []trace.Row) []trace.Row {
	out := make([]trace.Row, 0, len(rows))
	for _, r := range rows {
		if r.Kind == trace.KindCreate || r.Kind == trace.KindCreate2 {
			out = append(out, r)
		}
	}
	return out
}

// creatorsOf returns the `from` address of every creation row whose `to`
// (the newly created contract) is already in set — i.e. the deployer of a
// known DApp contract joins the set too.
func creatorsOf(creates []trace.Row, set mapset.Set[string]) mapset.Set[string] {
	out := mapset.NewSet[string]()
	for _, r := range creates {
		if set.Contains(r.To) {
			out.Add(r.From)
		}
	}
	return out
}

// creationsOf returns the `to` address of every creation row whose `from`
// (the deployer) is already in set — a contract created by a known DApp
// contract joins the set too.
func creationsOf(creates []trace.Row, set mapset.Set[string]) mapset.Set[string] {
	out := mapset.NewSet[string]()
	for _, r := range creates {
		if set.Contains(r.From) {
			out.Add(r.To)
		}
	}
	return out
}

func pruneDenied(set mapset.Set[string], deny DenyList) mapset.Set[string] {
	if deny == nil || deny.Cardinality() == 0 {
		return set
	}
	return set.Difference(deny)
}
