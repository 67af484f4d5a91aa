// Copyright (C) 2020 Markus L. Noga
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package anneal

import (
	"fmt"
	"sort"

	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/logging"
)

// Exposures of one filter taken on one visit date within one anneal epoch
type EpochGroup struct {
	Filter  string
	Epoch   string
	DateObs string
	Files   []string
}

func (g EpochGroup) String() string {
	return fmt.Sprintf("filter %s epoch %s date %s (%d files)", g.Filter, g.Epoch, g.DateObs, len(g.Files))
}

// All exposures of one filter, for the long-term reference
type FilterGroup struct {
	Filter    string
	Proposals []string
	Files     []string
}

// Sets Epoch on every exposure. Exposures after the last anneal or in an
// epoch ending before minMJD are returned separately.
func Assign(metas []fits.ExposureMeta, t *Table, minMJD float64) (assigned, rejected []fits.ExposureMeta) {
	for _, m := range metas {
		mjd, err := MJD(m.DateObs, m.TimeObs)
		if err != nil {
			logging.Warnf("%s: %s", m.File, err)
			rejected = append(rejected, m)
			continue
		}
		label, annealMJD, ok := t.Nearest(mjd)
		if !ok {
			logging.Debugf("%s: MJD %.3f is after the last known anneal", m.File, mjd)
			rejected = append(rejected, m)
			continue
		}
		if annealMJD < minMJD {
			logging.Debugf("%s: epoch %s ends before MJD %g", m.File, label, minMJD)
			rejected = append(rejected, m)
			continue
		}
		m.Epoch = label
		assigned = append(assigned, m)
	}
	return assigned, rejected
}

// Groups exposures with an assigned epoch by filter, epoch and visit date.
// Groups are ordered by filter, then epoch date, then visit date; files keep
// their input order.
func GroupByEpoch(metas []fits.ExposureMeta, t *Table) []EpochGroup {
	order := make(map[string]int, t.Len())
	for i, l := range t.labels {
		order[l] = i
	}
	index := map[[3]string]int{}
	var groups []EpochGroup
	for _, m := range metas {
		if m.Epoch == "" {
			continue
		}
		key := [3]string{m.Filter, m.Epoch, m.DateObs}
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, EpochGroup{Filter: m.Filter, Epoch: m.Epoch, DateObs: m.DateObs})
		}
		groups[i].Files = append(groups[i].Files, m.File)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i], groups[j]
		if a.Filter != b.Filter {
			return a.Filter < b.Filter
		}
		if a.Epoch != b.Epoch {
			return order[a.Epoch] < order[b.Epoch]
		}
		return a.DateObs < b.DateObs
	})
	return groups
}

// Groups exposures by filter. If proposals is non-empty, only exposures
// from those proposals are used. Groups are ordered by filter.
func GroupByFilter(metas []fits.ExposureMeta, proposals []string) []FilterGroup {
	allowed := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		allowed[p] = true
	}
	index := map[string]int{}
	var groups []FilterGroup
	for _, m := range metas {
		if len(allowed) > 0 && !allowed[m.ProposalID] {
			continue
		}
		i, ok := index[m.Filter]
		if !ok {
			i = len(groups)
			index[m.Filter] = i
			groups = append(groups, FilterGroup{Filter: m.Filter})
		}
		g := &groups[i]
		g.Files = append(g.Files, m.File)
		if !contains(g.Proposals, m.ProposalID) {
			g.Proposals = append(g.Proposals, m.ProposalID)
		}
	}
	for i := range groups {
		sort.Strings(groups[i].Proposals)
	}
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].Filter < groups[j].Filter })
	return groups
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
