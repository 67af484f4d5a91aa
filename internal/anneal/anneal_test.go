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
	"errors"
	"math"
	"path/filepath"
	"strings"
	"testing"

	"github.com/uvis-qe/flatqc/internal/fits"
	"github.com/uvis-qe/flatqc/internal/plane"
)

const publishedTable = `# UVIS anneal dates
#  MJD        date        comment
55330.21  2010-05-14   anneal
55360.07  2010-06-13   anneal
55389.9   2010-07-12   decontamination

56047.5   2012-04-27   anneal_start
56078.25  2012-05-28   anneal
`

func TestParseTable(t *testing.T) {
	mjds, err := ParseTable(strings.NewReader(publishedTable))
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"55330.21", "55360.07", "56047.5", "56078.25"}
	if strings.Join(mjds, " ") != strings.Join(want, " ") {
		t.Errorf("got %v, want %v", mjds, want)
	}
}

func TestMJDListRoundTrip(t *testing.T) {
	name := filepath.Join(t.TempDir(), "anneal_mjds.txt")
	// unsorted on purpose
	if err := WriteMJDList(name, []string{"56078.25", "55330.21", "56047.5"}); err != nil {
		t.Fatal(err)
	}
	table, err := ReadMJDList(name)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(table.Labels(), " "); got != "55330.21 56047.5 56078.25" {
		t.Errorf("labels %s", got)
	}
	if got := table.LabelsFrom(56000); len(got) != 2 || got[0] != "56047.5" {
		t.Errorf("labels from 56000: %v", got)
	}
	if _, err := NewTable([]string{"55330", "soon"}); !errors.Is(err, plane.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestNearest(t *testing.T) {
	table, err := NewTable([]string{"100", "200", "300"})
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range []struct {
		mjd   float64
		label string
		ok    bool
	}{
		{50, "100", true},
		{100, "100", true},
		{100.001, "200", true},
		{200, "200", true},
		{299.9, "300", true},
		{300, "300", true},
		{300.5, "", false},
	} {
		label, _, ok := table.Nearest(c.mjd)
		if label != c.label || ok != c.ok {
			t.Errorf("Nearest(%g) = %q %v, want %q %v", c.mjd, label, ok, c.label, c.ok)
		}
	}
}

func TestMJD(t *testing.T) {
	mjd, err := MJD("2012-05-01", "")
	if err != nil {
		t.Fatal(err)
	}
	if mjd != 56048 {
		t.Errorf("2012-05-01 is MJD 56048, got %g", mjd)
	}
	mjd, err = MJD("1858-11-17", "12:00:00")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(mjd-0.5) > 1e-9 {
		t.Errorf("expected 0.5, got %g", mjd)
	}
	if _, err := MJD("01/05/2012", ""); !errors.Is(err, plane.ErrInvalidArgument) {
		t.Errorf("expected ErrInvalidArgument, got %v", err)
	}
}

func TestGrouping(t *testing.T) {
	table, err := NewTable([]string{"55330", "56047", "56078"})
	if err != nil {
		t.Fatal(err)
	}
	metas := []fits.ExposureMeta{
		{File: "a", Filter: "F475W", ProposalID: "12345", DateObs: "2012-05-01"}, // MJD 56048
		{File: "b", Filter: "F475W", ProposalID: "12345", DateObs: "2012-05-01", TimeObs: "10:00:00"},
		{File: "c", Filter: "F475W", ProposalID: "12346", DateObs: "2012-04-20"}, // 56037
		{File: "d", Filter: "F275W", ProposalID: "12345", DateObs: "2012-05-02"},
		{File: "e", Filter: "F275W", ProposalID: "12345", DateObs: "2013-01-01"}, // after last anneal
		{File: "f", Filter: "F275W", ProposalID: "11111", DateObs: "2009-01-01"}, // before MJD 56000 epochs
	}
	assigned, rejected := Assign(metas, table, 56000)
	if len(assigned) != 4 || len(rejected) != 2 {
		t.Fatalf("assigned %v rejected %v", assigned, rejected)
	}
	if metas[0].Epoch != "" {
		t.Error("input metadata was modified")
	}

	groups := GroupByEpoch(assigned, table)
	want := []string{
		"filter F275W epoch 56078 date 2012-05-02 (1 files)",
		"filter F475W epoch 56047 date 2012-04-20 (1 files)",
		"filter F475W epoch 56078 date 2012-05-01 (2 files)",
	}
	if len(groups) != len(want) {
		t.Fatalf("groups %v", groups)
	}
	for i := range want {
		if groups[i].String() != want[i] {
			t.Errorf("group %d: %s, want %s", i, groups[i], want[i])
		}
	}
	if groups[2].Files[0] != "a" || groups[2].Files[1] != "b" {
		t.Errorf("file order not kept: %v", groups[2].Files)
	}

	all := GroupByFilter(metas, nil)
	if len(all) != 2 || all[0].Filter != "F275W" || len(all[0].Files) != 3 || strings.Join(all[0].Proposals, ",") != "11111,12345" {
		t.Errorf("unexpected filter groups %+v", all)
	}
	some := GroupByFilter(metas, []string{"12346"})
	if len(some) != 1 || some[0].Filter != "F475W" || len(some[0].Files) != 1 {
		t.Errorf("proposal restriction not applied: %+v", some)
	}
}
