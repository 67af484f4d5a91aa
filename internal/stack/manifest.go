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

package stack

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/uvis-qe/flatqc/internal/plane"
)

// Provenance of a combined product, written next to it as YAML
type Manifest struct {
	Output         string      `yaml:"output"`
	Created        time.Time   `yaml:"created"`
	Method         string      `yaml:"method"`
	MaskByDefect   bool        `yaml:"maskByDefect"`
	CombineDefects bool        `yaml:"combineDefects"`
	Tiled          bool        `yaml:"tiled"`
	Filter         string      `yaml:"filter,omitempty"`
	Epoch          string      `yaml:"epoch,omitempty"`
	DateObs        string      `yaml:"dateObs,omitempty"`
	Proposals      []string    `yaml:"proposals,omitempty"`
	Frames         map[int]int `yaml:"frames"` // per region
	Inputs         []string    `yaml:"inputs"`
}

// Builds the manifest of a finished combination
func NewManifest(output string, m Method, o Options, tiled bool, inputs []string, results map[plane.Region]*Result) Manifest {
	frames := make(map[int]int, len(results))
	for r, res := range results {
		frames[int(r)] = res.Frames
	}
	return Manifest{
		Output:         output,
		Created:        time.Now().UTC(),
		Method:         m.String(),
		MaskByDefect:   o.MaskByDefect,
		CombineDefects: o.CombineDefects,
		Tiled:          tiled,
		Frames:         frames,
		Inputs:         append([]string(nil), inputs...),
	}
}

// Manifest file name for a product
func ManifestName(output string) string { return output + ".yaml" }

func WriteManifest(path string, m Manifest) error {
	data, err := yaml.Marshal(&m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

func ReadManifest(path string) (Manifest, error) {
	var m Manifest
	data, err := os.ReadFile(path)
	if err != nil {
		return m, err
	}
	if err := yaml.Unmarshal(data, &m); err != nil {
		return m, fmt.Errorf("%s: %w", path, err)
	}
	return m, nil
}
