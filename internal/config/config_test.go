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

package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stack.Method != "mean" || cfg.Stack.Tiling != "auto" || cfg.Stack.TileFileThreshold != 150 {
		t.Errorf("unexpected stack defaults %+v", cfg.Stack)
	}
	if len(cfg.Detect.Thresholds) != 5 || len(cfg.Detect.LowerBounds) != 3 {
		t.Errorf("unexpected detect sweep defaults %+v", cfg.Detect)
	}
	if !cfg.Detect.MaskBorder || cfg.Detect.BorderRows != 10 {
		t.Errorf("unexpected border defaults %+v", cfg.Detect)
	}
}

func TestLoadFileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "flatqc.yaml")
	content := "stack:\n  method: median\n  maskByDefect: true\ndetect:\n  thresholds: [-3]\n  lowerBounds: [-8, -9]\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stack.Method != "median" || !cfg.Stack.MaskByDefect {
		t.Errorf("file values not applied: %+v", cfg.Stack)
	}
	if len(cfg.Detect.Thresholds) != 1 || cfg.Detect.Thresholds[0] != -3 || len(cfg.Detect.LowerBounds) != 2 {
		t.Errorf("file sweep not applied: %+v", cfg.Detect)
	}
	if cfg.Serve.Port != 8080 {
		t.Errorf("default lost for untouched section: %+v", cfg.Serve)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("FLATQC_STACK_TILING", "always")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Stack.Tiling != "always" {
		t.Errorf("expected env override, got %q", cfg.Stack.Tiling)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("stack:\n  method: mode\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("expected validation error for unknown method")
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "flatqc.yaml")
	cfg := Default()
	cfg.Catalog.DSN = "catalog.db"
	if err := Save(cfg, path); err != nil {
		t.Fatal(err)
	}
	back, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if back.Catalog.DSN != "catalog.db" {
		t.Errorf("expected saved dsn, got %q", back.Catalog.DSN)
	}
}
