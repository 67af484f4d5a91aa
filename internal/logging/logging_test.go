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

package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSetRoutesHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := Logger()
	Set(zap.New(core))
	defer Set(prev)

	Debugf("debug %d", 1)
	Printf("info %s", "x")
	Warnf("region %d skipped", 2)
	Errorf("boom")

	entries := logs.AllUntimed()
	if len(entries) != 4 {
		t.Fatalf("expected 4 entries, got %d", len(entries))
	}
	if entries[2].Level != zapcore.WarnLevel || entries[2].Message != "region 2 skipped" {
		t.Errorf("unexpected warn entry %+v", entries[2])
	}
}

func TestInitRejectsBadOptions(t *testing.T) {
	if err := Init(Options{Level: "loud"}); err == nil {
		t.Error("expected error for unknown level")
	}
	if err := Init(Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestInitWritesLogFile(t *testing.T) {
	prev := Logger()
	defer Set(prev)

	file := filepath.Join(t.TempDir(), "run.log")
	if err := Init(Options{Level: "info", Format: "json", File: file}); err != nil {
		t.Fatal(err)
	}
	Printf("hello %s", "file")
	Sync()

	data, err := os.ReadFile(file)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "hello file") {
		t.Errorf("log file does not contain message: %q", data)
	}
}
