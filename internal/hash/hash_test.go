/*
Copyright © 2018 the AMET authors.
This file is part of AMET.

AMET is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

AMET is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with AMET.  If not, see <http://www.gnu.org/licenses/>.
*/

package hash

import (
	"os"
	"path/filepath"
	"testing"
)

func TestFile(t *testing.T) {
	dir := t.TempDir()
	a, b := filepath.Join(dir, "a"), filepath.Join(dir, "b")
	if err := os.WriteFile(a, []byte("ICMGG"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(b, []byte("ICMSH"), 0644); err != nil {
		t.Fatal(err)
	}
	ha, err := File(a)
	if err != nil {
		t.Fatal(err)
	}
	hb, err := File(b)
	if err != nil {
		t.Fatal(err)
	}
	if ha == hb {
		t.Error("different contents should have different sums")
	}
	if len(ha) != 32 {
		t.Errorf("sum %q should have 32 hex digits", ha)
	}
	h := New()
	h.Write([]byte("ICMGG"))
	if s := Sum(h); s != ha {
		t.Errorf("%s != %s", s, ha)
	}
	if _, err := File(filepath.Join(dir, "missing")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestHash(t *testing.T) {
	x := []string{"a  ICMGG", "b  ICMSH"}
	if Hash(x) != Hash([]string{"a  ICMGG", "b  ICMSH"}) {
		t.Error("equal objects should have equal hashes")
	}
	if Hash(x) == Hash([]string{"b  ICMSH", "a  ICMGG"}) {
		t.Error("order should matter")
	}
	// Channels can't be gob encoded.
	c := struct{ C chan int }{}
	if Hash(c) == "" {
		t.Error("empty hash")
	}
}
