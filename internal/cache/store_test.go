// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cache

import (
	"context"
	"errors"
	"testing"
)

func openStores(t *testing.T) map[string]Store {
	t.Helper()
	badgerStore, err := OpenBadgerStore("")
	if err != nil {
		t.Fatalf("Failed to open badger: %v", err)
	}
	t.Cleanup(func() { _ = badgerStore.Close() })

	return map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"badger": badgerStore,
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range openStores(t) {
		t.Run(name, func(t *testing.T) {
			if _, err := s.Get(ctx, "users/uid-1.dump"); !errors.Is(err, ErrNotFound) {
				t.Fatalf("expected ErrNotFound, got %v", err)
			}
			if err := s.Put(ctx, "users/uid-1.dump", []byte("one")); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, "users/uid-1.dump", []byte("two")); err != nil {
				t.Fatal(err)
			}
			got, err := s.Get(ctx, "users/uid-1.dump")
			if err != nil {
				t.Fatal(err)
			}
			if string(got) != "two" {
				t.Errorf("got %q, want two", got)
			}
		})
	}
}

func TestFileStoreRejectsEscapingKeys(t *testing.T) {
	s := NewFileStore(t.TempDir())
	if err := s.Put(context.Background(), "../outside.dump", []byte("x")); err == nil {
		t.Error("expected an error for a key outside the root")
	}
}

func TestCodec(t *testing.T) {
	type payload struct {
		Name  string    `json:"name"`
		Items []float64 `json:"items"`
	}
	in := payload{Name: "video1", Items: []float64{1, 2.5, -3}}

	data, err := encode(in)
	if err != nil {
		t.Fatal(err)
	}
	if data[0] != codecVersion {
		t.Errorf("version byte = %d", data[0])
	}

	var out payload
	if err := decode(data, &out); err != nil {
		t.Fatal(err)
	}
	if out.Name != in.Name || len(out.Items) != 3 || out.Items[1] != 2.5 {
		t.Errorf("decoded %+v", out)
	}

	for name, bad := range map[string][]byte{
		"empty":         nil,
		"wrong version": append([]byte{codecVersion + 1}, data[1:]...),
		"truncated":     data[:len(data)/2],
	} {
		if err := decode(bad, &out); !errors.Is(err, errCorrupt) {
			t.Errorf("%s: expected errCorrupt, got %v", name, err)
		}
	}
}
