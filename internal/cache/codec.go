// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package cache

import (
	"errors"
	"fmt"

	"github.com/goccy/go-json"
	"github.com/klauspost/compress/zstd"
)

// codecVersion prefixes every blob. Bump it when a cached type changes shape.
const codecVersion byte = 1

var errCorrupt = errors.New("cache: corrupt entry")

var (
	encoder, _ = zstd.NewWriter(nil)
	decoder, _ = zstd.NewReader(nil)
)

func encode(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cache: encode: %w", err)
	}
	return encoder.EncodeAll(raw, []byte{codecVersion}), nil
}

func decode(data []byte, v any) error {
	if len(data) == 0 || data[0] != codecVersion {
		return errCorrupt
	}
	raw, err := decoder.DecodeAll(data[1:], nil)
	if err != nil {
		return fmt.Errorf("%w: %v", errCorrupt, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: %v", errCorrupt, err)
	}
	return nil
}
