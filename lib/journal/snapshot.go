// Copyright 2026 The Custodia Authors
// SPDX-License-Identifier: Apache-2.0

package journal

import (
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"

	"github.com/custodia-foundation/custodia/lib/codec"
)

// snapshotMagic opens every snapshot stream. A version byte follows so
// the format can evolve without guessing from the payload.
var snapshotMagic = []byte{'c', 'u', 's', 't', 'o', 'd', 'i', 'a', '-', 'j', 'n', 'l', 1}

// WriteSnapshot writes entries to w as a zstd-compressed stream of
// CBOR-encoded entries. The snapshot preserves envelopes verbatim, so
// the hash chain inside it can be verified offline with [VerifyChain].
func WriteSnapshot(w io.Writer, entries []Entry) error {
	compressor, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return fmt.Errorf("journal: initializing snapshot compressor: %w", err)
	}

	if _, err := compressor.Write(snapshotMagic); err != nil {
		return fmt.Errorf("journal: writing snapshot header: %w", err)
	}

	encoder := codec.NewEncoder(compressor)
	for i := range entries {
		if err := encoder.Encode(&entries[i]); err != nil {
			return fmt.Errorf("journal: encoding snapshot entry %d: %w", entries[i].Seq, err)
		}
	}

	if err := compressor.Close(); err != nil {
		return fmt.Errorf("journal: finishing snapshot: %w", err)
	}
	return nil
}

// ReadSnapshot decodes a snapshot written by [WriteSnapshot] and
// verifies the hash chain of the entries it contains. The anchor is
// the PrevHash expected of the first entry: the zero hash for a
// snapshot taken from the journal's beginning.
func ReadSnapshot(r io.Reader, anchor Hash) ([]Entry, error) {
	decompressor, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("journal: initializing snapshot decompressor: %w", err)
	}
	defer decompressor.Close()

	header := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(decompressor, header); err != nil {
		return nil, fmt.Errorf("journal: reading snapshot header: %w", err)
	}
	for i, b := range snapshotMagic {
		if header[i] != b {
			return nil, errors.New("journal: not a journal snapshot")
		}
	}

	var entries []Entry
	decoder := codec.NewDecoder(decompressor)
	for {
		var entry Entry
		if err := decoder.Decode(&entry); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, fmt.Errorf("journal: decoding snapshot entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := VerifyChain(entries, anchor); err != nil {
		return nil, err
	}
	return entries, nil
}
