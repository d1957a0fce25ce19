package storage

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

var snapshotMagic = []byte("CSNAP\x01")

// maxFrameSize bounds a single record frame when reading untrusted input.
const maxFrameSize = 64 << 20

// Export writes every embedding in store to w as a zstd-compressed stream of
// length-prefixed records. Returns the number of records written.
func Export(ctx context.Context, store EmbeddingStore, w io.Writer) (int, error) {
	records, err := store.Query(ctx, nil, 0)
	if err != nil {
		return 0, err
	}

	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(enc)

	if _, err := bw.Write(snapshotMagic); err != nil {
		enc.Close()
		return 0, err
	}

	var lenBuf [binary.MaxVarintLen64]byte
	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			enc.Close()
			return i, err
		}
		payload := MarshalEmbedding(rec)
		n := binary.PutUvarint(lenBuf[:], uint64(len(payload)))
		if _, err := bw.Write(lenBuf[:n]); err != nil {
			enc.Close()
			return i, err
		}
		if _, err := bw.Write(payload); err != nil {
			enc.Close()
			return i, err
		}
	}

	if err := bw.Flush(); err != nil {
		enc.Close()
		return len(records), err
	}
	return len(records), enc.Close()
}

// Import reads a stream produced by Export and puts every record into store.
// Records are written through Put, so the target store's dimension rules apply
// and timestamps are assigned by the target. Returns the number of records imported.
func Import(ctx context.Context, store EmbeddingStore, r io.Reader) (int, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	defer dec.Close()
	br := bufio.NewReader(dec)

	magic := make([]byte, len(snapshotMagic))
	if _, err := io.ReadFull(br, magic); err != nil {
		return 0, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
	}
	if !bytes.Equal(magic, snapshotMagic) {
		return 0, fmt.Errorf("%w: bad header", ErrInvalidSnapshot)
	}

	count := 0
	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}
		size, err := binary.ReadUvarint(br)
		if errors.Is(err, io.EOF) {
			return count, nil
		}
		if err != nil {
			return count, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		if size > maxFrameSize {
			return count, fmt.Errorf("%w: frame of %d bytes", ErrInvalidSnapshot, size)
		}
		payload := make([]byte, size)
		if _, err := io.ReadFull(br, payload); err != nil {
			return count, fmt.Errorf("%w: %w", ErrInvalidSnapshot, err)
		}
		rec, err := UnmarshalEmbedding(payload)
		if err != nil {
			return count, fmt.Errorf("%w: frame %d: %w", ErrInvalidSnapshot, count, err)
		}
		if err := store.Put(ctx, rec.EntityID, rec.Vector, rec.Metadata); err != nil {
			return count, err
		}
		count++
	}
}
