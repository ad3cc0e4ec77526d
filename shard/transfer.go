package shard

import (
	"context"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/hupe1980/vecmesh/codec"
)

// Transport moves an encoded batch to the node owning the target shard.
// TransferBatch must be idempotent: the same batch may be replayed after a
// failure or resume. A nil error means the batch is durably transferred.
type Transport interface {
	TransferBatch(ctx context.Context, targetShard string, data []byte) error
}

// EncodeBatch serializes and zstd-compresses a batch for transfer.
func EncodeBatch(c codec.Codec, b *Batch) ([]byte, error) {
	if c == nil {
		c = codec.Default
	}

	raw, err := c.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("shard: encode batch %s: %w", b.ID, err)
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	defer enc.Close()

	return enc.EncodeAll(raw, nil), nil
}

// DecodeBatch reverses EncodeBatch.
func DecodeBatch(c codec.Codec, data []byte) (*Batch, error) {
	if c == nil {
		c = codec.Default
	}

	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	raw, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("shard: decompress batch: %w", err)
	}

	var b Batch
	if err := c.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("shard: decode batch: %w", err)
	}
	return &b, nil
}

// Loopback is a Transport that delivers batches in-process, used for
// single-node deployments and tests. The apply callback receives the
// decoded batch and must itself be idempotent.
type Loopback struct {
	codec codec.Codec
	apply func(ctx context.Context, targetShard string, b *Batch) error
}

// NewLoopback creates a Loopback transport. A nil apply discards batches.
func NewLoopback(c codec.Codec, apply func(ctx context.Context, targetShard string, b *Batch) error) *Loopback {
	return &Loopback{codec: c, apply: apply}
}

// TransferBatch implements Transport.
func (l *Loopback) TransferBatch(ctx context.Context, targetShard string, data []byte) error {
	b, err := DecodeBatch(l.codec, data)
	if err != nil {
		return err
	}
	if l.apply == nil {
		return nil
	}
	return l.apply(ctx, targetShard, b)
}
