// Package auth implements the headset's challenge-response link handshake.
package auth

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/srg/ihslink/internal/device"
)

// SharedSecret is the constant shared between the headset firmware and its clients.
const SharedSecret uint32 = 0xE47325F4

var (
	ErrNonceUnavailable = errors.New("nonce characteristic unavailable")
	ErrEmptyNonce       = errors.New("nonce read returned no data")
	ErrKeyUnavailable   = errors.New("key characteristic unavailable")
	ErrKeyWrite         = errors.New("key write failed")
)

// ComputeResponseKey derives the response key for a nonce: the nonce is XORed
// with SharedSecret and rotated left by its low five bits.
func ComputeResponseKey(nonce uint32) uint32 {
	v := uint64(nonce ^ SharedSecret)
	s := uint64(nonce & 0x1F)
	return uint32((v << s) | (v >> (32 - s)))
}

// Handshake reads the nonce uncached, computes the response key and writes it
// back with a write acknowledgement. Both characteristics must be non-nil.
func Handshake(ctx context.Context, nonceChar, keyChar device.Characteristic) (uint32, error) {
	if nonceChar == nil {
		return 0, ErrNonceUnavailable
	}
	if keyChar == nil {
		return 0, ErrKeyUnavailable
	}

	raw, err := nonceChar.Read(ctx, device.Uncached)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNonceUnavailable, err)
	}
	if len(raw) == 0 {
		return 0, ErrEmptyNonce
	}

	nonce := decodeNonce(raw)
	key := ComputeResponseKey(nonce)

	out := make([]byte, 4)
	binary.LittleEndian.PutUint32(out, key)
	if err := keyChar.Write(ctx, out, true); err != nil {
		return nonce, fmt.Errorf("%w: %v", ErrKeyWrite, err)
	}
	return nonce, nil
}

// decodeNonce reads a little-endian u32, zero-extending shorter payloads.
func decodeNonce(raw []byte) uint32 {
	var buf [4]byte
	copy(buf[:], raw)
	return binary.LittleEndian.Uint32(buf[:])
}
