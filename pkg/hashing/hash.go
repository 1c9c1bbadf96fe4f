// Package hashing provides the content fingerprint shared by the descriptor writer and the analysis stores.
package hashing

import (
	"strconv"

	"github.com/minio/highwayhash"
)

var key = []byte("modcheck-content-fingerprint-k32")

// Sum64 returns the 64-bit HighwayHash of data.
func Sum64(data []byte) uint64 {
	hash, err := highwayhash.New64(key)
	if err != nil {
		// key length is fixed at 32 bytes, New64 only fails on a bad key
		panic(err)
	}
	_, _ = hash.Write(data)
	return hash.Sum64()
}

// Hex returns Sum64 formatted as a fixed-width hex string, suitable for cache keys.
func Hex(data []byte) string {
	s := strconv.FormatUint(Sum64(data), 16)
	for len(s) < 16 {
		s = "0" + s
	}
	return s
}
