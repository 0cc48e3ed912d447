// Copyright (c) 2015-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package machine

import (
	"crypto/rand"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
)

// genRandomSig returns a random message, a signature of the message under
// the public key, and the public key.
func genRandomSig(t *testing.T) (*chainhash.Hash, *ecdsa.Signature, *btcec.PublicKey) {
	t.Helper()

	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	var msgHash chainhash.Hash
	_, err = rand.Read(msgHash[:])
	require.NoError(t, err)

	sig := ecdsa.Sign(privKey, msgHash[:])
	return &msgHash, sig, privKey.PubKey()
}

// TestSigCacheAddExists tests the ability to add, and later check the
// existence of a signature triplet in the signature cache.
func TestSigCacheAddExists(t *testing.T) {
	t.Parallel()

	sigCache := NewSigCache(200)

	// Generate a random sigCache entry triplet.
	msg1, sig1, key1 := genRandomSig(t)

	// Add the triplet to the signature cache.
	sigCache.Add(*msg1, sig1, key1)

	// The previously added triplet should now be found within the
	// sigcache.
	require.True(t, sigCache.Exists(*msg1, sig1, key1),
		"previously added item not found in signature cache")
}

// TestSigCacheAddEvictEntry tests the eviction case where a new signature
// triplet is added to a full signature cache which should trigger randomized
// eviction, then verifies the newly added triplet can be located.
func TestSigCacheAddEvictEntry(t *testing.T) {
	t.Parallel()

	// Create a sigcache that can hold up to 100 entries.
	sigCacheSize := uint(100)
	sigCache := NewSigCache(sigCacheSize)

	// Fill the sigcache up with some random sig triplets.
	for i := uint(0); i < sigCacheSize; i++ {
		msg, sig, key := genRandomSig(t)
		sigCache.Add(*msg, sig, key)
	}

	// The sigcache should now have sigCacheSize entries within it.
	require.Len(t, sigCache.validSigs, int(sigCacheSize))

	// Add a new entry, this should cause eviction of a randomly chosen
	// previous entry.
	msgNew, sigNew, keyNew := genRandomSig(t)
	sigCache.Add(*msgNew, sigNew, keyNew)

	// The sigcache should still have sigCacheSize entries.
	require.Len(t, sigCache.validSigs, int(sigCacheSize))

	// The entry added last should be found within the sigcache.
	require.True(t, sigCache.Exists(*msgNew, sigNew, keyNew),
		"previously added item not found in signature cache")
}

// TestSigCacheAddMaxEntriesZeroOrNegative tests that if a sigCache is
// created with a max size <= 0, then no entries are added to the sigcache at
// all.
func TestSigCacheAddMaxEntriesZeroOrNegative(t *testing.T) {
	t.Parallel()

	// Create a sigcache that can hold up to 0 entries.
	sigCache := NewSigCache(0)

	// Generate a random sigCache entry triplet.
	msg1, sig1, key1 := genRandomSig(t)

	// Add the triplet to the signature cache.
	sigCache.Add(*msg1, sig1, key1)

	// The generated triplet should not be found.
	require.False(t, sigCache.Exists(*msg1, sig1, key1),
		"found item in sigcache that should not be there")

	// There shouldn't be any entries in the sigCache.
	require.Len(t, sigCache.validSigs, 0)
}
