/*
 * Copyright (c) 2025 The Embercoin developers
 * Use of this source code is governed by an ISC
 * license that can be found in the LICENSE file.
 */

package chainhash

// HashMerkleBranches takes two hashes, treated as the left and right tree
// nodes, and returns the hash of their concatenation.  This is a helper
// function used to aid in the generation of a merkle tree.
func HashMerkleBranches(left *Hash, right *Hash) *Hash {
	// Concatenate the left and right nodes.
	var hash [HashSize * 2]byte
	copy(hash[:HashSize], left[:])
	copy(hash[HashSize:], right[:])

	newHash := DoubleHashH(hash[:])
	return &newHash
}

// MerkleTreeRoot computes the root of the merkle tree built from the passed
// leaves.  A single leaf is its own root.  An odd number of nodes on any
// level is handled by hashing the last node with itself.
func MerkleTreeRoot(leaves []Hash) Hash {
	if len(leaves) == 0 {
		return ZeroHash
	}

	level := make([]Hash, len(leaves))
	copy(level, leaves)

	for len(level) > 1 {
		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, *HashMerkleBranches(&level[i], &level[i]))
				continue
			}
			next = append(next, *HashMerkleBranches(&level[i], &level[i+1]))
		}
		level = next
	}

	return level[0]
}

// BuildMerkleTreeProof returns the chain of sibling hashes needed to prove
// that the first leaf is part of the tree formed by txHashes.
func BuildMerkleTreeProof(txHashes []Hash) []Hash {
	proof := make([]Hash, 0, 1)
	level := make([]Hash, len(txHashes))
	copy(level, txHashes)

	for len(level) > 1 {
		// The proven leaf sits at index 0 on each level, so its sibling is
		// always the node at index 1.
		proof = append(proof, level[1])

		next := make([]Hash, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 == len(level) {
				next = append(next, *HashMerkleBranches(&level[i], &level[i]))
				continue
			}
			next = append(next, *HashMerkleBranches(&level[i], &level[i+1]))
		}
		level = next
	}

	return proof
}

// ValidateMerkleTreeProof folds the leaf with every node of the proof and
// reports whether the result matches the expected root.
func ValidateMerkleTreeProof(leaf Hash, proof []Hash, root Hash) bool {
	acc := leaf
	for i := range proof {
		acc = *HashMerkleBranches(&acc, &proof[i])
	}
	return acc == root
}
