package tree

// keyt is the type of the hashed keys the tree branches on.
type keyt = uint32

// zeroBit checks whether a key is the 0 bit at a given branching point.
func zeroBit(key, bit keyt) bool {
	return key&bit == 0
}

// branchingBit is the lowest bit on which the two prefixes disagree.
func branchingBit(p0, p1 keyt) keyt {
	diff := p0 ^ p1
	return diff & -diff
}

// mask keeps the bits of key strictly below bit.
func mask(key, bit keyt) keyt {
	return key & (bit - 1)
}
