/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package model

import "strconv"

// T2Shift is the bit width of T1, the intra-bucket offset; the T2 bucket
// width is 2^23 microseconds, about 8.39s (spec.md §6).
const T2Shift = 23

const t1Mask = (int64(1) << T2Shift) - 1

// SplitTimestamp decomposes a microsecond timestamp into its high (T2) and
// low (T1) halves per spec.md's invariant: T2 = ts >> 23, T1 = ts & (2^23-1).
func SplitTimestamp(tsUsec int64) (t2, t1 int64) {
	t2 = tsUsec >> T2Shift
	t1 = tsUsec & t1Mask
	return
}

// JoinTimestamp reassembles a microsecond timestamp from its T2/T1 halves;
// the inverse of SplitTimestamp, used by property test P2.
func JoinTimestamp(t2, t1 int64) int64 {
	return (t2 << T2Shift) | (t1 & t1Mask)
}

// IndexPrefix returns the "T2:" prefix that must lead every value stored in
// a secondary-index column (spec.md invariant §3.2, property P3).
func IndexPrefix(t2 int64) string {
	return strconv.FormatInt(t2, 10) + ":"
}

// PrefixedIndexValue prefixes val with the T2 bucket so that range scans
// within a bucket stay contiguous.
func PrefixedIndexValue(t2 int64, val string) string {
	return IndexPrefix(t2) + val
}

// FieldNameEpoch computes the coarser epoch bucket T2 >> K used by the
// field-names de-dup cache (spec.md §4.4, glossary "Epoch").
func FieldNameEpoch(t2 int64, k uint) int64 {
	return t2 >> k
}
