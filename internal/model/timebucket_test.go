/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// TestJoinSplitRoundTrips verifies property P2: JoinTimestamp is the inverse
// of SplitTimestamp for any microsecond timestamp.
func TestJoinSplitRoundTrips(t *testing.T) {
	cases := []int64{0, 1, 8388607, 8388608, 1700000000000000, 9223372036854}
	for _, ts := range cases {
		t2, t1 := SplitTimestamp(ts)
		require.Equal(t, ts, JoinTimestamp(t2, t1))
	}
}

func TestPrefixedIndexValueCarriesT2Bucket(t *testing.T) {
	require.Equal(t, "42:10.0.0.1", PrefixedIndexValue(42, "10.0.0.1"))
}

func TestFieldNameEpochCoarsensT2(t *testing.T) {
	require.Equal(t, int64(1), FieldNameEpoch(16, 4))
	require.Equal(t, int64(1), FieldNameEpoch(31, 4))
	require.Equal(t, int64(2), FieldNameEpoch(32, 4))
}
