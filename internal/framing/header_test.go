/*************************************************************************
 * Copyright 2017 Gravwell, Inc. All rights reserved.
 * Contact: <legal@gravwell.io>
 *
 * This software may be modified and distributed under the terms of the
 * BSD 2-clause license. See the LICENSE file for details.
 **************************************************************************/

package framing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestParseHeaderExtractsPriorityTimestampHostname(t *testing.T) {
	frame := []byte(`<189>1 2026-07-30T12:00:00.000Z router-1 RT_FLOW_SESSION_CLOSE [junos@2636.1.1.1.2.170 reason="idle Timeout"]`)

	h, err := ParseHeader(frame)
	require.NoError(t, err)
	require.Equal(t, 189, h.Priority)
	require.Equal(t, 189/8, h.Facility)
	require.Equal(t, 189%8, h.Severity)
	require.Equal(t, "2026-07-30T12:00:00.000Z", h.TimestampRaw)
	require.Equal(t, "router-1", h.Hostname)
	require.Equal(t, `RT_FLOW_SESSION_CLOSE [junos@2636.1.1.1.2.170 reason="idle Timeout"]`, string(h.Body))
}

func TestParseHeaderWithoutVersionToken(t *testing.T) {
	frame := []byte(`<189>2026-07-30T12:00:00.000Z router-1 RT_FLOW_SESSION_CLOSE [reason="idle Timeout"]`)

	h, err := ParseHeader(frame)
	require.NoError(t, err)
	require.Equal(t, "router-1", h.Hostname)
}

func TestParseHeaderMissingPriorityErrors(t *testing.T) {
	_, err := ParseHeader([]byte(`not a syslog frame at all`))
	require.ErrorIs(t, err, ErrNoPriority)
}

func TestParseHeaderShortErrors(t *testing.T) {
	_, err := ParseHeader([]byte(`<189>only-one-token`))
	require.ErrorIs(t, err, ErrShortHeader)
}

func TestParseTimestampParsesRFC3339Nano(t *testing.T) {
	fallback := func() time.Time { return time.Unix(0, 0) }

	got := ParseTimestamp("2026-07-30T12:00:00.123456Z", fallback)

	want, _ := time.Parse(time.RFC3339Nano, "2026-07-30T12:00:00.123456Z")
	require.Equal(t, want.UnixMicro(), got)
}

func TestParseTimestampFallsBackToNowOnUnparseable(t *testing.T) {
	fallback := func() time.Time { return time.Unix(1700000000, 0) }

	got := ParseTimestamp("not-a-timestamp", fallback)

	require.Equal(t, fallback().UnixMicro(), got)
}

func TestExtractTagTakesLastTokenBeforeBracket(t *testing.T) {
	require.Equal(t, "RT_FLOW_SESSION_CLOSE", ExtractTag([]byte(`RT_FLOW_SESSION_CLOSE [reason="idle"]`)))
}

func TestExtractTagStripsTrailingColon(t *testing.T) {
	require.Equal(t, "VncApiConfigLog", ExtractTag([]byte(`VncApiConfigLog: [foo="bar"]`)))
}

func TestExtractTagWithoutBracketUsesLastToken(t *testing.T) {
	require.Equal(t, "SYSTEM_LOGIN_EVENT", ExtractTag([]byte(`junos SYSTEM_LOGIN_EVENT`)))
}

func TestStructuredBlockReturnsInterior(t *testing.T) {
	block, err := StructuredBlock([]byte(`RT_FLOW_SESSION_CLOSE [reason="idle" bytes="100"]`))
	require.NoError(t, err)
	require.Equal(t, `reason="idle" bytes="100"`, string(block))
}

func TestStructuredBlockMissingBracketErrors(t *testing.T) {
	_, err := StructuredBlock([]byte(`RT_FLOW_SESSION_CLOSE no brackets here`))
	require.ErrorIs(t, err, ErrNoStructured)
}
