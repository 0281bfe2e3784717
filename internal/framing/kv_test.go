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

	"github.com/stretchr/testify/require"

	"github.com/gravwell/structuredsyslogd/internal/model"
)

func TestParseStructuredFieldsParsesQuotedPairs(t *testing.T) {
	fields, err := ParseStructuredFields([]byte(`reason="idle Timeout" bytes="1024"`))
	require.NoError(t, err)
	require.Equal(t, "idle Timeout", fields["reason"])
	require.Equal(t, "1024", fields["bytes"])
}

func TestParseStructuredFieldsUnescapesEntities(t *testing.T) {
	fields, err := ParseStructuredFields([]byte(`message="A &amp; B &lt;tag&gt; &quot;quoted&quot;"`))
	require.NoError(t, err)
	require.Equal(t, `A & B <tag> "quoted"`, fields["message"])
}

func TestParseStructuredFieldsUnterminatedQuoteErrors(t *testing.T) {
	_, err := ParseStructuredFields([]byte(`reason="idle`))
	require.ErrorIs(t, err, ErrMalformedFrame)
}

func TestParseStructuredFieldsMissingEqualsStopsCleanly(t *testing.T) {
	fields, err := ParseStructuredFields([]byte(`trailing-garbage`))
	require.NoError(t, err)
	require.Empty(t, fields)
}

func TestBuildRecordCoercesIntFields(t *testing.T) {
	mt := model.MessageTypeConfig{
		IntFields: map[string]struct{}{"bytes": {}},
	}
	h := Header{Hostname: "router-1"}

	rec := BuildRecord(h, "RT_FLOW_SESSION_CLOSE", 1700000000000000, map[string]string{
		"bytes":  "1024",
		"reason": "idle Timeout",
	}, mt)

	require.Equal(t, "router-1", rec.GetString("hostname"))
	require.Equal(t, "RT_FLOW_SESSION_CLOSE", rec.Tag())
	require.EqualValues(t, 1700000000000000, rec.TimestampUsec())

	bytesVal, ok := rec.GetInt64("bytes")
	require.True(t, ok)
	require.EqualValues(t, 1024, bytesVal)
	require.Equal(t, "idle Timeout", rec.GetString("reason"))
}

func TestBuildRecordFallsBackToStringOnBadIntField(t *testing.T) {
	mt := model.MessageTypeConfig{
		IntFields: map[string]struct{}{"bytes": {}},
	}
	h := Header{Hostname: "router-1"}

	rec := BuildRecord(h, "RT_FLOW_SESSION_CLOSE", 0, map[string]string{
		"bytes": "not-a-number",
	}, mt)

	require.Equal(t, "not-a-number", rec.GetString("bytes"))
}
