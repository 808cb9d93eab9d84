package modem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeUcs2IfNeeded_HexPayload(t *testing.T) {
	require.Equal(t, "你你", DecodeUcs2IfNeeded("4F604F60"))
}

func TestDecodeUcs2IfNeeded_StripsQuotesAndWhitespace(t *testing.T) {
	require.Equal(t, "你你", DecodeUcs2IfNeeded("\"4F60 4F60\"\r\n"))
}

func TestDecodeUcs2IfNeeded_TrimsTrailingHalfWords(t *testing.T) {
	// 10 hex chars: the odd trailing half word is dropped.
	require.Equal(t, "你你", DecodeUcs2IfNeeded("4F604F60AB"))
}

func TestDecodeUcs2IfNeeded_PassThrough(t *testing.T) {
	cases := []string{
		"Hello",           // non-hex letters
		"123",             // too short
		"4F6G",            // one non-hex char
		"Meet at 4, ok?",  // punctuation
		"",                // empty
	}
	for _, c := range cases {
		require.Equal(t, c, DecodeUcs2IfNeeded(c))
	}
}

func TestUcs2RoundTrip(t *testing.T) {
	cases := []string{
		"你好世界",
		"Hello, World!",
		"Ünïcodé тест",
		"混合 mixed 內容 123",
	}
	for _, s := range cases {
		require.Equal(t, s, DecodeUcs2IfNeeded(EncodeUcs2Hex(s)))
	}
}
