package modem

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHasTerminator(t *testing.T) {
	require.True(t, hasTerminator("\r\nOK\r\n"))
	require.True(t, hasTerminator("\rOK\r"))
	require.True(t, hasTerminator("\nOK\n"))
	require.True(t, hasTerminator("AT\r\r\nERROR\r\n"))
	require.True(t, hasTerminator("\r\n+CME ERROR: 10\r\n"))
	require.True(t, hasTerminator("\r\n+CMS ERROR: 500\r\n"))
	require.False(t, hasTerminator("\r\nSMOKE\r\n"))
	require.False(t, hasTerminator("+CSQ: 20,99"))
	require.False(t, hasTerminator(""))
}

func TestExtractPayload(t *testing.T) {
	raw := "AT+CSQ\r\r\n+CSQ: 20,99\r\n\r\nOK\r\n"
	require.Equal(t, "+CSQ: 20,99", extractPayload(raw, "AT+CSQ"))

	raw = "\r\nQuectel\r\nEC25\r\nOK\r\n"
	require.Equal(t, "Quectel EC25", extractPayload(raw, "ATI"))
}

func TestDigitRun(t *testing.T) {
	require.Equal(t, "8986112345678901234", digitRun("+CCID: 8986112345678901234F"))
	require.Equal(t, "", digitRun("no digits"))
	require.Equal(t, "123456", digitRun("ab12cd123456ef"))
}

func TestFirstQuoted(t *testing.T) {
	require.Equal(t, "Chunghwa Telecom", firstQuoted(`+COPS: 0,0,"Chunghwa Telecom",7`))
	require.Equal(t, "", firstQuoted("no quotes here"))
}
