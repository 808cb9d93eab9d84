package hub

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	msg, err := NewMessage(MessageTypeSendSms, SendSmsPayload{
		DeviceID:       "EDGE01",
		ComPort:        "COM3",
		TargetNumber:   "+15551234567",
		MessageContent: "hi",
		RecordID:       9,
	})
	require.NoError(t, err)

	var decoded SendSmsPayload
	require.NoError(t, msg.Decode(&decoded))
	require.Equal(t, "EDGE01", decoded.DeviceID)
	require.Equal(t, uint(9), decoded.RecordID)
}

func TestPayloadsUseLowerCamelCase(t *testing.T) {
	b, err := json.Marshal(SmsReceivedPayload{DeviceID: "D1", SmsJson: "{}"})
	require.NoError(t, err)
	require.JSONEq(t, `{"deviceId":"D1","smsJson":"{}"}`, string(b))

	b, err = json.Marshal(SmsSendResultPayload{RecordID: 3, Status: "Success"})
	require.NoError(t, err)
	require.JSONEq(t, `{"recordId":3,"status":"Success"}`, string(b))
}
