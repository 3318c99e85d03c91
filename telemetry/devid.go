package telemetry

import "whacmole-go/x/conv"

// deviceID derives the stable device id from the factory-programmed
// unique serial: the last 5 bytes as 10 lowercase hex characters.
func deviceID(uid []byte) string {
	if len(uid) > 5 {
		uid = uid[len(uid)-5:]
	}
	return string(conv.AppendHex(make([]byte, 0, 10), uid))
}
