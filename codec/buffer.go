package codec

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// HexBuffer is a byte string carried as lowercase hex. It decodes the
// {"type":"Buffer","data":[...]} payloads of c-lightning-REST as well as
// plain hex strings. It can not be encoded back.
type HexBuffer string

type nodeBuffer struct {
	Type string `json:"type"`
	Data []int  `json:"data"`
}

func (b *HexBuffer) UnmarshalJSON(data []byte) error {
	token := bytes.TrimSpace(data)
	if len(token) == 0 || bytes.Equal(token, jsonNull) {
		*b = ""
		return nil
	}

	if token[0] == '"' {
		var s string
		if err := json.Unmarshal(token, &s); err != nil {
			return malformedBuffer(token, err)
		}
		if _, err := hex.DecodeString(s); err != nil {
			return malformedBuffer(token, err)
		}
		*b = HexBuffer(strings.ToLower(s))
		return nil
	}

	var buf nodeBuffer
	if err := json.Unmarshal(token, &buf); err != nil {
		return malformedBuffer(token, err)
	}
	if buf.Type != "Buffer" {
		return malformedBuffer(token, fmt.Errorf("unexpected type %q", buf.Type))
	}

	raw := make([]byte, len(buf.Data))
	for i, v := range buf.Data {
		if v < 0 || v > 255 {
			return malformedBuffer(token, fmt.Errorf("byte %d out of range: %d", i, v))
		}
		raw[i] = byte(v)
	}

	*b = HexBuffer(hex.EncodeToString(raw))
	return nil
}

func (b HexBuffer) MarshalJSON() ([]byte, error) {
	return nil, ErrBufferEncodeUnsupported
}

func (b HexBuffer) String() string {
	return string(b)
}

func malformedBuffer(token []byte, err error) error {
	return &MalformedError{
		Kind:    KindBuffer,
		Dialect: ClnRestLegacy,
		Token:   string(token),
		Err:     err,
	}
}
