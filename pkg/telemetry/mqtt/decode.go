package mqtt

import (
	"fmt"
	"strings"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/hil.go/pkg/telemetry/msgs"
)

// Decode decodes a telemetry payload by its topic relative to the
// queue prefix. It returns the board ID along with the message.
func Decode(topic string, payload []byte) (string, proto.Message, error) {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return "", nil, fmt.Errorf("unknown topic %q", topic)
	}
	id := parts[0]
	var (
		msg proto.Message
		err error
	)
	switch {
	case len(parts) == 2 && parts[1] == TopicExchange:
		msg, err = msgs.DecodeExchange(payload)
	case len(parts) == 3 && parts[1] == TopicCapture:
		msg, err = msgs.DecodeCaptureSample(payload)
	case len(parts) == 2 && parts[1] == TopicMeta:
		msg, err = msgs.DecodeBoardInfo(payload)
	default:
		return id, nil, fmt.Errorf("unknown topic %q", topic)
	}
	return id, msg, err
}
