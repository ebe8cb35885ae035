package msgs

import (
	"time"

	"github.com/golang/protobuf/proto"

	"github.com/robotalks/hil.go/pkg/hil/frame"
)

// Exchange is one request answered by the board.
type Exchange struct {
	Request   []byte `protobuf:"bytes,1,opt,name=request,proto3" json:"request,omitempty"`
	Response  []byte `protobuf:"bytes,2,opt,name=response,proto3" json:"response,omitempty"`
	Error     string `protobuf:"bytes,3,opt,name=error,proto3" json:"error,omitempty"`
	ErrorKind int32  `protobuf:"varint,4,opt,name=error_kind,json=errorKind,proto3" json:"error_kind,omitempty"`
	Sent      bool   `protobuf:"varint,5,opt,name=sent,proto3" json:"sent,omitempty"`
	Timestamp int64  `protobuf:"varint,6,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *Exchange) Reset()         { *m = Exchange{} }
func (m *Exchange) String() string { return proto.CompactTextString(m) }
func (*Exchange) ProtoMessage()    {}

// NewExchange creates an Exchange.
func NewExchange(req, resp frame.Frame, err error, sent bool, t time.Time) *Exchange {
	m := &Exchange{
		Request:   req.Bytes(),
		Response:  resp.Bytes(),
		ErrorKind: int32(frame.KindOf(err)),
		Sent:      sent,
		Timestamp: t.UnixNano(),
	}
	if err != nil {
		m.Error = err.Error()
	}
	return m
}

// RequestFrame decodes the request.
func (m *Exchange) RequestFrame() (frame.Frame, error) {
	return frame.Decode(m.Request)
}

// ResponseFrame decodes the response.
func (m *Exchange) ResponseFrame() (frame.Frame, error) {
	return frame.Decode(m.Response)
}

// Time converts Timestamp.
func (m *Exchange) Time() time.Time {
	return time.Unix(0, m.Timestamp)
}

// CaptureSample is the state of one capture channel.
type CaptureSample struct {
	Channel    uint32 `protobuf:"varint,1,opt,name=channel,proto3" json:"channel,omitempty"`
	PulseWidth uint32 `protobuf:"varint,2,opt,name=pulse_width,json=pulseWidth,proto3" json:"pulse_width,omitempty"`
	Period     uint32 `protobuf:"varint,3,opt,name=period,proto3" json:"period,omitempty"`
	Duty       uint32 `protobuf:"varint,4,opt,name=duty,proto3" json:"duty,omitempty"`
	Ready      bool   `protobuf:"varint,5,opt,name=ready,proto3" json:"ready,omitempty"`
	Samples    uint64 `protobuf:"varint,6,opt,name=samples,proto3" json:"samples,omitempty"`
	Timestamp  int64  `protobuf:"varint,7,opt,name=timestamp,proto3" json:"timestamp,omitempty"`
}

func (m *CaptureSample) Reset()         { *m = CaptureSample{} }
func (m *CaptureSample) String() string { return proto.CompactTextString(m) }
func (*CaptureSample) ProtoMessage()    {}

// BoardInfo describes a board and its counters.
type BoardInfo struct {
	Id               string            `protobuf:"bytes,1,opt,name=id,proto3" json:"id,omitempty"`
	FirmwareVersion  uint32            `protobuf:"varint,2,opt,name=firmware_version,json=firmwareVersion,proto3" json:"firmware_version,omitempty"`
	Transport        string            `protobuf:"bytes,3,opt,name=transport,proto3" json:"transport,omitempty"`
	Channels         uint32            `protobuf:"varint,4,opt,name=channels,proto3" json:"channels,omitempty"`
	FramesReceived   uint64            `protobuf:"varint,5,opt,name=frames_received,json=framesReceived,proto3" json:"frames_received,omitempty"`
	FramesDispatched uint64            `protobuf:"varint,6,opt,name=frames_dispatched,json=framesDispatched,proto3" json:"frames_dispatched,omitempty"`
	ResponsesSent    uint64            `protobuf:"varint,7,opt,name=responses_sent,json=responsesSent,proto3" json:"responses_sent,omitempty"`
	Errors           map[string]uint64 `protobuf:"bytes,8,rep,name=errors,proto3" json:"errors,omitempty" protobuf_key:"bytes,1,opt,name=key,proto3" protobuf_val:"varint,2,opt,name=value,proto3"`
}

func (m *BoardInfo) Reset()         { *m = BoardInfo{} }
func (m *BoardInfo) String() string { return proto.CompactTextString(m) }
func (*BoardInfo) ProtoMessage()    {}

// Encode serializes a message.
func Encode(m proto.Message) ([]byte, error) {
	return proto.Marshal(m)
}

// DecodeExchange deserializes an Exchange.
func DecodeExchange(data []byte) (*Exchange, error) {
	var m Exchange
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeCaptureSample deserializes a CaptureSample.
func DecodeCaptureSample(data []byte) (*CaptureSample, error) {
	var m CaptureSample
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

// DecodeBoardInfo deserializes a BoardInfo.
func DecodeBoardInfo(data []byte) (*BoardInfo, error) {
	var m BoardInfo
	if err := proto.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
