package mqtt

import (
	"strconv"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/golang/protobuf/proto"

	"github.com/robotalks/hil.go/pkg/capture"
	"github.com/robotalks/hil.go/pkg/framework"
	"github.com/robotalks/hil.go/pkg/hil/board"
	"github.com/robotalks/hil.go/pkg/hil/frame"
	"github.com/robotalks/hil.go/pkg/telemetry/msgs"
)

// DefaultInterval is the capture snapshot period.
const DefaultInterval = time.Second

// Topics under a board.
const (
	TopicExchange = "exchange"
	TopicCapture  = "capture"
	TopicMeta     = "meta"
)

// ExchangeTopic is where answered requests are published.
func ExchangeTopic(boardID string) string {
	return boardID + "/" + TopicExchange
}

// CaptureTopic is where snapshots of a capture channel are published.
func CaptureTopic(boardID string, ch int) string {
	return boardID + "/" + TopicCapture + "/" + strconv.Itoa(ch)
}

// MetaTopic holds the retained BoardInfo.
func MetaTopic(boardID string) string {
	return boardID + "/" + TopicMeta
}

// Sink publishes payloads. Queue implements it.
type Sink interface {
	PubWith(topic string, payload []byte, qos byte, retain bool) paho.Token
}

// Snapshotter reads capture channels without consuming samples.
type Snapshotter interface {
	Snapshot(ch int) (capture.Snapshot, error)
}

// Publisher is a loop controller streaming board telemetry.
// Capture channels are only ever read with Snapshot so a published
// sample stays ready for the host.
type Publisher struct {
	Sink     Sink
	BoardID  string
	Capture  Snapshotter
	Info     func() *msgs.BoardInfo
	Interval time.Duration

	last time.Time
}

// AddToLoop implements framework.LoopAdder.
func (p *Publisher) AddToLoop(l *framework.Loop) {
	l.AddController(framework.PrLvTelemetry, p)
}

// Control implements framework.Controller.
func (p *Publisher) Control(cc framework.ControlContext) error {
	var errs framework.AggregatedError
	cc.Messages().ProcessMessages(framework.ProcessMessageFunc(func(mc framework.MessageProcessingContext) {
		x, ok := mc.CurrentMessage().(*board.ExchangeMsg)
		if !ok {
			return
		}
		mc.MessageTaken()
		errs.Add(p.pub(ExchangeTopic(p.BoardID), msgs.NewExchange(x.Request, x.Response, x.Err, x.Sent, cc.Time()), false))
	}))

	interval := p.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	if now := cc.Time(); now.Sub(p.last) >= interval {
		p.last = now
		errs.Add(p.PublishCapture(now))
		errs.Add(p.PublishInfo())
	}
	return errs.Aggregate()
}

// PublishCapture publishes a snapshot of every capture channel.
func (p *Publisher) PublishCapture(now time.Time) error {
	if p.Capture == nil {
		return nil
	}
	var errs framework.AggregatedError
	for ch := 0; ch < capture.NumChannels; ch++ {
		s, err := p.Capture.Snapshot(ch)
		if err != nil {
			errs.Add(err)
			continue
		}
		errs.Add(p.pub(CaptureTopic(p.BoardID, ch), &msgs.CaptureSample{
			Channel:    uint32(ch),
			PulseWidth: s.PulseWidth,
			Period:     s.Period,
			Duty:       uint32(s.Duty),
			Ready:      s.Ready,
			Samples:    s.Samples,
			Timestamp:  now.UnixNano(),
		}, false))
	}
	return errs.Aggregate()
}

// PublishInfo publishes the retained BoardInfo.
func (p *Publisher) PublishInfo() error {
	if p.Info == nil {
		return nil
	}
	return p.pub(MetaTopic(p.BoardID), p.Info(), true)
}

func (p *Publisher) pub(topic string, m proto.Message, retain bool) error {
	data, err := msgs.Encode(m)
	if err != nil {
		return err
	}
	p.Sink.PubWith(topic, data, 0, retain)
	return nil
}

// BoardInfo builds a BoardInfo from board counters.
func BoardInfo(id, transport string, stats board.StatsSnapshot) *msgs.BoardInfo {
	info := &msgs.BoardInfo{
		Id:               id,
		FirmwareVersion:  uint32(frame.FirmwareVersion),
		Transport:        transport,
		Channels:         capture.NumChannels,
		FramesReceived:   stats.FramesReceived,
		FramesDispatched: stats.FramesDispatched,
		ResponsesSent:    stats.ResponsesSent,
	}
	if len(stats.Errors) > 0 {
		info.Errors = make(map[string]uint64, len(stats.Errors))
		for kind, count := range stats.Errors {
			info.Errors[kind.String()] = count
		}
	}
	return info
}

// NewBoardQueue creates a Queue for the board publishing telemetry.
// The retained meta topic is cleared by the broker when the board
// disappears and by ClearInfo on a clean stop.
func NewBoardQueue(brokerURL, boardID string) (*Queue, error) {
	opts, topicPrefix, err := ClientOptionsFromURL(brokerURL)
	if err != nil {
		return nil, err
	}
	opts.SetBinaryWill(topicPrefix+MetaTopic(boardID), nil, 1, true)
	if opts.ClientID == "" {
		opts.SetClientID("hil:" + boardID)
	}
	return NewQueue(opts, topicPrefix), nil
}

// ClearInfo removes the retained BoardInfo.
func (p *Publisher) ClearInfo() error {
	token := p.Sink.PubWith(MetaTopic(p.BoardID), nil, 1, true)
	token.Wait()
	return token.Error()
}
