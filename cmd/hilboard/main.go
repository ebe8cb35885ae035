package main

//go-build: CGO_ENABLED=0

import (
	"flag"
	"fmt"

	"github.com/golang/glog"

	"github.com/robotalks/hil.go/pkg/analog"
	"github.com/robotalks/hil.go/pkg/capture"
	"github.com/robotalks/hil.go/pkg/env"
	fx "github.com/robotalks/hil.go/pkg/framework"
	"github.com/robotalks/hil.go/pkg/hil/board"
	"github.com/robotalks/hil.go/pkg/sim"
	"github.com/robotalks/hil.go/pkg/telemetry/mqtt"
	"github.com/robotalks/hil.go/pkg/telemetry/msgs"
)

func init() {
	env.SetupBoardFlags()
}

func main() {
	flag.Parse()
	defer glog.Flush()

	conf, err := env.NewBoardConfig()
	if err != nil {
		glog.Exitln(err)
	}
	if err := conf.Validate(); err != nil {
		glog.Exitln(err)
	}

	link, err := conf.OpenLink()
	if err != nil {
		glog.Exitln(err)
	}
	defer link.Close()

	timer := sim.NewTimer(conf.CounterMax)
	engine := capture.NewEngine(timer)
	engine.Scale = conf.Scale()
	if err := engine.Start(); err != nil {
		glog.Exitln(err)
	}
	signals := analog.NewSimulator(&analog.MemOutput{}, &analog.MemOutput{})
	if err := signals.Start(); err != nil {
		glog.Exitln(err)
	}

	b := board.New(link, signals, engine)
	b.Sender.Timeout = conf.TxTimeout

	loop := fx.NewLoop().Add(b)
	loop.Interval = conf.LoopInterval
	if link.Serve != nil {
		loop.AddRunnable(link.Serve)
	}
	for _, s := range conf.Simulate {
		src := &sim.PWMSource{
			Channel:     s.Channel,
			PeriodTicks: s.PeriodTicks,
			Timer:       timer,
			Handler:     engine,
			Interval:    s.Interval,
		}
		src.SetDuty(s.Duty, engine.Scale)
		loop.AddRunnable(fx.NamedRun(fmt.Sprintf("pwm-%d", s.Channel), src))
		glog.Infof("simulating PWM on channel %d: period %d ticks, duty %d/%d",
			s.Channel+1, s.PeriodTicks, s.Duty, engine.Scale)
	}

	if conf.MQTTBrokerURL != "" {
		id := conf.ID()
		q, err := mqtt.NewBoardQueue(conf.MQTTBrokerURL, id)
		if err != nil {
			glog.Exitln(err)
		}
		if token := q.Connect(); token.Wait() && token.Error() != nil {
			glog.Exitf("connect %s: %v", conf.MQTTBrokerURL, token.Error())
		}
		defer q.Close()
		pub := &mqtt.Publisher{
			Sink:     q,
			BoardID:  id,
			Capture:  engine,
			Interval: conf.PublishInterval,
			Info: func() *msgs.BoardInfo {
				return mqtt.BoardInfo(id, link.Transport, b.Stats.Snapshot())
			},
		}
		loop.Add(pub)
		defer pub.ClearInfo()
		glog.Infof("publishing telemetry of board %s to %s", id, conf.MQTTBrokerURL)
	}

	loop.RunOrFail()
	glog.Infof("stopped, stats %+v", b.Stats.Snapshot())
}
