package main

import (
	"flag"
	"log"
	"os"
	"reflect"

	"github.com/robotalks/hil.go/pkg/telemetry/mqtt"
	"github.com/robotalks/hil.go/pkg/telemetry/msgs"
)

var (
	mqttURL = "mqtt://localhost:1883/hil/"
	boardID = "+"
)

func init() {
	if val := os.Getenv("HIL_MQTT_URL"); val != "" {
		mqttURL = val
	}
	flag.StringVar(&mqttURL, "mqtt", mqttURL, "MQTT broker URL.")
	flag.StringVar(&boardID, "board", boardID, "Board ID to monitor, + for all.")
}

func main() {
	flag.Parse()
	log.SetFlags(log.Lmicroseconds)

	q, err := mqtt.NewQueueFromURL(mqttURL)
	if err != nil {
		log.Fatalln(err)
	}
	q.Sub(boardID+"/#", mqtt.Handler(func(topic string, payload []byte) {
		if len(payload) == 0 {
			log.Printf("%s: cleared", topic)
			return
		}
		_, msg, err := mqtt.Decode(topic, payload)
		if err != nil {
			log.Printf("%s: bad message: %v", topic, err)
			return
		}
		if x, ok := msg.(*msgs.Exchange); ok {
			req, _ := x.RequestFrame()
			resp, _ := x.ResponseFrame()
			if x.Error != "" {
				log.Printf("%s: %s => %s (%s, sent=%v)", topic, req, resp, x.Error, x.Sent)
				return
			}
			log.Printf("%s: %s => %s", topic, req, resp)
			return
		}
		log.Printf("%s: [%s] %s", topic,
			reflect.Indirect(reflect.ValueOf(msg)).Type().Name(), msg.String())
	}))
	if token := q.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalln(token.Error())
	}
	<-(chan struct{})(nil)
}
