package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/JoschaMetze/edifact-mapper-sub000/util"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// MQTTBridge subscribes to a topic carrying raw interchanges and
// publishes converted documents on another.
type MQTTBridge struct {
	Broker   string `json:"broker" yaml:"broker"`
	ClientId string `json:"clientId" yaml:"clientId"`
	Username string `json:"username,omitempty" yaml:"username,omitempty"`
	Password string `json:"password,omitempty" yaml:"password,omitempty"`

	// InTopic carries inbound raw EDIFACT.
	InTopic string `json:"inTopic" yaml:"inTopic"`

	// OutTopic gets the converted JSON.
	OutTopic string `json:"outTopic" yaml:"outTopic"`

	QoS       byte `json:"qos,omitempty" yaml:"qos,omitempty"`
	KeepAlive int  `json:"keepAlive,omitempty" yaml:"keepAlive,omitempty"`

	// Quiesce is disconnection quiescence in milliseconds.
	Quiesce uint `json:"quiesce,omitempty" yaml:"quiesce,omitempty"`

	client mqtt.Client
}

// Run connects, subscribes, and republishes until the context is
// canceled.
func (b *MQTTBridge) Run(ctx context.Context, s *Service) error {
	mqtt.ERROR = log.New(os.Stderr, "mqtt.error", 0)

	if b.KeepAlive == 0 {
		b.KeepAlive = 10
	}
	if b.Quiesce == 0 {
		b.Quiesce = 100
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(b.Broker)
	opts.SetClientID(b.ClientId)
	opts.SetKeepAlive(time.Second * time.Duration(b.KeepAlive))
	opts.Username = b.Username
	opts.Password = b.Password
	opts.AutoReconnect = true

	b.client = mqtt.NewClient(opts)
	if t := b.client.Connect(); t.Wait() && t.Error() != nil {
		return t.Error()
	}
	util.Logf("mqtt connected to %s", b.Broker)

	handler := func(_ mqtt.Client, msg mqtt.Message) {
		c, err := s.Convert(ctx, "mqtt:"+msg.Topic(), msg.Payload())
		if err != nil {
			s.report(fmt.Errorf("mqtt conversion: %s", err))
			return
		}
		if b.OutTopic == "" {
			return
		}
		js, err := json.Marshal(c)
		if err != nil {
			s.report(err)
			return
		}
		if t := b.client.Publish(b.OutTopic, b.QoS, false, js); t.Wait() && t.Error() != nil {
			s.report(t.Error())
		}
	}

	if t := b.client.Subscribe(b.InTopic, b.QoS, handler); t.Wait() && t.Error() != nil {
		return t.Error()
	}

	<-ctx.Done()
	b.client.Disconnect(b.Quiesce)
	return nil
}
