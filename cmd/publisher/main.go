package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"attendboard/internal/config"
	"attendboard/internal/dashboard"
)

// Publisher simulates the check-in device: it publishes attendance events
// to the dashboard topic so the live feed can be exercised end to end.
func main() {
	cfg := config.Load()

	name := flag.String("name", "Test Student", "student name to publish")
	count := flag.Int("count", 1, "number of events to publish")
	interval := flag.Duration("interval", time.Second, "delay between events")
	flag.Parse()

	clientID := cfg.ClientIDPrefix + "-pub-" + uuid.NewString()[:8]
	opts := paho.NewClientOptions().
		AddBroker(fmt.Sprintf("tcp://%s:%d", cfg.BrokerHost, cfg.BrokerPort)).
		SetClientID(clientID).
		SetCleanSession(true)

	client := paho.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
		log.Fatalf("connect %s:%d failed: %v", cfg.BrokerHost, cfg.BrokerPort, token.Error())
	}
	defer client.Disconnect(250)
	log.Printf("connected to %s:%d as %s", cfg.BrokerHost, cfg.BrokerPort, clientID)

	for i := 0; i < *count; i++ {
		now := time.Now()
		payload, err := json.Marshal(map[string]string{
			"name": *name,
			"time": now.Format("15:04:05"),
			"date": now.Format(dashboard.TodayLayout),
		})
		if err != nil {
			log.Fatalf("marshal event: %v", err)
		}

		pub := client.Publish(cfg.BrokerTopic, 0, false, payload)
		if !pub.WaitTimeout(5*time.Second) || pub.Error() != nil {
			log.Fatalf("publish failed: %v", pub.Error())
		}
		log.Printf("published %s to %s", payload, cfg.BrokerTopic)

		if i < *count-1 {
			time.Sleep(*interval)
		}
	}
}
