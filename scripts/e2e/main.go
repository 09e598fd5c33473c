package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/gorilla/websocket"
)

// Steps:
// 1. Connect to /ws/scan and wait for the greeting
// 2. Publish a card frame on the MQTT reader topic
// 3. Wait for the matching scan event on the socket
// 4. Query the scan history for the card and check the scan was recorded

type event struct {
	Event     string `json:"event"`
	Verified  *bool  `json:"verified"`
	UID       string `json:"uid"`
	Error     string `json:"error"`
	Timestamp string `json:"timestamp"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:5000", "server base URL")
	broker := flag.String("broker", "tcp://localhost:1883", "MQTT broker")
	topic := flag.String("topic", "nfc/reads", "reader topic")
	uid := flag.String("uid", "04E2E0000001", "card UID to present")
	flag.Parse()

	wsURL, _ := url.Parse(*baseURL)
	wsURL.Scheme = "ws"
	wsURL.Path = "/ws/scan"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL.String(), nil)
	if err != nil {
		fail("dial %s: %v", wsURL, err)
	}
	defer conn.Close()

	greeting := next(conn)
	if greeting.Event != "connected" {
		fail("expected greeting, got %+v", greeting)
	}
	fmt.Println("Connected:", greeting.Timestamp)

	client := mqtt.NewClient(mqtt.NewClientOptions().AddBroker(*broker).SetClientID("nfc-kiosk-e2e"))
	if tok := client.Connect(); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		fail("mqtt connect: %v", tok.Error())
	}
	defer client.Disconnect(250)

	frame, _ := json.Marshal(map[string]any{
		"uid":  *uid,
		"data": map[string]string{"p": "00", "a": "00", "s": "E2E"},
	})
	started := time.Now()
	if tok := client.Publish(*topic, 1, false, frame); !tok.WaitTimeout(5*time.Second) || tok.Error() != nil {
		fail("mqtt publish: %v", tok.Error())
	}
	fmt.Printf("Presented card %s on %s\n", *uid, *topic)

	var scanned event
	for {
		scanned = next(conn)
		if scanned.Event == "scan" && scanned.UID == *uid {
			break
		}
	}
	fmt.Printf("Scan event after %s: verified=%v error=%q\n", time.Since(started), scanned.Verified != nil && *scanned.Verified, scanned.Error)

	// The archiver path is asynchronous
	time.Sleep(3 * time.Second)

	q := url.Values{}
	q.Set("start", started.Add(-time.Minute).Format(time.RFC3339))
	q.Set("end", time.Now().Add(time.Minute).Format(time.RFC3339))
	resp, err := http.Get(fmt.Sprintf("%s/api/scans/%s?%s", *baseURL, url.PathEscape(*uid), q.Encode()))
	if err != nil {
		fail("timeline: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		fail("timeline status %s", resp.Status)
	}
	var timeline struct {
		Events []map[string]any `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&timeline); err != nil {
		fail("decode timeline: %v", err)
	}
	if len(timeline.Events) == 0 {
		fail("scan not recorded for %s", *uid)
	}
	fmt.Printf("Recorded %d scan(s) for %s\n", len(timeline.Events), *uid)
	fmt.Println("E2E test completed")
}

func next(conn *websocket.Conn) event {
	conn.SetReadDeadline(time.Now().Add(15 * time.Second))
	var ev event
	if err := conn.ReadJSON(&ev); err != nil {
		fail("read: %v", err)
	}
	return ev
}

func fail(format string, args ...any) {
	fmt.Printf("E2E FAILED: "+format+"\n", args...)
	os.Exit(1)
}
