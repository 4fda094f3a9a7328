// Package main runs a demo WebSocket client for run events.
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"os"
	"time"

	"github.com/gorilla/websocket"
)

type wsMessage struct {
	Type string         `json:"type"`
	Data map[string]any `json:"data,omitempty"`
}

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	base := fmt.Sprintf("http://localhost:%s", port)

	// Use the run id from argv, or create one via a quick solve.
	runID := ""
	if len(os.Args) > 1 {
		runID = os.Args[1]
	} else {
		body := []byte(`{"n":20,"seed":7,"capacity":50,"vehicles":4,"saTimeMs":200,"tag":"ws-demo"}`)
		req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Role", "admin")
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			log.Fatal(err)
		}
		defer func() { _ = resp.Body.Close() }()
		var run struct {
			ID   string  `json:"id"`
			Cost float64 `json:"cost"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
			log.Fatal(err)
		}
		runID = run.ID
		log.Printf("solved: run=%s cost=%.2f", run.ID, run.Cost)
	}
	log.Printf("Run ID: %s", runID)

	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/v1/runs/" + runID + "/ws"}
	c, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	if err != nil {
		log.Fatal("dial:", err)
	}
	defer func() { _ = c.Close() }()

	// Run a second solve so lifecycle events flow while we listen. Events for
	// other runs stay on their own channels; this is just server activity.
	go func() {
		time.Sleep(300 * time.Millisecond)
		body := []byte(`{"n":30,"seed":9,"capacity":50,"vehicles":5,"saTimeMs":1000}`)
		req, _ := http.NewRequest(http.MethodPost, base+"/v1/solve", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		_, _ = http.DefaultClient.Do(req)
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			var m wsMessage
			if err := c.ReadJSON(&m); err != nil {
				log.Printf("read: %v", err)
				return
			}
			b, _ := json.Marshal(m.Data)
			log.Printf("WS <- %s: %s", m.Type, b)
		}
	}()

	select {
	case <-time.After(5 * time.Second):
	case <-done:
	}
}
