package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// loadgen drives the full buy → poll → confirm flow against a running
// server with many concurrent buyers competing for one sale.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "server base URL")
	saleID := flag.String("sale", "launch-day", "sale id or slug")
	buyers := flag.Int("buyers", 50, "number of concurrent buyers")
	pollInterval := flag.Duration("poll", 500*time.Millisecond, "position poll interval")
	timeout := flag.Duration("timeout", 60*time.Second, "per-buyer give-up timeout")
	flag.Parse()

	client := &http.Client{Timeout: 10 * time.Second}

	if err := waitHealthy(client, *baseURL); err != nil {
		log.Fatalf("server not healthy: %v", err)
	}

	var confirmed, queuedOut, conflicts, errs atomic.Int32
	var wg sync.WaitGroup
	start := time.Now()

	for i := 0; i < *buyers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			email := fmt.Sprintf("buyer-%d@load.test", n)

			switch runBuyer(client, *baseURL, *saleID, email, *pollInterval, *timeout) {
			case "confirmed":
				confirmed.Add(1)
			case "timeout":
				queuedOut.Add(1)
			case "conflict":
				conflicts.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	wg.Wait()
	elapsed := time.Since(start)

	fmt.Println("========== LOADGEN RESULTS ==========")
	fmt.Printf("Sale:           %s\n", *saleID)
	fmt.Printf("Buyers:         %d\n", *buyers)
	fmt.Printf("Confirmed:      %d\n", confirmed.Load())
	fmt.Printf("Still queued:   %d\n", queuedOut.Load())
	fmt.Printf("Conflicts:      %d\n", conflicts.Load())
	fmt.Printf("Errors:         %d\n", errs.Load())
	fmt.Printf("Duration:       %v\n", elapsed)
	fmt.Println("=====================================")
}

func runBuyer(client *http.Client, baseURL, saleID, email string, pollInterval, timeout time.Duration) string {
	status, err := postJSON(client, baseURL+"/api/buy", map[string]any{
		"email":  email,
		"saleId": saleID,
	}, nil)
	if err != nil {
		return "error"
	}
	if status == http.StatusConflict {
		return "conflict"
	}
	if status != http.StatusOK {
		return "error"
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		var pos struct {
			Status string `json:"status"`
		}
		resp, err := client.Get(fmt.Sprintf("%s/api/position?email=%s&saleId=%s", baseURL, email, saleID))
		if err != nil {
			return "error"
		}
		err = json.NewDecoder(resp.Body).Decode(&pos)
		resp.Body.Close()
		if err != nil {
			return "error"
		}

		switch pos.Status {
		case "ready":
			var confirm struct {
				OK bool `json:"ok"`
			}
			status, err := postJSON(client, baseURL+"/api/confirm", map[string]any{
				"email":  email,
				"saleId": saleID,
				"amount": int64(9900),
			}, &confirm)
			if err != nil {
				return "error"
			}
			if status == http.StatusOK && confirm.OK {
				return "confirmed"
			}
			return "conflict"
		case "none":
			return "conflict"
		}

		time.Sleep(pollInterval)
	}
	return "timeout"
}

func postJSON(client *http.Client, url string, body map[string]any, out any) (int, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	resp, err := client.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func waitHealthy(client *http.Client, baseURL string) error {
	var lastErr error
	for i := 0; i < 10; i++ {
		resp, err := client.Get(baseURL + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
		} else {
			lastErr = err
		}
		time.Sleep(500 * time.Millisecond)
	}
	return lastErr
}
