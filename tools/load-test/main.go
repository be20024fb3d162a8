package main

import (
	"bytes"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/sourcegraph/conc/pool"
)

func main() {
	// Configuration
	baseURL := "http://localhost:8080/api/v1"
	contentType := "application/json"

	numEmployees := 200
	concurrency := 20 // Number of concurrent employees to avoid local port exhaustion

	fmt.Printf("Starting load test: %d employees (clock-in then clock-out) against %s with concurrency %d\n", numEmployees, baseURL, concurrency)

	var successCount, conflictCount, limitedCount, failCount int64

	tally := func(status int) {
		switch {
		case status >= 200 && status < 300:
			atomic.AddInt64(&successCount, 1)
		case status == http.StatusConflict:
			atomic.AddInt64(&conflictCount, 1)
		case status == http.StatusTooManyRequests:
			atomic.AddInt64(&limitedCount, 1)
		default:
			atomic.AddInt64(&failCount, 1)
		}
	}

	startTime := time.Now()

	p := pool.New().WithMaxGoroutines(concurrency)
	for i := 0; i < numEmployees; i++ {
		name := fmt.Sprintf("Load Test %d", i)
		p.Go(func() {
			payload := []byte(fmt.Sprintf(`{"name": %q, "lat": 13.7563, "lon": 100.5018}`, name))

			for _, path := range []string{"/clock-in", "/clock-out"} {
				resp, err := http.Post(baseURL+path, contentType, bytes.NewBuffer(payload))
				if err != nil {
					atomic.AddInt64(&failCount, 1)
					continue
				}
				tally(resp.StatusCode)
				_ = resp.Body.Close()
			}
		})
	}
	p.Wait()

	duration := time.Since(startTime)
	totalRequests := numEmployees * 2

	fmt.Println("\n--- Load Test Results ---")
	fmt.Printf("Total Duration: %v\n", duration)
	fmt.Printf("Total Requests: %d\n", totalRequests)
	fmt.Printf("Successful:     %d\n", successCount)
	fmt.Printf("Conflicts:      %d\n", conflictCount)
	fmt.Printf("Rate limited:   %d\n", limitedCount)
	fmt.Printf("Failed:         %d\n", failCount)
	fmt.Printf("Requests/Sec:   %.2f\n", float64(totalRequests)/duration.Seconds())
}
