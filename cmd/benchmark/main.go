package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// Config holds the benchmark settings
var (
	targetURL   string
	concurrency int
	copies      int
	attempts    int
)

// Metrics
var (
	totalRequests uint64
	success201    uint64 // Borrowed
	fail409       uint64 // Out of stock
	failOther     uint64
)

func init() {
	flag.StringVar(&targetURL, "url", "http://localhost:8000", "API Base URL")
	flag.IntVar(&concurrency, "workers", 50, "Number of concurrent workers")
	flag.IntVar(&copies, "copies", 10, "Copies of the contended book")
	flag.IntVar(&attempts, "attempts", 500, "Total borrow attempts, each from a distinct borrower")
}

func main() {
	flag.Parse()
	client := &http.Client{Timeout: 5 * time.Second}

	bookID, err := createBook(client)
	if err != nil {
		log.Fatalf("Unable to create book: %v", err)
	}
	log.Printf("Starting Benchmark: book %s | Copies: %d | Workers: %d | Attempts: %d", bookID, copies, concurrency, attempts)

	jobs := make(chan int)
	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(concurrency)
	for range concurrency {
		go worker(&wg, client, bookID, jobs)
	}
	for i := range attempts {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	available, err := availableCopies(client, bookID)
	if err != nil {
		log.Printf("Unable to read final stock: %v", err)
		available = -1
	}
	ok := printResults(time.Since(start), bookID, available)
	if !ok {
		os.Exit(1)
	}
}

func createBook(client *http.Client) (string, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"title":    fmt.Sprintf("Benchmark %d", time.Now().UnixNano()),
		"author":   "Benchmark",
		"category": "Benchmark",
		"quantity": copies,
	})
	resp, err := client.Post(targetURL+"/books", "application/json", bytes.NewBuffer(body))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return "", fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	return out.ID, nil
}

func availableCopies(client *http.Client, bookID string) (int, error) {
	resp, err := client.Get(targetURL + "/books/" + bookID)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	var out struct {
		Available int `json:"available"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, err
	}
	return out.Available, nil
}

func worker(wg *sync.WaitGroup, client *http.Client, bookID string, jobs <-chan int) {
	defer wg.Done()

	for i := range jobs {
		payload := map[string]interface{}{
			"book_id": bookID,
			"email":   fmt.Sprintf("bench-%d@example.com", i),
			"name":    fmt.Sprintf("Borrower %d", i),
		}
		body, _ := json.Marshal(payload)

		resp, err := client.Post(targetURL+"/borrowBooks", "application/json", bytes.NewBuffer(body))
		if err != nil {
			atomic.AddUint64(&failOther, 1)
			continue
		}

		atomic.AddUint64(&totalRequests, 1)
		switch resp.StatusCode {
		case 201:
			atomic.AddUint64(&success201, 1)
		case 409:
			atomic.AddUint64(&fail409, 1)
		default:
			atomic.AddUint64(&failOther, 1)
		}
		resp.Body.Close()
	}
}

// printResults reports the run and whether exactly `copies` borrows won.
func printResults(d time.Duration, bookID string, available int) bool {
	total := atomic.LoadUint64(&totalRequests)
	s201 := atomic.LoadUint64(&success201)
	f409 := atomic.LoadUint64(&fail409)
	fErr := atomic.LoadUint64(&failOther)

	want := uint64(min(copies, attempts))
	consistent := s201 == want && available == copies-int(want)

	results := map[string]interface{}{
		"book_id":          bookID,
		"duration_sec":     d.Seconds(),
		"total_requests":   total,
		"throughput_rps":   float64(total) / d.Seconds(),
		"borrowed":         s201,
		"out_of_stock":     f409,
		"errors":           fErr,
		"final_available":  available,
		"expected_borrows": want,
		"consistent":       consistent,
	}

	// Print JSON for the python plotter to consume
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	enc.Encode(results)

	// Also save to file
	file, err := os.Create("results_borrow.json")
	if err == nil {
		defer file.Close()
		json.NewEncoder(file).Encode(results)
	}
	return consistent
}
