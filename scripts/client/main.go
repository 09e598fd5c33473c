package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type ScanEvent struct {
	ID          string `json:"id"`
	ReaderID    string `json:"readerID"`
	UID         string `json:"uid"`
	Verified    bool   `json:"verified"`
	StudentID   string `json:"studentID"`
	StudentName string `json:"studentName"`
	Error       string `json:"error"`
	Timestamp   string `json:"timestamp"`
}

func main() {
	baseURL := flag.String("base", "http://localhost:5000", "server base URL")
	uid := flag.String("uid", "04A1B2C3", "card UID to look up")
	since := flag.Duration("since", 24*time.Hour, "how far back to look")
	flag.Parse()

	// 1. GET /api/health
	resp, err := http.Get(*baseURL + "/api/health")
	if err != nil {
		panic(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	fmt.Println("GET /api/health status:", resp.Status)
	fmt.Println(string(body))

	// 2. GET /api/scans/:uid?start=...&end=...
	q := url.Values{}
	q.Set("start", time.Now().Add(-*since).Format(time.RFC3339))
	q.Set("end", time.Now().Add(time.Minute).Format(time.RFC3339))
	getURL := fmt.Sprintf("%s/api/scans/%s?%s", *baseURL, url.PathEscape(*uid), q.Encode())
	resp, err = http.Get(getURL)
	if err != nil {
		panic(err)
	}
	defer resp.Body.Close()
	fmt.Println("GET /api/scans status:", resp.Status)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		fmt.Println("GET response body:", string(body))
		return
	}
	var result struct {
		Events []ScanEvent `json:"events"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		panic(err)
	}
	for _, ev := range result.Events {
		outcome := "VERIFIED " + ev.StudentName
		if !ev.Verified {
			outcome = "FAILED " + ev.Error
		}
		fmt.Printf("%s  %s  %s\n", ev.Timestamp, ev.ReaderID, outcome)
	}
}
