package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"
)

// Smoke client for a running gatehouse-api: walks one visit through the full
// kiosk flow and fails loudly if any step disagrees.
func main() {
	base := os.Getenv("GATEHOUSE_API_URL")
	if base == "" {
		base = "http://localhost:8080"
	}
	token := os.Getenv("GATEHOUSE_SMOKE_TOKEN")
	if token == "" {
		log.Fatal("GATEHOUSE_SMOKE_TOKEN is required (an admin bearer token)")
	}
	orgID := os.Getenv("GATEHOUSE_SMOKE_ORG")
	branchID := os.Getenv("GATEHOUSE_SMOKE_BRANCH")
	hostID := os.Getenv("GATEHOUSE_SMOKE_HOST")
	if orgID == "" || branchID == "" || hostID == "" {
		log.Fatal("GATEHOUSE_SMOKE_ORG, GATEHOUSE_SMOKE_BRANCH and GATEHOUSE_SMOKE_HOST are required")
	}

	client := &http.Client{Timeout: 10 * time.Second}

	created := call(client, http.MethodPost, base+"/v1/visits", "", map[string]any{
		"visitor": map[string]any{
			"full_name": "Smoke Visitor",
			"email":     fmt.Sprintf("smoke-%d@example.test", time.Now().UnixNano()),
		},
		"organization_id":  orgID,
		"branch_id":        branchID,
		"host_employee_id": hostID,
		"purpose":          "MEETING",
	}, http.StatusCreated)

	visit, _ := created["visit"].(map[string]any)
	if visit == nil {
		log.Fatalf("create returned no visit: %v", created)
	}
	id, _ := visit["id"].(string)
	status, _ := visit["status"].(string)
	log.Printf("created visit %s in %s", id, status)

	if status == "PENDING_APPROVAL" {
		out := call(client, http.MethodPost, base+"/v1/visits/"+id+"/approve", token, nil, http.StatusOK)
		status, _ = out["status"].(string)
		log.Printf("approved, now %s", status)
	}
	if status != "APPROVED" {
		log.Fatalf("visit not approvable from %s without manual verification", status)
	}

	out := call(client, http.MethodPost, base+"/v1/visits/"+id+"/checkin", token, nil, http.StatusOK)
	log.Printf("checked in, now %v", out["status"])

	out = call(client, http.MethodPost, base+"/v1/visits/"+id+"/checkout", token, nil, http.StatusOK)
	log.Printf("checked out, now %v", out["status"])

	detail := call(client, http.MethodGet, base+"/v1/visits/"+id, token, nil, http.StatusOK)
	history, _ := detail["history"].([]any)
	if len(history) == 0 {
		log.Fatal("no history recorded")
	}
	log.Printf("ok: %d history entries", len(history))
}

func call(client *http.Client, method, url, token string, body any, want int) map[string]any {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			log.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		log.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := client.Do(req)
	if err != nil {
		log.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	if resp.StatusCode != want {
		log.Fatalf("%s %s: got %d, want %d (%v)", method, url, resp.StatusCode, want, decoded)
	}
	return decoded
}
