package report

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRelateBuilds(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/relateBuilds.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := New(srv.URL, "release", "cloud-ci", "")
	if err := c.RelateBuilds(context.Background(), "101", "99"); err != nil {
		t.Fatalf("relate builds: %v", err)
	}

	want := map[string]string{
		"project":      "release",
		"buildid":      "101",
		"relatedid":    "99",
		"relationship": "depends on",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("expected %s=%q, got %q", k, v, got[k])
		}
	}
}

func TestRelateBuildsServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "backend down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, "release", "cloud-ci", "")
	if err := c.RelateBuilds(context.Background(), "101", "99"); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestPopulateBuildGroup(t *testing.T) {
	var creates []map[string]string
	var dynamicList map[string]interface{}
	var sawToken bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/buildgroup.php" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") == "Bearer secret-token" {
			sawToken = true
		}

		switch r.Method {
		case http.MethodPost:
			var req map[string]string
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
				t.Errorf("decode create: %v", err)
			}
			creates = append(creates, req)
			json.NewEncoder(w).Encode(map[string]int{"id": len(creates)})
		case http.MethodPut:
			if err := json.NewDecoder(r.Body).Decode(&dynamicList); err != nil {
				t.Errorf("decode dynamic list: %v", err)
			}
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected method %s", r.Method)
		}
	}))
	defer srv.Close()

	c := New(srv.URL, "release", "cloud-ci", "secret-token")
	jobs := []string{"readline 7.0 gcc linux", "ncurses 6.1 gcc linux"}
	if err := c.PopulateBuildGroup(context.Background(), jobs, "pr-mirrors"); err != nil {
		t.Fatalf("populate build group: %v", err)
	}

	if !sawToken {
		t.Error("expected bearer token on requests")
	}
	if len(creates) != 2 {
		t.Fatalf("expected 2 group creations, got %d", len(creates))
	}
	if creates[0]["newbuildgroup"] != "pr-mirrors" || creates[0]["type"] != "Daily" {
		t.Errorf("unexpected first group: %v", creates[0])
	}
	if creates[1]["newbuildgroup"] != "Latest pr-mirrors" || creates[1]["type"] != "Latest" {
		t.Errorf("unexpected second group: %v", creates[1])
	}

	entries, ok := dynamicList["dynamiclist"].([]interface{})
	if !ok || len(entries) != len(jobs) {
		t.Fatalf("expected %d dynamic list entries, got %v", len(jobs), dynamicList["dynamiclist"])
	}
	first, _ := entries[0].(map[string]interface{})
	if first["match"] != jobs[0] {
		t.Errorf("expected first entry to match %q, got %v", jobs[0], first["match"])
	}
}
