package test

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"pinbin/pkg/domain"
)

func TestConcurrentPasteCreation(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	client := newClient(t)
	register(t, env.ts, client, "alice", "pw-alice-1")

	const n = 20
	var wg sync.WaitGroup
	results := make(chan domain.Paste, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p := createPaste(t, env.ts, client, map[string]interface{}{
				"title":   fmt.Sprintf("paste-%d", i),
				"content": "body",
			})
			results <- p
		}(i)
	}
	wg.Wait()
	close(results)

	seenURL := make(map[string]bool)
	seenID := make(map[int]bool)
	for p := range results {
		if seenURL[p.URLID] {
			t.Errorf("duplicate url id %q", p.URLID)
		}
		if seenID[p.ID] {
			t.Errorf("duplicate internal id %d", p.ID)
		}
		seenURL[p.URLID] = true
		seenID[p.ID] = true
	}
	if len(seenURL) != n {
		t.Errorf("created %d pastes, want %d", len(seenURL), n)
	}
}

func TestConcurrentReads(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	client := newClient(t)
	register(t, env.ts, client, "alice", "pw-alice-1")
	paste := createPaste(t, env.ts, client, map[string]interface{}{
		"title": "shared", "content": "read me",
	})

	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := http.Get(env.ts.URL + "/api/pastes/" + paste.URLID)
			if err != nil {
				errs <- err
				return
			}
			resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				errs <- fmt.Errorf("status %d", resp.StatusCode)
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent read failed: %v", err)
	}
}

func TestConcurrentRegistrationsSameUsername(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	const n = 10
	var wg sync.WaitGroup
	statuses := make(chan int, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, _ := doJSON(t, newClient(t), http.MethodPost, env.ts.URL+"/api/register", map[string]string{
				"username": "highlander",
				"password": "there can be only one",
			})
			statuses <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(statuses)

	created := 0
	for status := range statuses {
		switch status {
		case http.StatusCreated:
			created++
		case http.StatusConflict:
		default:
			t.Errorf("unexpected status %d", status)
		}
	}
	if created != 1 {
		t.Errorf("created %d accounts for one username, want exactly 1", created)
	}
}
