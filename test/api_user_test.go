package test

import (
	"encoding/json"
	"net/http"
	"strconv"
	"testing"

	"pinbin/pkg/domain"
)

func TestRegisterLoginLogout(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	client := newClient(t)
	u := register(t, env.ts, client, "alice", "pw-alice-1")
	if u.Username != "alice" {
		t.Errorf("username = %q, want alice", u.Username)
	}

	// Registration signs the client in.
	resp, body := doJSON(t, client, http.MethodGet, env.ts.URL+"/api/user", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("current user after register: status %d, body %s", resp.StatusCode, body)
	}

	resp, _ = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/logout", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("logout: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/user", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("current user after logout: status %d, want 401", resp.StatusCode)
	}

	resp, body = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/login", map[string]string{
		"username": "alice",
		"password": "pw-alice-1",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login: status %d, body %s", resp.StatusCode, body)
	}
	var logged domain.User
	if err := json.Unmarshal(body, &logged); err != nil {
		t.Fatal(err)
	}
	if logged.ID != u.ID {
		t.Errorf("login id = %d, want %d", logged.ID, u.ID)
	}

	resp, _ = doJSON(t, client, http.MethodPost, env.ts.URL+"/api/login", map[string]string{
		"username": "alice",
		"password": "wrong",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("bad login: status %d, want 401", resp.StatusCode)
	}
}

func TestRegisterDuplicateUsername(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	register(t, env.ts, newClient(t), "alice", "pw-alice-1")
	resp, body := doJSON(t, newClient(t), http.MethodPost, env.ts.URL+"/api/register", map[string]string{
		"username": "alice",
		"password": "other",
	})
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("duplicate register: status %d, body %s", resp.StatusCode, body)
	}
}

func TestUserListRequiresAuthAndRedacts(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	client := newClient(t)
	register(t, env.ts, client, "alice", "pw-alice-1")

	resp, _ := doJSON(t, newClient(t), http.MethodGet, env.ts.URL+"/api/users", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous list: status %d, want 401", resp.StatusCode)
	}

	resp, body := doJSON(t, client, http.MethodGet, env.ts.URL+"/api/users", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list users: status %d", resp.StatusCode)
	}
	var users []map[string]interface{}
	if err := json.Unmarshal(body, &users); err != nil {
		t.Fatal(err)
	}
	if len(users) != 1 {
		t.Fatalf("users len = %d, want 1", len(users))
	}
	if _, ok := users[0]["password"]; ok {
		t.Error("listing exposed a password field")
	}
}

func TestUserUpdateEndpoint(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	client := newClient(t)
	alice := register(t, env.ts, client, "alice", "pw-alice-1")
	otherClient := newClient(t)
	bob := register(t, env.ts, otherClient, "bob", "pw-bob-1")
	adminClient := newClient(t)
	registerAdmin(t, env, adminClient, "root", "pw-root-1")

	// Self-service avatar update.
	resp, body := doJSON(t, client, http.MethodPatch,
		env.ts.URL+"/api/users/"+strconv.Itoa(alice.ID),
		map[string]interface{}{"avatarUrl": "https://example.com/a.png"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("self update: status %d, body %s", resp.StatusCode, body)
	}
	var updated domain.User
	if err := json.Unmarshal(body, &updated); err != nil {
		t.Fatal(err)
	}
	if updated.AvatarURL == nil || *updated.AvatarURL != "https://example.com/a.png" {
		t.Error("avatar not applied")
	}

	// Self promotion is rejected.
	resp, _ = doJSON(t, client, http.MethodPatch,
		env.ts.URL+"/api/users/"+strconv.Itoa(alice.ID),
		map[string]interface{}{"isAdmin": true})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("self promotion: status %d, want 403", resp.StatusCode)
	}

	// Editing someone else requires admin.
	resp, _ = doJSON(t, client, http.MethodPatch,
		env.ts.URL+"/api/users/"+strconv.Itoa(bob.ID),
		map[string]interface{}{"avatarUrl": "https://example.com/x.png"})
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("edit other: status %d, want 403", resp.StatusCode)
	}
	resp, body = doJSON(t, adminClient, http.MethodPatch,
		env.ts.URL+"/api/users/"+strconv.Itoa(bob.ID),
		map[string]interface{}{"isAdmin": true})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("admin promotion: status %d, body %s", resp.StatusCode, body)
	}

	// Password change invalidates the old credential.
	resp, _ = doJSON(t, client, http.MethodPatch,
		env.ts.URL+"/api/users/"+strconv.Itoa(alice.ID),
		map[string]interface{}{"password": "rotated-pass"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("password change: status %d", resp.StatusCode)
	}
	resp, _ = doJSON(t, newClient(t), http.MethodPost, env.ts.URL+"/api/login", map[string]string{
		"username": "alice", "password": "pw-alice-1",
	})
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("login with old password: status %d, want 401", resp.StatusCode)
	}
	resp, _ = doJSON(t, newClient(t), http.MethodPost, env.ts.URL+"/api/login", map[string]string{
		"username": "alice", "password": "rotated-pass",
	})
	if resp.StatusCode != http.StatusOK {
		t.Errorf("login with new password: status %d, want 200", resp.StatusCode)
	}
}

func TestProtectedUsers(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	victimClient := newClient(t)
	victim := register(t, env.ts, victimClient, "victim", "pw-victim-1")
	adminClient := newClient(t)
	registerAdmin(t, env, adminClient, "root", "pw-root-1")

	resp, body := doJSON(t, adminClient, http.MethodPatch,
		env.ts.URL+"/api/users/"+strconv.Itoa(victim.ID),
		map[string]interface{}{"avatarUrl": "https://example.com/x.png"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("edit protected: status %d, body %s", resp.StatusCode, body)
	}
	var errResp domain.ErrResp
	if err := json.Unmarshal(body, &errResp); err != nil {
		t.Fatal(err)
	}
	if errResp.Error.Code != "PROTECTED_USER" {
		t.Errorf("error code = %q, want PROTECTED_USER", errResp.Error.Code)
	}

	resp, _ = doJSON(t, adminClient, http.MethodDelete,
		env.ts.URL+"/api/users/"+strconv.Itoa(victim.ID), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("delete protected: status %d, want 403", resp.StatusCode)
	}
}

func TestUserDeleteEndpoint(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	client := newClient(t)
	alice := register(t, env.ts, client, "alice", "pw-alice-1")
	paste := createPaste(t, env.ts, client, map[string]interface{}{
		"title": "survives", "content": "me",
	})
	adminClient := newClient(t)
	registerAdmin(t, env, adminClient, "root", "pw-root-1")

	resp, _ := doJSON(t, client, http.MethodDelete,
		env.ts.URL+"/api/users/"+strconv.Itoa(alice.ID), nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("self delete: status %d, want 403", resp.StatusCode)
	}

	resp, body := doJSON(t, adminClient, http.MethodDelete,
		env.ts.URL+"/api/users/"+strconv.Itoa(alice.ID), nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("admin delete: status %d, body %s", resp.StatusCode, body)
	}

	// The deleted account's pastes stay readable.
	resp, _ = doJSON(t, newClient(t), http.MethodGet, env.ts.URL+"/api/pastes/"+paste.URLID, nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("orphaned paste read: status %d, want 200", resp.StatusCode)
	}

	// And the dead session behaves as anonymous.
	resp, _ = doJSON(t, client, http.MethodGet, env.ts.URL+"/api/user", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("session after delete: status %d, want 401", resp.StatusCode)
	}
}

func TestUserPastesListing(t *testing.T) {
	env, cleanup := setupTestServer(t)
	defer cleanup()

	client := newClient(t)
	alice := register(t, env.ts, client, "alice", "pw-alice-1")
	createPaste(t, env.ts, client, map[string]interface{}{
		"title": "pub", "content": "visible",
	})
	createPaste(t, env.ts, client, map[string]interface{}{
		"title": "priv", "content": "hidden", "isPrivate": true,
	})

	resp, body := doJSON(t, newClient(t), http.MethodGet,
		env.ts.URL+"/api/users/"+strconv.Itoa(alice.ID)+"/pastes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("user pastes: status %d", resp.StatusCode)
	}
	var pastes []domain.Paste
	if err := json.Unmarshal(body, &pastes); err != nil {
		t.Fatal(err)
	}
	if len(pastes) != 2 {
		t.Fatalf("len = %d, want 2", len(pastes))
	}
	for _, p := range pastes {
		if p.IsPrivate && p.Content != "" {
			t.Errorf("private paste %q leaked content to anonymous viewer", p.Title)
		}
		if !p.IsPrivate && p.Content == "" {
			t.Errorf("public paste %q should keep its content", p.Title)
		}
	}
}
