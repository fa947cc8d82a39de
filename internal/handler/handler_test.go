package handler_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/schelchok001-arch/boompoint/internal/handler"
	"github.com/schelchok001-arch/boompoint/internal/repository/sqlite"
	"github.com/schelchok001-arch/boompoint/internal/service"
)

// testEnv wires real services over a throwaway SQLite file, so handler tests
// exercise the full request path down to storage.
type testEnv struct {
	db      *sqlite.DB
	ledger  *service.LedgerService
	users   *service.UserService
	rewards *service.RewardService
	logger  *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	ledger := service.NewLedgerService(db, logger)

	return &testEnv{
		db:      db,
		ledger:  ledger,
		users:   service.NewUserService(db, ledger, logger),
		rewards: service.NewRewardService(db, ledger, logger),
		logger:  logger,
	}
}

func postJSON(h http.HandlerFunc, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return body
}

// signupUser registers an account through the handler and returns its body
// (id, code, balance and friends, as decoded JSON).
func signupUser(t *testing.T, env *testEnv, name, email, ref string) map[string]any {
	t.Helper()
	h := handler.NewUserHandler(env.users, env.logger)
	body, _ := json.Marshal(map[string]string{"name": name, "email": email, "ref": ref})
	rr := postJSON(h.HandleSignup, "/api/signup", string(body))
	if rr.Code != http.StatusOK {
		t.Fatalf("signup failed with status %d: %s", rr.Code, rr.Body.String())
	}
	return decodeBody(t, rr)
}
