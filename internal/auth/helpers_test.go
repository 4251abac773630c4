package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/yourusername/pg-life/internal/account"
)

const testSecret = "test-secret"

// memDirectory はテスト用のメモリ上の account.Directory です。
type memDirectory struct {
	mu       sync.Mutex
	byID     map[string]*account.Account
	order    []string
	failWith error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{byID: make(map[string]*account.Account)}
}

func (d *memDirectory) Create(_ context.Context, acc *account.Account) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return d.failWith
	}
	acc.Email = account.NormalizeEmail(acc.Email)
	for _, existing := range d.byID {
		if existing.Email == acc.Email {
			return account.ErrEmailTaken
		}
	}
	if acc.ID == "" {
		acc.ID = uuid.NewString()
	}
	cp := *acc
	d.byID[acc.ID] = &cp
	d.order = append(d.order, acc.ID)
	return nil
}

func (d *memDirectory) GetByID(_ context.Context, id string) (*account.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return nil, d.failWith
	}
	acc, ok := d.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *acc
	return &cp, nil
}

func (d *memDirectory) GetByEmail(_ context.Context, email string) (*account.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.failWith != nil {
		return nil, d.failWith
	}
	email = account.NormalizeEmail(email)
	for _, acc := range d.byID {
		if acc.Email == email {
			cp := *acc
			return &cp, nil
		}
	}
	return nil, account.ErrNotFound
}

func (d *memDirectory) Modify(_ context.Context, id string, mutate func(*account.Account) error) (*account.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	acc, ok := d.byID[id]
	if !ok {
		return nil, account.ErrNotFound
	}
	cp := *acc
	if err := mutate(&cp); err != nil {
		return nil, err
	}
	d.byID[id] = &cp
	out := cp
	return &out, nil
}

func (d *memDirectory) List(_ context.Context) ([]*account.Account, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*account.Account, 0, len(d.order))
	for _, id := range d.order {
		cp := *d.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

// memDenyList はテスト用の DenyList です。
type memDenyList struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	err     error
}

func newMemDenyList() *memDenyList {
	return &memDenyList{revoked: make(map[string]time.Time)}
}

func (d *memDenyList) Revoke(_ context.Context, jti string, until time.Time) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return d.err
	}
	d.revoked[jti] = until
	return nil
}

func (d *memDenyList) IsRevoked(_ context.Context, jti string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.err != nil {
		return false, d.err
	}
	_, ok := d.revoked[jti]
	return ok, nil
}

// stubScheduler は予約されたアカウント ID を記録します。
type stubScheduler struct {
	mu  sync.Mutex
	ids []string
	err error
}

func (s *stubScheduler) ScheduleVerification(_ context.Context, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = append(s.ids, accountID)
	return s.err
}

// stubTickets は一度だけ引き換えられるチケットの表です。
type stubTickets struct {
	mu      sync.Mutex
	tickets map[string]string
}

func (s *stubTickets) Consume(_ context.Context, ticket string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.tickets[ticket]
	delete(s.tickets, ticket)
	return id, nil
}

func newTestManager(t *testing.T, mutate func(*Options)) *Manager {
	t.Helper()
	opts := Options{
		Accounts: newMemDirectory(),
		Hasher:   NewBcryptHasher(bcrypt.MinCost),
		Tokens:   NewTokenCodec([]byte(testSecret), time.Hour),
		Cookie:   CookieOptions{Secure: true},
	}
	if mutate != nil {
		mutate(&opts)
	}
	m, err := NewManager(opts)
	require.NoError(t, err)
	return m
}

func newAuthRouter(m *Manager) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/api/v1/auth")
	group.POST("/register", m.Register)
	group.POST("/login", m.Login)
	group.GET("/verify", m.VerifyEmail)
	group.GET("/logout", m.RequireSession(), m.Logout)
	group.GET("/check", m.RequireSession(), m.Check)
	r.GET("/api/v1/admin/accounts", m.RequireSession(), m.RequireRole(account.RoleAdmin), m.ListAccounts)
	return r
}

func doJSON(r http.Handler, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body == nil {
		reader = strings.NewReader("")
	} else if s, ok := body.(string); ok {
		reader = strings.NewReader(s)
	} else {
		b, _ := json.Marshal(body)
		reader = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func newRequest(method, path string, cookies ...*http.Cookie) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	return req
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func sessionCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func validRegistration() map[string]string {
	return map[string]string{
		"name":        "Asha",
		"email":       "asha@example.com",
		"password":    "Secret123",
		"phoneNumber": "+919876543210",
		"collegeName": "IIT Delhi",
		"gender":      "female",
	}
}
