package rwasim

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/roach88/rwaverify/internal/actor"
)

// SessionCookie carries the signed-in user id.
const SessionCookie = "connect.sid"

// Handler serves the backend's HTTP and GraphQL API:
//
//	POST  /users       register (201)
//	POST  /login       sign in, sets the session cookie (200 / 401)
//	PATCH /users/{id}  profile update, signed-in user only (204)
//	POST  /graphql     createBankAccount mutation, signed-in user only
func (b *Backend) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /users", b.handleRegister)
	mux.HandleFunc("POST /login", b.handleLogin)
	mux.HandleFunc("PATCH /users/{id}", b.handlePatchUser)
	mux.HandleFunc("POST /graphql", b.handleGraphQL)
	return mux
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, ErrInvalid):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrUsernameTaken):
		return http.StatusConflict
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (b *Backend) sessionUser(r *http.Request) (string, bool) {
	c, err := r.Cookie(SessionCookie)
	if err != nil || c.Value == "" {
		return "", false
	}
	if _, err := b.User(c.Value); err != nil {
		return "", false
	}
	return c.Value, true
}

type registerRequest struct {
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
	Balance       string `json:"balance"`
}

func (b *Backend) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var cents int64
	if req.Balance != "" {
		n, err := strconv.ParseInt(req.Balance, 10, 64)
		if err != nil {
			writeError(w, http.StatusUnprocessableEntity, fmt.Errorf("%w: balance %q", ErrInvalid, req.Balance))
			return
		}
		cents = n
	}
	u, err := b.CreateUser(User{
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Username:     req.Username,
		Password:     req.Password,
		BalanceCents: cents,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"user": u})
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Type     string `json:"type"`
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := b.Authenticate(req.Username, req.Password)
	if err != nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: SessionCookie, Value: u.ID, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]any{"user": u})
}

type patchUserRequest struct {
	ID          string  `json:"id"`
	FirstName   *string `json:"firstName"`
	LastName    *string `json:"lastName"`
	Email       *string `json:"email"`
	PhoneNumber *string `json:"phoneNumber"`
}

func (b *Backend) handlePatchUser(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	self, ok := b.sessionUser(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if self != id {
		writeError(w, http.StatusForbidden, ErrForbidden)
		return
	}
	var req patchUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	err := b.UpdateUser(id, ProfileUpdate{
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		PhoneNumber: req.PhoneNumber,
	})
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type graphQLRequest struct {
	OperationName string            `json:"operationName"`
	Query         string            `json:"query"`
	Variables     map[string]string `json:"variables"`
}

type graphQLError struct {
	Message string `json:"message"`
}

func (b *Backend) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	self, ok := b.sessionUser(r)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []graphQLError{{Message: "Unauthorized"}}})
		return
	}
	if req.OperationName != "CreateBankAccount" || !strings.Contains(req.Query, "createBankAccount") {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []graphQLError{{Message: "unsupported operation " + req.OperationName}}})
		return
	}
	acct, err := b.CreateBankAccount(self, req.Variables["bankName"], req.Variables["accountNumber"], req.Variables["routingNumber"])
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"errors": []graphQLError{{Message: err.Error()}}})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"data": map[string]any{"createBankAccount": acct}})
}

// IdentityService serves randomuser.me-shaped identities.
type IdentityService struct {
	// FailFirst makes the first N requests return 503.
	FailFirst int32
	// Incomplete makes the first N successful responses omit the email.
	Incomplete int32

	calls atomic.Int32
	mu    sync.Mutex
	gen   *actor.Generator
}

// NewIdentityService creates an identity endpoint. Usernames are unique
// per call.
func NewIdentityService(seed uint64) *IdentityService {
	return &IdentityService{gen: actor.NewGenerator(seed)}
}

// Calls returns how many requests were served.
func (s *IdentityService) Calls() int {
	return int(s.calls.Load())
}

func (s *IdentityService) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	n := s.calls.Add(1)
	if n <= s.FailFirst {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	s.mu.Lock()
	first := s.gen.String(6, actor.Mixed)
	last := s.gen.String(8, actor.Mixed)
	password := s.gen.String(3, actor.Upper) + s.gen.String(4, actor.Lower)
	s.mu.Unlock()
	email := strings.ToLower(first+"."+last) + "@example.com"
	if n-s.FailFirst <= s.Incomplete {
		email = ""
	}
	user := map[string]any{
		"name":  map[string]string{"first": first, "last": last},
		"email": email,
		"login": map[string]string{
			"username": strings.ToLower(first) + actor.UniqueSuffix(),
			"password": password,
		},
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": []any{user}})
}
