// Package seed creates test users through the application's HTTP and
// GraphQL API so scenarios start from known actors without driving the
// sign-up screens.
package seed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/metrics"
)

// InitialBalanceCents is the balance every seeded user starts with.
const InitialBalanceCents = "500000"

const createBankAccountMutation = `mutation CreateBankAccount($bankName: String!, $accountNumber: String!, $routingNumber: String!) {
  createBankAccount(bankName: $bankName, accountNumber: $accountNumber, routingNumber: $routingNumber) {
    id
    uuid
    userId
    bankName
    accountNumber
    routingNumber
    isDeleted
    createdAt
  }
}`

// Options configures a Gateway.
type Options struct {
	// APIURL is the backend root, e.g. http://localhost:3001.
	APIURL  string
	Timeout time.Duration

	// Identities defaults to randomuser.me.
	Identities IdentitySource
	// Seed drives the generator for phone numbers and bank facts.
	Seed uint64

	Logger  *slog.Logger
	Metrics metrics.Recorder
}

// Gateway seeds actors. Safe for concurrent use; every actor gets its own
// cookie session.
type Gateway struct {
	apiURL     string
	timeout    time.Duration
	identities IdentitySource
	logger     *slog.Logger
	metrics    metrics.Recorder

	mu  sync.Mutex
	gen *actor.Generator
}

// NewGateway creates a gateway from opts.
func NewGateway(opts Options) *Gateway {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.Nop{}
	}
	if opts.Identities == nil {
		opts.Identities = NewRandomUserSource(resty.New().SetTimeout(opts.Timeout), DefaultIdentityURL)
	}
	return &Gateway{
		apiURL:     strings.TrimRight(opts.APIURL, "/"),
		timeout:    opts.Timeout,
		identities: opts.Identities,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		gen:        actor.NewGenerator(opts.Seed),
	}
}

// Session is one cookie session against the API.
type Session struct {
	client *resty.Client
	logger *slog.Logger
}

// NewSession opens a fresh cookie session.
func (g *Gateway) NewSession() *Session {
	client := resty.New().
		SetBaseURL(g.apiURL).
		SetTimeout(g.timeout).
		SetHeader("Content-Type", "application/json")
	return &Session{client: client, logger: g.logger}
}

type userBody struct {
	ID        string `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username"`
}

type userEnvelope struct {
	User userBody `json:"user"`
}

// Register creates the user and returns its id. The response must echo
// the names and username that were sent.
func (s *Session) Register(ctx context.Context, id actor.Identity, bank actor.Bank) (string, error) {
	const step = "register"
	var out userEnvelope
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"firstName":     id.FirstName,
			"lastName":      id.LastName,
			"username":      id.Username,
			"password":      id.Password,
			"bankName":      bank.BankName,
			"accountNumber": bank.AccountNumber,
			"routingNumber": bank.RoutingNumber,
			"balance":       InitialBalanceCents,
		}).
		SetResult(&out).
		Post("/users")
	if err != nil {
		return "", &SetupError{Step: step, Err: err}
	}
	if res.StatusCode() != http.StatusCreated {
		return "", statusError(step, http.StatusCreated, res.StatusCode())
	}
	for _, c := range []struct{ field, want, got string }{
		{"firstName", id.FirstName, out.User.FirstName},
		{"lastName", id.LastName, out.User.LastName},
		{"username", id.Username, out.User.Username},
	} {
		if c.want != c.got {
			return "", fieldError(step, c.field, c.want, c.got)
		}
	}
	if out.User.ID == "" {
		return "", fieldError(step, "id", "non-empty", "")
	}
	s.logger.Debug("registered", "username", id.Username, "user_id", out.User.ID)
	return out.User.ID, nil
}

// Login signs in; the returned user id must equal wantID.
func (s *Session) Login(ctx context.Context, username, password, wantID string) error {
	const step = "login"
	var out userEnvelope
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"password": password, "type": "LOGIN", "username": username}).
		SetResult(&out).
		Post("/login")
	if err != nil {
		return &SetupError{Step: step, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		return statusError(step, http.StatusOK, res.StatusCode())
	}
	if out.User.ID != wantID {
		return fieldError(step, "user.id", wantID, out.User.ID)
	}
	return nil
}

// LoginRejected expects the credentials to be refused with 401
// Unauthorized.
func (s *Session) LoginRejected(ctx context.Context, username, password string) error {
	const step = "login-rejected"
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"password": password, "type": "LOGIN", "username": username}).
		Post("/login")
	if err != nil {
		return &SetupError{Step: step, Err: err}
	}
	if res.StatusCode() != http.StatusUnauthorized {
		return statusError(step, http.StatusUnauthorized, res.StatusCode())
	}
	if body := strings.TrimSpace(res.String()); body != "Unauthorized" {
		return fieldError(step, "body", "Unauthorized", body)
	}
	return nil
}

// Account is an existing user of the environment, such as its
// administrator.
type Account struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// VerifyAccount signs in as a and checks that the backend knows the user
// by the configured names. It returns the user id.
func (s *Session) VerifyAccount(ctx context.Context, a Account) (string, error) {
	const step = "verify-account"
	var out userEnvelope
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{"password": a.Password, "type": "LOGIN", "username": a.Username}).
		SetResult(&out).
		Post("/login")
	if err != nil {
		return "", &SetupError{Step: step, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		return "", statusError(step, http.StatusOK, res.StatusCode())
	}
	for _, c := range []struct{ field, want, got string }{
		{"username", a.Username, out.User.Username},
		{"firstName", a.FirstName, out.User.FirstName},
		{"lastName", a.LastName, out.User.LastName},
	} {
		if c.want != "" && c.want != c.got {
			return "", fieldError(step, c.field, c.want, c.got)
		}
	}
	return out.User.ID, nil
}

// Preflight checks that the environment is reachable and seeded by
// signing in as its administrator on a fresh session.
func (g *Gateway) Preflight(ctx context.Context, admin Account) error {
	id, err := g.NewSession().VerifyAccount(ctx, admin)
	if err != nil {
		return err
	}
	g.logger.Info("preflight ok", "admin", admin.Username, "user_id", id)
	return nil
}

// UpdateProfile sets email and phone (and re-sends the names) for the
// signed-in user.
func (s *Session) UpdateProfile(ctx context.Context, id actor.Identity) error {
	const step = "update-profile"
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"email":       id.Email,
			"firstName":   id.FirstName,
			"id":          id.UserID,
			"lastName":    id.LastName,
			"phoneNumber": id.Phone,
		}).
		Patch("/users/" + id.UserID)
	if err != nil {
		return &SetupError{Step: step, Err: err}
	}
	if res.StatusCode() != http.StatusNoContent {
		return statusError(step, http.StatusNoContent, res.StatusCode())
	}
	return nil
}

type graphQLRequest struct {
	OperationName string            `json:"operationName"`
	Query         string            `json:"query"`
	Variables     map[string]string `json:"variables"`
}

type bankAccountBody struct {
	UserID        string `json:"userId"`
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	RoutingNumber string `json:"routingNumber"`
}

type createBankAccountResponse struct {
	Data struct {
		CreateBankAccount *bankAccountBody `json:"createBankAccount"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// CreateBankAccount links bank to userID through the GraphQL mutation. The
// response must echo every field.
func (s *Session) CreateBankAccount(ctx context.Context, userID string, bank actor.Bank) error {
	const step = "create-bank-account"
	var out createBankAccountResponse
	res, err := s.client.R().
		SetContext(ctx).
		SetBody(graphQLRequest{
			OperationName: "CreateBankAccount",
			Query:         createBankAccountMutation,
			Variables: map[string]string{
				"bankName":      bank.BankName,
				"accountNumber": bank.AccountNumber,
				"routingNumber": bank.RoutingNumber,
			},
		}).
		SetResult(&out).
		Post("/graphql")
	if err != nil {
		return &SetupError{Step: step, Err: err}
	}
	if res.StatusCode() != http.StatusOK {
		return statusError(step, http.StatusOK, res.StatusCode())
	}
	if len(out.Errors) > 0 {
		return &SetupError{Step: step, Err: fmt.Errorf("graphql: %s", out.Errors[0].Message)}
	}
	acct := out.Data.CreateBankAccount
	if acct == nil {
		return fieldError(step, "data.createBankAccount", "object", "null")
	}
	for _, c := range []struct{ field, want, got string }{
		{"userId", userID, acct.UserID},
		{"bankName", bank.BankName, acct.BankName},
		{"accountNumber", bank.AccountNumber, acct.AccountNumber},
		{"routingNumber", bank.RoutingNumber, acct.RoutingNumber},
	} {
		if c.want != c.got {
			return fieldError(step, c.field, c.want, c.got)
		}
	}
	return nil
}

func (g *Gateway) facts() (string, actor.Bank) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gen.Phone(), g.gen.Bank()
}

// SeedActor gives st a fresh registered identity with a bank account:
// fetch identity, register, sign in, set email and phone, link the bank.
// st is only written once every step succeeded.
func (g *Gateway) SeedActor(ctx context.Context, st *actor.State) error {
	logger := g.logger.With("actor", st.Label())
	id, err := FetchIdentity(ctx, g.identities, logger, g.metrics)
	if err != nil {
		return err
	}
	phone, bank := g.facts()
	id.Phone = phone

	s := g.NewSession()
	userID, err := s.Register(ctx, id, bank)
	if err != nil {
		return err
	}
	id.UserID = userID
	if err := s.Login(ctx, id.Username, id.Password, userID); err != nil {
		return err
	}
	if err := s.UpdateProfile(ctx, id); err != nil {
		return err
	}
	if err := s.CreateBankAccount(ctx, userID, bank); err != nil {
		return err
	}

	if err := st.SetIdentity(id); err != nil {
		return err
	}
	st.MarkRegistered(userID)
	st.SetBank(bank)
	logger.Info("seeded actor", "username", id.Username, "user_id", userID)
	return nil
}
