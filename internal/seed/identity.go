package seed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/go-resty/resty/v2"

	"github.com/roach88/rwaverify/internal/actor"
	"github.com/roach88/rwaverify/internal/metrics"
)

// MaxIdentityAttempts bounds FetchIdentity.
const MaxIdentityAttempts = 10

// DefaultIdentityURL asks for passwords with upper and lower case, 5 to 9
// characters long.
const DefaultIdentityURL = "https://randomuser.me/api/?password=upper,lower,5-9"

// ErrIncompleteIdentity is returned by a source whose response lacks a
// required field.
var ErrIncompleteIdentity = errors.New("identity response is incomplete")

// IdentitySource produces one random identity per call. The phone number is
// never part of it.
type IdentitySource interface {
	Identity(ctx context.Context) (actor.Identity, error)
}

// RandomUserSource reads identities from a randomuser.me compatible API.
type RandomUserSource struct {
	client *resty.Client
	url    string
}

// NewRandomUserSource creates a source for url.
func NewRandomUserSource(client *resty.Client, url string) *RandomUserSource {
	if url == "" {
		url = DefaultIdentityURL
	}
	return &RandomUserSource{client: client, url: url}
}

type randomUserResponse struct {
	Results []struct {
		Name struct {
			First string `json:"first"`
			Last  string `json:"last"`
		} `json:"name"`
		Email string `json:"email"`
		Login struct {
			Username string `json:"username"`
			Password string `json:"password"`
		} `json:"login"`
	} `json:"results"`
}

func (s *RandomUserSource) Identity(ctx context.Context) (actor.Identity, error) {
	var body randomUserResponse
	res, err := s.client.R().SetContext(ctx).SetResult(&body).Get(s.url)
	if err != nil {
		return actor.Identity{}, err
	}
	if !res.IsSuccess() {
		return actor.Identity{}, fmt.Errorf("identity service: status %d", res.StatusCode())
	}
	if len(body.Results) == 0 {
		return actor.Identity{}, fmt.Errorf("%w: no results", ErrIncompleteIdentity)
	}
	r := body.Results[0]
	id := actor.Identity{
		FirstName: r.Name.First,
		LastName:  r.Name.Last,
		Username:  r.Login.Username,
		Password:  r.Login.Password,
		Email:     r.Email,
	}
	required := []struct{ field, value string }{
		{"name.first", id.FirstName},
		{"name.last", id.LastName},
		{"login.username", id.Username},
		{"login.password", id.Password},
		{"email", id.Email},
	}
	for _, r := range required {
		if r.value == "" {
			return actor.Identity{}, fmt.Errorf("%w: missing %s", ErrIncompleteIdentity, r.field)
		}
	}
	return id, nil
}

// FetchIdentity asks src for an identity, trying up to MaxIdentityAttempts
// times. Each attempt is logged with its ordinal. Exhausting the attempts is
// a *SetupError.
func FetchIdentity(ctx context.Context, src IdentitySource, logger *slog.Logger, rec metrics.Recorder) (actor.Identity, error) {
	var last error
	for attempt := 1; attempt <= MaxIdentityAttempts; attempt++ {
		logger.Info("fetching identity", "attempt", attempt)
		id, err := src.Identity(ctx)
		rec.IdentityAttempt(err == nil)
		if err == nil {
			return id, nil
		}
		if ctx.Err() != nil {
			return actor.Identity{}, &SetupError{Step: "identity", Err: ctx.Err()}
		}
		logger.Warn("identity attempt failed", "attempt", attempt, "error", err)
		last = err
	}
	return actor.Identity{}, &SetupError{
		Step: "identity",
		Err:  fmt.Errorf("gave up after %d attempts: %w", MaxIdentityAttempts, last),
	}
}
