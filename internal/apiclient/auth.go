package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"accountdesk/portal/internal/models"
)

// AuthResult is the normalised outcome of login and registration.
type AuthResult struct {
	AccessToken  string
	RefreshToken string
	User         models.User
}

func (r AuthResult) validate() error {
	if r.AccessToken == "" || r.User.ID == "" {
		return fmt.Errorf("%w: missing token or user", ErrMalformedResponse)
	}
	return nil
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// loginResponse is the flat envelope of POST /auth/login/.
type loginResponse struct {
	tokenPair
	User models.User `json:"user"`
}

// registerResponse nests the tokens; POST /auth/register/ differs from login here.
type registerResponse struct {
	Tokens tokenPair   `json:"tokens"`
	User   models.User `json:"user"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
}

// Login is a public call: a 401 here means bad credentials and comes back as
// an *Error without touching any session.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResult, error) {
	var resp loginResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login/", loginRequest{Email: email, Password: password}, &resp); err != nil {
		return AuthResult{}, err
	}

	result := AuthResult{
		AccessToken:  resp.Access,
		RefreshToken: resp.Refresh,
		User:         resp.User,
	}
	if err := result.validate(); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}

func (c *Client) Register(ctx context.Context, email, password, fullName string) (AuthResult, error) {
	var resp registerResponse
	req := registerRequest{Email: email, Password: password, FullName: fullName}
	if err := c.do(ctx, http.MethodPost, "/auth/register/", req, &resp); err != nil {
		return AuthResult{}, err
	}

	result := AuthResult{
		AccessToken:  resp.Tokens.Access,
		RefreshToken: resp.Tokens.Refresh,
		User:         resp.User,
	}
	if err := result.validate(); err != nil {
		return AuthResult{}, err
	}
	return result, nil
}
