package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"accountdesk/portal/internal/models"
)

type ProfileUpdate struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
}

type PasswordChange struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

// UserPage is one page of the admin user listing.
type UserPage struct {
	Results  []models.User `json:"results"`
	Count    int           `json:"count"`
	Next     *string       `json:"next"`
	Previous *string       `json:"previous"`
}

type statusUpdate struct {
	IsActive bool `json:"is_active"`
}

type statusResponse struct {
	IsActive *bool `json:"is_active"`
}

func (s *Session) Profile(ctx context.Context) (models.User, error) {
	var user models.User
	if err := s.do(ctx, http.MethodGet, "/auth/profile/", nil, nil, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Session) UpdateProfile(ctx context.Context, in ProfileUpdate) (models.User, error) {
	var user models.User
	if err := s.do(ctx, http.MethodPut, "/auth/profile/", nil, in, &user); err != nil {
		return models.User{}, err
	}
	return user, nil
}

func (s *Session) ChangePassword(ctx context.Context, in PasswordChange) error {
	return s.do(ctx, http.MethodPost, "/auth/profile/change-password/", nil, in, nil)
}

func (s *Session) ListUsers(ctx context.Context, page int) (UserPage, error) {
	if page < 1 {
		page = 1
	}
	query := url.Values{"page": []string{strconv.Itoa(page)}}

	var resp UserPage
	if err := s.do(ctx, http.MethodGet, "/auth/admin/users/", query, nil, &resp); err != nil {
		return UserPage{}, err
	}
	return resp, nil
}

// SetUserStatus returns the active flag the upstream stored.
func (s *Session) SetUserStatus(ctx context.Context, userID string, active bool) (bool, error) {
	path := "/auth/admin/users/" + url.PathEscape(userID) + "/status/"

	var resp statusResponse
	if err := s.do(ctx, http.MethodPatch, path, nil, statusUpdate{IsActive: active}, &resp); err != nil {
		return false, err
	}
	if resp.IsActive == nil {
		return active, nil
	}
	return *resp.IsActive, nil
}
