// Package directory is the admin's paged view of user accounts.
package directory

import (
	"context"
	"fmt"

	"accountdesk/portal/internal/apiclient"
	"accountdesk/portal/internal/models"
)

// PageSize matches the upstream paginator.
const PageSize = 10

type Lister interface {
	ListUsers(ctx context.Context, page int) (apiclient.UserPage, error)
}

type StatusSetter interface {
	SetUserStatus(ctx context.Context, userID string, active bool) (bool, error)
}

// Page is one fetched page of the directory.
type Page struct {
	Number int
	Count  int
	Users  []models.User
}

// TotalPages is ceil(count/size); an empty directory has zero pages.
func TotalPages(count, size int) int {
	if count <= 0 || size <= 0 {
		return 0
	}
	return (count + size - 1) / size
}

func (p Page) TotalPages() int {
	return TotalPages(p.Count, PageSize)
}

func (p Page) HasPrevious() bool {
	return p.Number > 1
}

func (p Page) HasNext() bool {
	return p.Number < p.TotalPages()
}

// Next never moves past the last page.
func (p Page) Next() int {
	total := p.TotalPages()
	if total < 1 {
		total = 1
	}
	return min(total, p.Number+1)
}

// Previous never moves before the first page.
func (p Page) Previous() int {
	return max(1, p.Number-1)
}

func Fetch(ctx context.Context, lister Lister, page int) (Page, error) {
	if page < 1 {
		page = 1
	}
	resp, err := lister.ListUsers(ctx, page)
	if err != nil {
		return Page{}, fmt.Errorf("list users page %d: %w", page, err)
	}
	return Page{Number: page, Count: resp.Count, Users: resp.Results}, nil
}

// Toggle flips target's active flag and returns the action it performed.
func Toggle(ctx context.Context, setter StatusSetter, target models.User) (models.AdminAction, error) {
	action := models.ActionFor(target)
	if _, err := setter.SetUserStatus(ctx, target.ID, !target.IsActive); err != nil {
		return action, fmt.Errorf("%s user %s: %w", action, target.ID, err)
	}
	return action, nil
}

// SuccessMessage is the toast shown after a status change.
func SuccessMessage(action models.AdminAction, target models.User) string {
	verb := "activated"
	if action == models.AdminActionBan {
		verb = "banned"
	}
	return fmt.Sprintf("%s has been %s", target.DisplayName(), verb)
}
