package profile

import (
	"context"
	"strings"
	"sync"
)

type MemoryDirectory struct {
	mu     sync.Mutex
	emails map[int64]string
}

var _ Directory = (*MemoryDirectory)(nil)

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{emails: map[int64]string{}}
}

func (d *MemoryDirectory) SetEmail(_ context.Context, userID int64, email string) (bool, error) {
	email = strings.TrimSpace(email)
	if !ValidEmail(email) {
		return false, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.emails[userID] = email
	return true, nil
}

func (d *MemoryDirectory) GetEmail(_ context.Context, userID int64) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.emails[userID], nil
}
