// Package notify implements the platform-notification and backend-log
// channels of the reminder scheduler.
package notify

import (
	"context"
	"fmt"
	"sync"

	"github.com/example/estate-crm/internal/live"
	"github.com/example/estate-crm/internal/reminder"
)

// Permissions holds the last permission state reported by the page.
type Permissions struct {
	mu sync.RWMutex
	p  reminder.Permission
}

func NewPermissions() *Permissions {
	return &Permissions{p: reminder.PermissionDefault}
}

func (p *Permissions) Get() reminder.Permission {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.p
}

func (p *Permissions) Set(v reminder.Permission) error {
	switch v {
	case reminder.PermissionGranted, reminder.PermissionDenied, reminder.PermissionDefault:
	default:
		return fmt.Errorf("unknown notification permission %q", v)
	}
	p.mu.Lock()
	p.p = v
	p.mu.Unlock()
	return nil
}

// Broadcaster sends an event to connected pages.
type Broadcaster interface {
	Broadcast(ev live.Event)
}

// Platform shows system notifications through the page's Notification API.
type Platform struct {
	Pages Broadcaster
	Perms *Permissions
}

func (pl *Platform) Permission() reminder.Permission {
	if pl.Perms == nil {
		return reminder.PermissionDefault
	}
	return pl.Perms.Get()
}

func (pl *Platform) Show(_ context.Context, title, body string) error {
	if pl.Permission() != reminder.PermissionGranted {
		return fmt.Errorf("notification permission is %s", pl.Permission())
	}
	pl.Pages.Broadcast(live.Event{Type: live.EventNotification, Data: live.Notification{Title: title, Body: body}})
	return nil
}

// RequestPermission asks the page to prompt the user. Only call it from an
// explicit user action.
func (pl *Platform) RequestPermission() {
	pl.Pages.Broadcast(live.Event{Type: live.EventRequestPermission})
}

var _ reminder.PlatformNotifier = (*Platform)(nil)
