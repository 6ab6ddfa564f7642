package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
)

// ErrServerNotFound is returned when no server has the requested ID.
var ErrServerNotFound = errors.New("server not found")

// ServerInput holds the fields a user supplies when adding a server.
type ServerInput struct {
	Address  string
	Port     int
	Protocol string
	Username string
	Password string
	Type     string
}

// ValidationError lists required fields that are missing or malformed.
type ValidationError struct {
	Fields []string
}

func (e *ValidationError) Error() string {
	return "invalid server settings: " + strings.Join(e.Fields, ", ")
}

// Normalize trims whitespace, strips a scheme typed into the address, and
// fills protocol and port defaults.
func (in ServerInput) Normalize() ServerInput {
	in.Address = strings.TrimSpace(in.Address)
	in.Username = strings.TrimSpace(in.Username)
	in.Protocol = strings.ToLower(strings.TrimSpace(in.Protocol))
	in.Type = strings.ToLower(strings.TrimSpace(in.Type))
	for _, scheme := range []string{"https://", "http://"} {
		if strings.HasPrefix(strings.ToLower(in.Address), scheme) {
			if in.Protocol == "" {
				in.Protocol = strings.TrimSuffix(scheme, "://")
			}
			in.Address = in.Address[len(scheme):]
		}
	}
	in.Address = strings.TrimRight(in.Address, "/")
	if in.Protocol == "" {
		in.Protocol = "http"
	}
	if in.Port == 0 {
		in.Port = 8096
	}
	return in
}

// ValidateServerInput reports missing or malformed fields as a
// *ValidationError. An empty password is allowed.
func ValidateServerInput(in ServerInput) error {
	var fields []string
	if in.Address == "" {
		fields = append(fields, "address")
	}
	if in.Port < 1 || in.Port > 65535 {
		fields = append(fields, "port")
	}
	if in.Protocol != "http" && in.Protocol != "https" {
		fields = append(fields, "protocol")
	}
	if in.Username == "" {
		fields = append(fields, "username")
	}
	if in.Type != TypeEmby && in.Type != TypeJellyfin {
		fields = append(fields, "type")
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// ///////////////////////////////////////////////
// Server List Operations
// ///////////////////////////////////////////////

// SelectedServer returns the selected server, if any.
func (c *Config) SelectedServer() (Server, bool) {
	for _, s := range c.Servers {
		if s.Selected {
			return s, true
		}
	}
	return Server{}, false
}

// Server returns the server with the given ID.
func (c *Config) Server(id string) (Server, bool) {
	i := c.indexOf(id)
	if i < 0 {
		return Server{}, false
	}
	return c.Servers[i], true
}

func (c *Config) indexOf(id string) int {
	return slices.IndexFunc(c.Servers, func(s Server) bool { return s.ID == id })
}

// AddServer inserts s and makes it the selected server. An existing entry
// with the same ID is replaced but keeps its ignored views.
func (c *Config) AddServer(s Server) {
	if i := c.indexOf(s.ID); i >= 0 {
		if s.IgnoredViews == nil {
			s.IgnoredViews = c.Servers[i].IgnoredViews
		}
		c.Servers[i] = s
	} else {
		c.Servers = append(c.Servers, s)
	}
	c.selectOnly(s.ID)
}

// SelectServer marks id as the only selected server.
func (c *Config) SelectServer(id string) error {
	if c.indexOf(id) < 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	c.selectOnly(id)
	return nil
}

func (c *Config) selectOnly(id string) {
	for i := range c.Servers {
		c.Servers[i].Selected = c.Servers[i].ID == id
	}
}

// RemoveServer deletes the server with the given ID and returns it. Removing
// the selected server leaves nothing selected.
func (c *Config) RemoveServer(id string) (Server, error) {
	i := c.indexOf(id)
	if i < 0 {
		return Server{}, fmt.Errorf("%w: %s", ErrServerNotFound, id)
	}
	removed := c.Servers[i]
	c.Servers = slices.Delete(c.Servers, i, i+1)
	return removed, nil
}

// ToggleIgnoredView adds libraryID to the server's ignored set, or removes it
// if present. It reports whether the library is ignored afterwards.
func (c *Config) ToggleIgnoredView(serverID, libraryID string) (bool, error) {
	i := c.indexOf(serverID)
	if i < 0 {
		return false, fmt.Errorf("%w: %s", ErrServerNotFound, serverID)
	}
	views := c.Servers[i].IgnoredViews
	if j := slices.Index(views, libraryID); j >= 0 {
		c.Servers[i].IgnoredViews = slices.Delete(views, j, j+1)
		return false, nil
	}
	c.Servers[i].IgnoredViews = append(views, libraryID)
	return true, nil
}

// RenameServer changes a server's ID, used when the server reports a
// different ID than the one stored. Renaming onto an existing ID drops the
// old entry in favour of the renamed one.
func (c *Config) RenameServer(oldID, newID string) error {
	i := c.indexOf(oldID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrServerNotFound, oldID)
	}
	if oldID == newID {
		return nil
	}
	if j := c.indexOf(newID); j >= 0 {
		c.Servers = slices.Delete(c.Servers, j, j+1)
		if j < i {
			i--
		}
	}
	c.Servers[i].ID = newID
	return nil
}
