// Package servers is the registry of named XSOAR servers, kept in a TOML
// file. API keys are stored separately in the keyring.
package servers

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrUnknownServer is returned for a name that is not registered.
var ErrUnknownServer = errors.New("unknown server")

// Registry holds all named servers and the default one.
type Registry struct {
	Default string            `toml:"default,omitempty"`
	Servers map[string]Server `toml:"servers"`
}

// Server is one XSOAR endpoint.
type Server struct {
	URL      string `toml:"url"`
	AuthID   string `toml:"auth_id,omitempty"`
	Insecure bool   `toml:"insecure,omitempty"`
	// Active servers are the targets of bulk runs.
	Active bool `toml:"active"`
}

// DefaultPath returns ~/.config/xsoar-feeder/servers.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "xsoar-feeder", "servers.toml"), nil
}

// Load reads the registry at path. A missing file is an empty registry.
func Load(path string) (*Registry, error) {
	reg := &Registry{}
	if _, err := toml.DecodeFile(path, reg); err != nil {
		if os.IsNotExist(err) {
			return &Registry{Servers: map[string]Server{}}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if reg.Servers == nil {
		reg.Servers = map[string]Server{}
	}
	return reg, nil
}

// Save writes the registry to path, creating its directory.
func Save(path string, reg *Registry) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(reg)
}

// Add registers or replaces a server. The first server added becomes the
// default.
func (r *Registry) Add(name string, s Server) error {
	if strings.TrimSpace(name) == "" || strings.ContainsAny(name, " \t:/") {
		return fmt.Errorf("invalid server name %q", name)
	}
	u, err := url.Parse(s.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("server %s: invalid URL %q", name, s.URL)
	}
	s.URL = strings.TrimRight(s.URL, "/")
	r.Servers[name] = s
	if r.Default == "" {
		r.Default = name
	}
	return nil
}

// Remove drops a server. Removing the default clears it.
func (r *Registry) Remove(name string) error {
	if _, ok := r.Servers[name]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	delete(r.Servers, name)
	if r.Default == name {
		r.Default = ""
	}
	return nil
}

// Get returns the named server, or the default one when name is empty.
func (r *Registry) Get(name string) (string, Server, error) {
	if name == "" {
		name = r.Default
	}
	if name == "" {
		return "", Server{}, errors.New("no server given and no default server set")
	}
	s, ok := r.Servers[name]
	if !ok {
		return "", Server{}, fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	return name, s, nil
}

// SetActive marks a server as a bulk target or not.
func (r *Registry) SetActive(name string, active bool) error {
	s, ok := r.Servers[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownServer, name)
	}
	s.Active = active
	r.Servers[name] = s
	return nil
}

// Names returns every server name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.Servers))
	for n := range r.Servers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// ActiveNames returns the names of active servers, sorted.
func (r *Registry) ActiveNames() []string {
	var names []string
	for _, n := range r.Names() {
		if r.Servers[n].Active {
			names = append(names, n)
		}
	}
	return names
}
