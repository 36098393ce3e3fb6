// Package identity maintains the mapping between recognizer labels and
// enrolled users. The mapping lives in a plain text file, one entry per
// line in the form "label:userID_Name", and is rebuilt whenever the
// enrolled set changes.
package identity

import (
	"bufio"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
)

// ErrNotFound is returned when a label or user id has no mapping entry.
var ErrNotFound = errors.New("identity: not found")

// User is one enrolled identity.
type User struct {
	Label  int    `json:"label"`
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// Registry is a file-backed identity mapping. Labels are positional: after
// every mutation they are reassigned from the sorted user-id set, mirroring
// how the recognizer indexes its training classes.
type Registry struct {
	mu    sync.Mutex
	path  string
	users map[string]string // userID -> name
}

// NewRegistry loads the mapping file, creating it if absent.
func NewRegistry(path string) (*Registry, error) {
	r := &Registry{path: path, users: make(map[string]string)}
	if err := r.load(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) load() error {
	f, err := os.Open(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return r.save()
		}
		return fmt.Errorf("open identity file: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		_, rest, ok := strings.Cut(line, ":")
		if !ok {
			log.Printf("skipping malformed identity line %q", line)
			continue
		}
		id, name, ok := strings.Cut(rest, "_")
		if !ok {
			log.Printf("skipping malformed identity line %q", line)
			continue
		}
		r.users[id] = name
	}
	return sc.Err()
}

// save rewrites the mapping file with labels reassigned from the sorted
// user-id set. Caller must hold the lock.
func (r *Registry) save() error {
	if dir := filepath.Dir(r.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create identity dir: %w", err)
		}
	}
	var b strings.Builder
	for i, id := range r.sortedIDs() {
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(':')
		b.WriteString(id)
		b.WriteByte('_')
		b.WriteString(r.users[id])
		b.WriteByte('\n')
	}
	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return os.Rename(tmp, r.path)
}

func (r *Registry) sortedIDs() []string {
	ids := make([]string, 0, len(r.users))
	for id := range r.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// validName rejects names that would break the line-oriented mapping file.
func validName(name string) error {
	if strings.ContainsFunc(name, func(r rune) bool { return r < ' ' }) {
		return fmt.Errorf("identity: name %q contains control characters", name)
	}
	return nil
}

// Enroll registers or updates a user. Labels for the whole set are rebuilt.
func (r *Registry) Enroll(userID, name string) error {
	if userID == "" {
		return errors.New("identity: user id required")
	}
	if strings.Contains(userID, "_") || strings.Contains(userID, ":") {
		return fmt.Errorf("identity: user id %q contains reserved characters", userID)
	}
	if err := validName(name); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[userID] = name
	return r.save()
}

// Rename updates a user's display name.
func (r *Registry) Rename(userID, newName string) error {
	if err := validName(newName); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	r.users[userID] = newName
	return r.save()
}

// Remove deletes a user. Remaining labels shift down to stay contiguous.
func (r *Registry) Remove(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	delete(r.users, userID)
	return r.save()
}

// LookupLabel resolves a recognizer class label to the enrolled user.
func (r *Registry) LookupLabel(label int) (userID, name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.sortedIDs()
	if label < 0 || label >= len(ids) {
		return "", "", ErrNotFound
	}
	id := ids[label]
	return id, r.users[id], nil
}

// Name returns the display name for a user id.
func (r *Registry) Name(userID string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	name, ok := r.users[userID]
	if !ok {
		return "", ErrNotFound
	}
	return name, nil
}

// List returns every enrolled user with its current label, sorted by label.
func (r *Registry) List() []User {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := r.sortedIDs()
	out := make([]User, 0, len(ids))
	for i, id := range ids {
		out = append(out, User{Label: i, UserID: id, Name: r.users[id]})
	}
	return out
}

// Retrain rewrites the mapping file so labels match the recognizer's class
// ordering after a training run. Labels are positions in the sorted user-id
// set, so this is a plain save.
func (r *Registry) Retrain() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.save()
}
