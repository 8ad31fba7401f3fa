// Package authority resolves which approvers may vote on which approval tiers.
package authority

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"rwaledger/internal/approval/models"
	id "rwaledger/pkg/domain"
	pkgstrings "rwaledger/pkg/platform/strings"
)

// File is the on-disk role directory.
type File struct {
	Admins     []string `yaml:"admins"`
	Validators []string `yaml:"validators"`
}

// Directory is a static role directory. An identity listed as both admin and
// validator is treated as admin.
type Directory struct {
	mu    sync.RWMutex
	roles map[id.ActorID]models.Role
}

func NewDirectory(admins, validators []string) *Directory {
	d := &Directory{roles: make(map[id.ActorID]models.Role)}
	d.replace(admins, validators)
	return d
}

// LoadFile reads a YAML role directory. Entries from the file are merged
// over the admins and validators passed in.
func LoadFile(path string, admins, validators []string) (*Directory, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read authority file: %w", err)
	}
	var f File
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse authority file %s: %w", path, err)
	}
	return NewDirectory(slices.Concat(admins, f.Admins), slices.Concat(validators, f.Validators)), nil
}

func (d *Directory) replace(admins, validators []string) {
	roles := make(map[id.ActorID]models.Role)
	for _, v := range pkgstrings.Unique(validators, nil) {
		roles[id.ActorID(v)] = models.RoleValidator
	}
	for _, a := range pkgstrings.Unique(admins, nil) {
		roles[id.ActorID(a)] = models.RoleAdmin
	}
	d.mu.Lock()
	d.roles = roles
	d.mu.Unlock()
}

// Grant assigns role to actor, replacing any previous role.
func (d *Directory) Grant(actor id.ActorID, role models.Role) {
	key := id.ActorID(strings.TrimSpace(string(actor)))
	d.mu.Lock()
	defer d.mu.Unlock()
	if role == models.RoleNone {
		delete(d.roles, key)
		return
	}
	d.roles[key] = role
}

func (d *Directory) RoleOf(_ context.Context, actor id.ActorID) (models.Role, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.roles[actor], nil
}

func (d *Directory) IsAuthorizedForTier(ctx context.Context, actor id.ActorID, tier models.Tier) (bool, error) {
	role, err := d.RoleOf(ctx, actor)
	if err != nil {
		return false, err
	}
	return role.EligibleFor(tier), nil
}

// Count reports how many identities hold each role.
func (d *Directory) Count() (admins, validators int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.roles {
		switch r {
		case models.RoleAdmin:
			admins++
		case models.RoleValidator:
			validators++
		}
	}
	return admins, validators
}
