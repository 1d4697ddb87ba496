package rbac

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/backoffice/backoffice/internal/platform/db"
	"github.com/backoffice/backoffice/internal/shared"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Catalog is the declarative list of permissions and the role grants seeded at install time.
type Catalog struct {
	Permissions []CatalogPermission `yaml:"permissions"`
	Grants      map[string][]string `yaml:"grants"`
}

// CatalogPermission describes one permission entry of the catalog.
type CatalogPermission struct {
	Code        string `yaml:"code"`
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Category    string `yaml:"category"`
}

// DefaultCatalog returns the catalog shipped with the binary.
func DefaultCatalog() (Catalog, error) {
	return ParseCatalog(strings.NewReader(string(defaultCatalog)))
}

// ParseCatalog decodes and validates a YAML catalog.
func ParseCatalog(r io.Reader) (Catalog, error) {
	var c Catalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&c); err != nil {
		return Catalog{}, fmt.Errorf("rbac: decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Catalog{}, err
	}
	return c, nil
}

// Validate checks that codes are unique upper-case keys and that grants only reference known codes.
func (c Catalog) Validate() error {
	known := make(map[string]struct{}, len(c.Permissions))
	for i, p := range c.Permissions {
		code := strings.TrimSpace(p.Code)
		if code == "" {
			return fmt.Errorf("rbac: catalog permission %d: code is required", i)
		}
		if code != strings.ToUpper(code) {
			return fmt.Errorf("rbac: catalog permission %s: code must be upper case", code)
		}
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("rbac: catalog permission %s: name is required", code)
		}
		if _, dup := known[code]; dup {
			return fmt.Errorf("rbac: catalog permission %s: duplicate code", code)
		}
		known[code] = struct{}{}
	}
	for slug, codes := range c.Grants {
		for _, code := range codes {
			if _, ok := known[strings.TrimSpace(code)]; !ok {
				return fmt.Errorf("rbac: catalog grant %s: %w: %s", slug, ErrUnknownPermission, code)
			}
		}
	}
	return nil
}

// MissingCore lists the core administrative permissions the catalog does not define.
func (c Catalog) MissingCore() []string {
	defined := make(map[string]struct{}, len(c.Permissions))
	for _, p := range c.Permissions {
		defined[strings.TrimSpace(p.Code)] = struct{}{}
	}
	var missing []string
	for _, code := range shared.CoreScopes() {
		if _, ok := defined[code]; !ok {
			missing = append(missing, code)
		}
	}
	return missing
}

// SeedResult summarises an UpsertCatalog run.
type SeedResult struct {
	Permissions int
	Grants      int
	MissingRole []string
}

// UpsertCatalog inserts or updates every catalog permission and adds the listed
// grants. Existing grants are never revoked. Roles absent from the store are reported, not created.
func (s *Service) UpsertCatalog(ctx context.Context, c Catalog) (SeedResult, error) {
	if err := c.Validate(); err != nil {
		return SeedResult{}, err
	}
	var result SeedResult
	err := db.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		for _, p := range c.Permissions {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO permissions (code, name, description, category)
				VALUES ($1, $2, $3, $4)
				ON CONFLICT (code) DO UPDATE
				SET name = EXCLUDED.name, description = EXCLUDED.description, category = EXCLUDED.category`,
				strings.TrimSpace(p.Code), p.Name, p.Description, p.Category); err != nil {
				return err
			}
			result.Permissions++
		}
		for _, slug := range sortedKeys(c.Grants) {
			var roleID int64
			err := tx.QueryRowContext(ctx, `SELECT id_role FROM roles WHERE role_slug = $1`, slug).Scan(&roleID)
			if errors.Is(err, sql.ErrNoRows) {
				result.MissingRole = append(result.MissingRole, slug)
				continue
			}
			if err != nil {
				return err
			}
			for _, code := range normalizeCodes(c.Grants[slug]) {
				res, err := tx.ExecContext(ctx, `
					INSERT INTO role_permissions (id_role, id_permission)
					SELECT $1, id_permission FROM permissions WHERE code = $2
					ON CONFLICT DO NOTHING`, roleID, code)
				if err != nil {
					return err
				}
				n, err := res.RowsAffected()
				if err != nil {
					return err
				}
				result.Grants += int(n)
			}
		}
		return nil
	})
	if err != nil {
		return SeedResult{}, storeError("upsert catalog", err)
	}
	return result, nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
