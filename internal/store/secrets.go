package store

import (
	"database/sql"
	"fmt"
	"time"
)

// Secret is a vault-sealed credential, typically a provider API key. Sealed
// holds nonce||ciphertext as produced by vault.Seal.
type Secret struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Sealed      []byte    `json:"-"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func scanSecret(scanner interface {
	Scan(dest ...any) error
}) (*Secret, error) {
	sec := &Secret{}
	var desc *string
	err := scanner.Scan(&sec.ID, &sec.Name, &desc, &sec.Sealed, &sec.CreatedAt, &sec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if desc != nil {
		sec.Description = *desc
	}
	return sec, nil
}

func (s *Store) SaveSecret(sec *Secret) error {
	_, err := s.db.Exec(`
		INSERT INTO secrets (id, name, description, sealed)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			description = excluded.description,
			sealed = excluded.sealed,
			updated_at = CURRENT_TIMESTAMP`,
		sec.ID, sec.Name, sec.Description, sec.Sealed)
	if err != nil {
		return fmt.Errorf("save secret: %w", err)
	}
	return nil
}

// GetSecret looks a secret up by name. Returns nil when no secret exists.
func (s *Store) GetSecret(name string) (*Secret, error) {
	row := s.db.QueryRow(`
		SELECT id, name, description, sealed, created_at, updated_at
		FROM secrets WHERE name = ?`, name)
	sec, err := scanSecret(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get secret: %w", err)
	}
	return sec, nil
}

func (s *Store) ListSecrets() ([]Secret, error) {
	rows, err := s.db.Query(`
		SELECT id, name, description, sealed, created_at, updated_at
		FROM secrets ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var out []Secret
	for rows.Next() {
		sec, err := scanSecret(rows)
		if err != nil {
			return nil, fmt.Errorf("scan secret: %w", err)
		}
		out = append(out, *sec)
	}
	return out, rows.Err()
}

func (s *Store) DeleteSecret(name string) error {
	_, err := s.db.Exec(`DELETE FROM secrets WHERE name = ?`, name)
	return err
}
