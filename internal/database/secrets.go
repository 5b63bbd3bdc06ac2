package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"git.sr.ht/~jakintosh/keycheck/internal/boundary"
)

func (s *SQLiteStore) SecretStore() boundary.SecretStore {
	return s
}

// PutSecret stores or replaces the sealed value of owner's secret.
func (s *SQLiteStore) PutSecret(
	owner string,
	name string,
	sealed []byte,
) error {
	_, err := s.db.Exec(`
		INSERT INTO secret (owner, name, sealed, updated)
		VALUES (?1, ?2, ?3, ?4)
		ON CONFLICT (owner, name)
		DO UPDATE SET sealed=excluded.sealed, updated=excluded.updated;`,
		owner,
		name,
		sealed,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("couldn't upsert secret: %v", err)
	}
	return nil
}

func (s *SQLiteStore) GetSecret(
	owner string,
	name string,
) (
	[]byte,
	error,
) {
	row := s.db.QueryRow(`
		SELECT sealed
		FROM secret
		WHERE owner=?1 AND name=?2;`,
		owner,
		name,
	)

	var sealed []byte
	if err := row.Scan(&sealed); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, boundary.ErrSecretNotFound
		}
		return nil, fmt.Errorf("couldn't scan secret: %v", err)
	}
	return sealed, nil
}

func (s *SQLiteStore) DeleteSecret(
	owner string,
	name string,
) (
	bool,
	error,
) {
	result, err := s.db.Exec(`
		DELETE FROM secret
		WHERE owner=?1 AND name=?2;`,
		owner,
		name,
	)
	if err != nil {
		return false, fmt.Errorf("couldn't delete from secret: %v", err)
	}
	return !resultsEmpty(result), nil
}

func (s *SQLiteStore) ListSecrets(
	owner string,
) (
	[]string,
	error,
) {
	rows, err := s.db.Query(`
		SELECT name
		FROM secret
		WHERE owner=?1
		ORDER BY name;`,
		owner,
	)
	if err != nil {
		return nil, fmt.Errorf("couldn't query secret: %v", err)
	}
	defer rows.Close()

	names := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("couldn't scan secret name: %v", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
