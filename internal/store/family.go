package store

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/splitnest/splitnest/internal/model"
)

// ErrRosterIncomplete is returned when a family does not have exactly two
// members flagged as custodians.
var ErrRosterIncomplete = errors.New("family does not have exactly two custodians")

type FamilyStore struct {
	db *sql.DB
}

func NewFamilyStore(db *sql.DB) *FamilyStore {
	return &FamilyStore{db: db}
}

func (s *FamilyStore) CreateFamily(name string) (*model.Family, error) {
	result, err := s.db.Exec(`INSERT INTO families (name) VALUES (?)`, name)
	if err != nil {
		return nil, fmt.Errorf("insert family: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetFamily(id)
}

func (s *FamilyStore) GetFamily(id int64) (*model.Family, error) {
	var f model.Family
	err := s.db.QueryRow(
		`SELECT id, name, created_at, updated_at FROM families WHERE id = ?`, id,
	).Scan(&f.ID, &f.Name, &f.CreatedAt, &f.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family: %w", err)
	}
	return &f, nil
}

func (s *FamilyStore) CreateMember(familyID int64, name, color, avatarEmoji string, isCustodian bool) (*model.FamilyMember, error) {
	var custodianInt int
	if isCustodian {
		custodianInt = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO family_members (family_id, name, color, avatar_emoji, is_custodian, sort_order)
		 VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(sort_order), -1) + 1 FROM family_members WHERE family_id = ?))`,
		familyID, name, color, avatarEmoji, custodianInt, familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("insert family member: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}

	return s.GetMember(id)
}

func (s *FamilyStore) GetMember(id int64) (*model.FamilyMember, error) {
	row := s.db.QueryRow(
		`SELECT id, family_id, name, color, avatar_emoji, is_custodian, sort_order, created_at, updated_at
		 FROM family_members WHERE id = ?`, id,
	)
	m, err := scanMember(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query family member: %w", err)
	}
	return m, nil
}

func (s *FamilyStore) ListMembers(familyID int64) ([]model.FamilyMember, error) {
	rows, err := s.db.Query(
		`SELECT id, family_id, name, color, avatar_emoji, is_custodian, sort_order, created_at, updated_at
		 FROM family_members WHERE family_id = ? ORDER BY sort_order ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list family members: %w", err)
	}
	defer rows.Close()

	var members []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan family member: %w", err)
		}
		members = append(members, *m)
	}
	return members, rows.Err()
}

// Custodians returns the family's two designated custodians, ordered by sort
// order. Returns ErrRosterIncomplete unless exactly two members carry the
// custodian flag.
func (s *FamilyStore) Custodians(familyID int64) ([]model.FamilyMember, error) {
	rows, err := s.db.Query(
		`SELECT id, family_id, name, color, avatar_emoji, is_custodian, sort_order, created_at, updated_at
		 FROM family_members WHERE family_id = ? AND is_custodian = 1 ORDER BY sort_order ASC, id ASC`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list custodians: %w", err)
	}
	defer rows.Close()

	var custodians []model.FamilyMember
	for rows.Next() {
		m, err := scanMember(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan custodian: %w", err)
		}
		custodians = append(custodians, *m)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(custodians) != 2 {
		return nil, ErrRosterIncomplete
	}
	return custodians, nil
}

// SetCustodian updates the custodian flag on a member.
func (s *FamilyStore) SetCustodian(id int64, isCustodian bool) (*model.FamilyMember, error) {
	var custodianInt int
	if isCustodian {
		custodianInt = 1
	}

	result, err := s.db.Exec(
		`UPDATE family_members SET is_custodian = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		custodianInt, id,
	)
	if err != nil {
		return nil, fmt.Errorf("set custodian flag: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return nil, nil
	}

	return s.GetMember(id)
}

func scanMember(scan func(...any) error) (*model.FamilyMember, error) {
	var m model.FamilyMember
	var custodianInt int

	err := scan(&m.ID, &m.FamilyID, &m.Name, &m.Color, &m.AvatarEmoji, &custodianInt, &m.SortOrder, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.IsCustodian = custodianInt != 0
	return &m, nil
}
