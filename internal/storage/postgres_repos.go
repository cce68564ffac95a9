package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Avicted/flightpool/internal/access"
	"github.com/Avicted/flightpool/internal/invitation"
	"github.com/Avicted/flightpool/internal/trip"
	"github.com/Avicted/flightpool/internal/user"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const userColumns = `id, email, first_name, last_name, auth_provider, is_admin, created_at, updated_at`

type userRepo struct {
	db *sql.DB
}

func (r *userRepo) Create(ctx context.Context, u user.User) error {
	if u.ID == "" || u.Email == "" || u.CreatedAt.IsZero() {
		return fmt.Errorf("user id, email, and created_at are required")
	}
	_, err := querierFrom(ctx, r.db).ExecContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		u.ID, u.Email, u.FirstName, u.LastName, u.AuthProvider, u.IsAdmin, u.CreatedAt, u.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// Upsert keeps created_at and is_admin of an existing row.
func (r *userRepo) Upsert(ctx context.Context, u user.User) (user.User, error) {
	if u.ID == "" || u.Email == "" || u.CreatedAt.IsZero() {
		return user.User{}, fmt.Errorf("user id, email, and created_at are required")
	}
	row := querierFrom(ctx, r.db).QueryRowContext(ctx, `INSERT INTO users (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			email = EXCLUDED.email,
			first_name = EXCLUDED.first_name,
			last_name = EXCLUDED.last_name,
			updated_at = EXCLUDED.updated_at
		RETURNING `+userColumns,
		u.ID, u.Email, u.FirstName, u.LastName, u.AuthProvider, u.CreatedAt, u.UpdatedAt)
	saved, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailTaken
		}
		return user.User{}, fmt.Errorf("upsert user: %w", err)
	}
	return saved, nil
}

func (r *userRepo) GetByID(ctx context.Context, id user.ID) (user.User, error) {
	row := querierFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("select user by id: %w", err)
	}
	return u, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (user.User, error) {
	row := querierFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, fmt.Errorf("select user by email: %w", err)
	}
	return u, nil
}

func scanUser(row rowScanner) (user.User, error) {
	var u user.User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.AuthProvider, &u.IsAdmin, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

const invitationColumns = `id, code, created_by, max_uses, current_uses, expires_at, revoked_at, used_by, used_at, created_at`

type invitationRepo struct {
	db *sql.DB
}

func (r *invitationRepo) Create(ctx context.Context, c invitation.Code) error {
	if c.ID == "" || c.Code == "" || c.CreatedBy == "" || c.MaxUses < 1 || c.CreatedAt.IsZero() {
		return invitation.ErrInvalidInput
	}
	_, err := querierFrom(ctx, r.db).ExecContext(ctx, `INSERT INTO invitation_codes
		(id, code, created_by, max_uses, current_uses, expires_at, created_at)
		VALUES ($1, $2, $3, $4, 0, $5, $6)`,
		c.ID, c.Code, c.CreatedBy, c.MaxUses, nullTime(c.ExpiresAt), c.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return invitation.ErrDuplicateCode
		}
		return fmt.Errorf("insert invitation code: %w", err)
	}
	return nil
}

func (r *invitationRepo) GetByID(ctx context.Context, id string) (invitation.Code, error) {
	row := querierFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitation_codes WHERE id = $1`, id)
	return r.scanOne(row, "select invitation code by id")
}

func (r *invitationRepo) GetByCode(ctx context.Context, code string) (invitation.Code, error) {
	row := querierFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitation_codes WHERE code = $1`, code)
	return r.scanOne(row, "select invitation code")
}

func (r *invitationRepo) List(ctx context.Context) ([]invitation.Code, error) {
	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, `SELECT `+invitationColumns+`
		FROM invitation_codes ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("list invitation codes: %w", err)
	}
	defer rows.Close()

	codes := make([]invitation.Code, 0)
	for rows.Next() {
		c, err := scanInvitation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan invitation code: %w", err)
		}
		codes = append(codes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate invitation codes: %w", err)
	}
	return codes, nil
}

// Revoke keeps the first revocation time on repeated calls.
func (r *invitationRepo) Revoke(ctx context.Context, id string, now time.Time) (invitation.Code, error) {
	if id == "" {
		return invitation.Code{}, invitation.ErrInvalidInput
	}
	row := querierFrom(ctx, r.db).QueryRowContext(ctx, `UPDATE invitation_codes
		SET revoked_at = COALESCE(revoked_at, $2)
		WHERE id = $1
		RETURNING `+invitationColumns, id, now)
	return r.scanOne(row, "revoke invitation code")
}

// Redeem consumes one use in a single guarded UPDATE. The first use also
// records who redeemed it and when. When no row qualifies the current row
// is read back to report why.
func (r *invitationRepo) Redeem(ctx context.Context, id string, userID user.ID, now time.Time) (invitation.Code, error) {
	if id == "" || userID == "" {
		return invitation.Code{}, invitation.ErrInvalidInput
	}
	q := querierFrom(ctx, r.db)
	row := q.QueryRowContext(ctx, `UPDATE invitation_codes
		SET current_uses = current_uses + 1,
			used_by = CASE WHEN current_uses = 0 THEN $2 ELSE used_by END,
			used_at = CASE WHEN current_uses = 0 THEN $3 ELSE used_at END
		WHERE id = $1
			AND revoked_at IS NULL
			AND (expires_at IS NULL OR expires_at > $3)
			AND current_uses < max_uses
		RETURNING `+invitationColumns, id, userID, now)
	c, err := scanInvitation(row)
	if err == nil {
		return c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return invitation.Code{}, fmt.Errorf("redeem invitation code: %w", err)
	}

	current, err := r.scanOne(q.QueryRowContext(ctx, `SELECT `+invitationColumns+` FROM invitation_codes WHERE id = $1`, id), "select invitation code by id")
	if err != nil {
		return invitation.Code{}, err
	}
	if err := invitation.Evaluate(&current, now).Err(); err != nil {
		return invitation.Code{}, err
	}
	return invitation.Code{}, fmt.Errorf("redeem invitation code: row changed concurrently")
}

func (r *invitationRepo) scanOne(row rowScanner, op string) (invitation.Code, error) {
	c, err := scanInvitation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return invitation.Code{}, invitation.ErrNotFound
		}
		return invitation.Code{}, fmt.Errorf("%s: %w", op, err)
	}
	return c, nil
}

func scanInvitation(row rowScanner) (invitation.Code, error) {
	var (
		c         invitation.Code
		expiresAt sql.NullTime
		revokedAt sql.NullTime
		usedBy    sql.NullString
		usedAt    sql.NullTime
	)
	if err := row.Scan(&c.ID, &c.Code, &c.CreatedBy, &c.MaxUses, &c.CurrentUses, &expiresAt, &revokedAt, &usedBy, &usedAt, &c.CreatedAt); err != nil {
		return invitation.Code{}, err
	}
	c.ExpiresAt = timePtr(expiresAt)
	c.RevokedAt = timePtr(revokedAt)
	c.UsedAt = timePtr(usedAt)
	if usedBy.Valid {
		id := user.ID(usedBy.String)
		c.UsedBy = &id
	}
	return c, nil
}

const restrictionsKey = "oauth_restrictions"

type restrictionsDoc struct {
	AllowedDomains    []string `json:"allowed_domains"`
	AllowedGitHubOrgs []string `json:"allowed_github_orgs"`
}

// settingsRepo keeps one JSON document per setting key.
type settingsRepo struct {
	db  *sql.DB
	now func() time.Time
}

func (r *settingsRepo) GetRestrictions(ctx context.Context) (access.Restrictions, error) {
	var raw []byte
	err := querierFrom(ctx, r.db).QueryRowContext(ctx, `SELECT value FROM settings WHERE key = $1`, restrictionsKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return access.Restrictions{}, access.ErrNotFound
		}
		return access.Restrictions{}, fmt.Errorf("select settings: %w", err)
	}
	var doc restrictionsDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return access.Restrictions{}, fmt.Errorf("decode settings: %w", err)
	}
	return access.Restrictions{AllowedDomains: doc.AllowedDomains, AllowedGitHubOrgs: doc.AllowedGitHubOrgs}, nil
}

func (r *settingsRepo) SaveRestrictions(ctx context.Context, rs access.Restrictions) error {
	data, err := json.Marshal(restrictionsDoc{AllowedDomains: rs.AllowedDomains, AllowedGitHubOrgs: rs.AllowedGitHubOrgs})
	if err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}
	_, err = querierFrom(ctx, r.db).ExecContext(ctx, `INSERT INTO settings (key, value, updated_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		restrictionsKey, string(data), r.now().UTC())
	if err != nil {
		return fmt.Errorf("upsert settings: %w", err)
	}
	return nil
}

const tripColumns = `id, user_id, direction, airport, flight_number, flight_time, terminal, notes, seats, created_at, updated_at`

type tripRepo struct {
	db *sql.DB
}

func (r *tripRepo) Create(ctx context.Context, t trip.Trip) error {
	if t.ID == "" || t.UserID == "" || t.CreatedAt.IsZero() {
		return fmt.Errorf("trip id, user_id, and created_at are required")
	}
	_, err := querierFrom(ctx, r.db).ExecContext(ctx, `INSERT INTO trips (`+tripColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		t.ID, t.UserID, t.Direction, t.Airport, t.FlightNumber, t.FlightTime, t.Terminal, t.Notes, t.Seats, t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert trip: %w", err)
	}
	return nil
}

func (r *tripRepo) Get(ctx context.Context, id trip.ID) (trip.Trip, error) {
	row := querierFrom(ctx, r.db).QueryRowContext(ctx, `SELECT `+tripColumns+` FROM trips WHERE id = $1`, id)
	t, err := scanTrip(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return trip.Trip{}, trip.ErrNotFound
		}
		return trip.Trip{}, fmt.Errorf("select trip: %w", err)
	}
	return t, nil
}

func (r *tripRepo) List(ctx context.Context, f trip.Filter) ([]trip.Trip, error) {
	var (
		where []string
		args  []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(clause, len(args)))
	}
	if f.Airport != "" {
		add("airport = $%d", f.Airport)
	}
	if f.Direction != "" {
		add("direction = $%d", f.Direction)
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if !f.From.IsZero() {
		add("flight_time >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("flight_time <= $%d", f.To)
	}

	query := `SELECT ` + tripColumns + ` FROM trips`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY flight_time ASC, id`

	rows, err := querierFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trips: %w", err)
	}
	defer rows.Close()

	trips := make([]trip.Trip, 0)
	for rows.Next() {
		t, err := scanTrip(rows)
		if err != nil {
			return nil, fmt.Errorf("scan trip: %w", err)
		}
		trips = append(trips, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trips: %w", err)
	}
	return trips, nil
}

func (r *tripRepo) Update(ctx context.Context, t trip.Trip) error {
	res, err := querierFrom(ctx, r.db).ExecContext(ctx, `UPDATE trips
		SET direction = $2, airport = $3, flight_number = $4, flight_time = $5,
			terminal = $6, notes = $7, seats = $8, updated_at = $9
		WHERE id = $1`,
		t.ID, t.Direction, t.Airport, t.FlightNumber, t.FlightTime, t.Terminal, t.Notes, t.Seats, t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update trip: %w", err)
	}
	return expectOneRow(res, trip.ErrNotFound)
}

func (r *tripRepo) Delete(ctx context.Context, id trip.ID) error {
	res, err := querierFrom(ctx, r.db).ExecContext(ctx, `DELETE FROM trips WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete trip: %w", err)
	}
	return expectOneRow(res, trip.ErrNotFound)
}

func scanTrip(row rowScanner) (trip.Trip, error) {
	var t trip.Trip
	err := row.Scan(&t.ID, &t.UserID, &t.Direction, &t.Airport, &t.FlightNumber, &t.FlightTime,
		&t.Terminal, &t.Notes, &t.Seats, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func expectOneRow(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

func nullTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
