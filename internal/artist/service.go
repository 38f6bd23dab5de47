package artist

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tinygems/tinygems/internal/provider"
	"github.com/tinygems/tinygems/internal/resolve"
)

// artistColumns is the ordered list of columns for SELECT queries.
const artistColumns = `id, name, location, gender, genres, description, avatar_url,
	external_links, combined_popularity, created_at`

// Service stores finalized profiles. It implements resolve.Store.
type Service struct {
	db *sql.DB
}

// NewService creates an artist service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

var _ resolve.Store = (*Service)(nil)

// Save inserts a finalized profile with one row per connected platform and
// returns its ID. A profile without an ID gets a new UUID.
func (s *Service) Save(ctx context.Context, p *resolve.Profile) (string, error) {
	id := p.ID
	if id == "" {
		id = uuid.New().String()
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	now := time.Now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	_, err = tx.ExecContext(ctx, `
		INSERT INTO artists (
			id, name, location, gender, genres, description, avatar_url,
			external_links, combined_popularity, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, p.Name, p.Location, p.Gender, MarshalStringSlice(p.Genres), p.Description, p.AvatarURL,
		marshalJSON(p.ExternalLinks, "{}"), p.CombinedPopularity,
		created.Format(time.RFC3339Nano), now.Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("creating artist: %w", err)
	}

	for _, pl := range p.Connected() {
		var popularity sql.NullFloat64
		if v, ok := p.PlatformPopularity[pl]; ok {
			popularity = sql.NullFloat64{Float64: v, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO artist_platforms (artist_id, platform, platform_id, url, audience, popularity)
			VALUES (?, ?, ?, ?, ?, ?)`,
			id, string(pl), p.PlatformIDs[pl], p.Links[pl], marshalJSON(p.Audience[pl], "{}"), popularity,
		)
		if err != nil {
			return "", fmt.Errorf("creating artist platform %s: %w", pl, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing artist: %w", err)
	}
	return id, nil
}

// GetByID retrieves a profile by primary key.
func (s *Service) GetByID(ctx context.Context, id string) (*resolve.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = ?`, id)
	p, err := scanProfile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by id: %w", err)
	}
	if err := s.loadPlatforms(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// GetByPlatformID finds the profile connected to a platform artist ID.
// It returns nil, nil when there is none.
func (s *Service) GetByPlatformID(ctx context.Context, platform provider.Platform, platformID string) (*resolve.Profile, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT artist_id FROM artist_platforms WHERE platform = ? AND platform_id = ? LIMIT 1`,
		string(platform), platformID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting artist by %s id: %w", platform, err)
	}
	return s.GetByID(ctx, id)
}

// List returns a page of profiles and the total count.
func (s *Service) List(ctx context.Context, params ListParams) ([]resolve.Profile, int, error) {
	params.Validate()
	where, args := buildWhereClause(params)

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM artists"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting artists: %w", err)
	}

	orderCol := params.Sort
	if params.Sort == "name" {
		orderCol += " COLLATE NOCASE"
	}
	if params.Order == "desc" {
		orderCol += " DESC"
	} else {
		orderCol += " ASC"
	}
	offset := (params.Page - 1) * params.PageSize
	query := `SELECT ` + artistColumns + ` FROM artists` + where + //nolint:gosec // G202: orderCol is from validated params, not user input
		` ORDER BY ` + orderCol + `, id ASC LIMIT ? OFFSET ?`
	args = append(args, params.PageSize, offset)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing artists: %w", err)
	}
	var profiles []resolve.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			_ = rows.Close()
			return nil, 0, fmt.Errorf("scanning artist row: %w", err)
		}
		profiles = append(profiles, *p)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, 0, fmt.Errorf("iterating artist rows: %w", err)
	}
	_ = rows.Close()

	// Rows must be closed first: the pool holds a single connection.
	for i := range profiles {
		if err := s.loadPlatforms(ctx, &profiles[i]); err != nil {
			return nil, 0, err
		}
	}
	return profiles, total, nil
}

// Delete removes a profile and its platform rows.
func (s *Service) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM artists WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting artist: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

func (s *Service) loadPlatforms(ctx context.Context, p *resolve.Profile) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT platform, platform_id, url, audience, popularity FROM artist_platforms WHERE artist_id = ?`, p.ID)
	if err != nil {
		return fmt.Errorf("loading artist platforms: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	p.Links = make(map[provider.Platform]string)
	p.PlatformIDs = make(map[provider.Platform]string)
	p.Audience = make(map[provider.Platform]provider.AudienceStats)
	p.PlatformPopularity = make(map[provider.Platform]float64)
	for rows.Next() {
		var (
			platform, platformID, link, audience string
			popularity                           sql.NullFloat64
		)
		if err := rows.Scan(&platform, &platformID, &link, &audience, &popularity); err != nil {
			return fmt.Errorf("scanning artist platform: %w", err)
		}
		pl := provider.Platform(platform)
		p.Links[pl] = link
		p.PlatformIDs[pl] = platformID
		var stats provider.AudienceStats
		unmarshalJSON(audience, &stats)
		p.Audience[pl] = stats
		if popularity.Valid {
			p.PlatformPopularity[pl] = popularity.Float64
		}
	}
	return rows.Err()
}

func scanProfile(row interface{ Scan(...any) error }) (*resolve.Profile, error) {
	var (
		p                      resolve.Profile
		genres, external, when string
	)
	err := row.Scan(&p.ID, &p.Name, &p.Location, &p.Gender, &genres, &p.Description, &p.AvatarURL,
		&external, &p.CombinedPopularity, &when)
	if err != nil {
		return nil, err
	}
	p.Genres = UnmarshalStringSlice(genres)
	if p.Genres == nil {
		p.Genres = []string{}
	}
	unmarshalJSON(external, &p.ExternalLinks)
	if len(p.ExternalLinks) == 0 {
		p.ExternalLinks = nil
	}
	p.CreatedAt = parseTime(when)
	return &p, nil
}

func buildWhereClause(params ListParams) (string, []any) {
	var conds []string
	var args []any
	if q := strings.TrimSpace(params.Search); q != "" {
		conds = append(conds, "name LIKE ? ESCAPE '\\'")
		args = append(args, "%"+escapeLike(q)+"%")
	}
	if params.Platform != "" {
		conds = append(conds, "id IN (SELECT artist_id FROM artist_platforms WHERE platform = ?)")
		args = append(args, params.Platform)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
