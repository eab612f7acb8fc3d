package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/yourorg/match-api/internal/match"
)

type Store struct{ DB *sql.DB }

func Open(dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return &Store{DB: db}, nil
}

func (s *Store) Ping(ctx context.Context) error { return s.DB.PingContext(ctx) }

func (s *Store) Migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS pgcrypto;`,
		`CREATE TABLE IF NOT EXISTS clients (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            brokerage_id    UUID,
            full_name       TEXT NOT NULL,
            email           TEXT,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE TABLE IF NOT EXISTS mls_listings (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            mls_number        TEXT NOT NULL,
            street_number     TEXT,
            street_dir_prefix TEXT,
            street_name       TEXT,
            street_suffix     TEXT,
            unit_number       TEXT,
            city              TEXT,
            state             TEXT,
            zip               TEXT,
            title             TEXT,
            status            TEXT NOT NULL DEFAULT 'active',
            property_type     TEXT,
            list_price        NUMERIC,
            beds              NUMERIC,
            baths             NUMERIC,
            sqft              INTEGER,
            lot_sqft          INTEGER,
            year_built        INTEGER,
            raw_payload       JSONB,
            created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at        TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_mls_listings_number ON mls_listings(mls_number);`,
		`CREATE TABLE IF NOT EXISTS mls_listing_photos (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            listing_id    UUID NOT NULL REFERENCES mls_listings(id) ON DELETE CASCADE,
            url           TEXT NOT NULL,
            caption       TEXT,
            sort_order    INTEGER,
            created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_mlsphotos_listing ON mls_listing_photos(listing_id);`,
		`CREATE TABLE IF NOT EXISTS property_recommendations (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            client_id    UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
            listing_id   UUID NOT NULL REFERENCES mls_listings(id) ON DELETE CASCADE,
            score        INTEGER NOT NULL,
            reasons      JSONB NOT NULL DEFAULT '[]',
            status       TEXT NOT NULL DEFAULT 'new',
            agent_note   TEXT,
            created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_recs_client_status ON property_recommendations(client_id, status);`,
		`CREATE TABLE IF NOT EXISTS properties (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            brokerage_id        UUID NOT NULL,
            agent_id            UUID,
            external_listing_id TEXT NOT NULL,
            address             TEXT NOT NULL,
            city                TEXT,
            state               TEXT,
            zip                 TEXT,
            list_price          NUMERIC,
            beds                NUMERIC,
            baths               NUMERIC,
            sqft                INTEGER,
            lot_sqft            INTEGER,
            year_built          INTEGER,
            property_type       TEXT,
            status              TEXT NOT NULL DEFAULT 'active',
            pipeline_stage      TEXT,
            primary_photo_url   TEXT,
            created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_properties_brokerage_external ON properties(brokerage_id, external_listing_id);`,
		`CREATE TABLE IF NOT EXISTS client_properties (
            id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
            client_id       UUID NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
            property_id     UUID NOT NULL REFERENCES properties(id) ON DELETE CASCADE,
            relationship    TEXT NOT NULL,
            interest_level  TEXT,
            is_favorite     BOOLEAN NOT NULL DEFAULT false,
            client_feedback TEXT,
            client_rating   SMALLINT,
            created_at      TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at      TIMESTAMPTZ NOT NULL DEFAULT now()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_client_properties ON client_properties(client_id, property_id);`,
	}
	for _, q := range stmts {
		if _, err := s.DB.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// ─── reads ─────────────────────────────────────────────────────────────────

func (s *Store) GetMatch(ctx context.Context, id string) (*match.Record, error) {
	var (
		rec        match.Record
		statusStr  string
		reasonsRaw []byte
		note       sql.NullString
	)
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, client_id, listing_id, score, reasons, status, agent_note, created_at
        FROM property_recommendations WHERE id=$1`, id,
	).Scan(&rec.ID, &rec.ClientID, &rec.ListingID, &rec.Score, &reasonsRaw, &statusStr, &note, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", match.ErrNotFound, id)
		}
		return nil, err
	}
	rec.Status, err = match.ParseStatus(statusStr)
	if err != nil {
		return nil, err
	}
	if len(reasonsRaw) > 0 {
		if err := json.Unmarshal(reasonsRaw, &rec.Reasons); err != nil {
			return nil, fmt.Errorf("decode reasons for %s: %w", id, err)
		}
	}
	rec.AgentNote = note.String
	return &rec, nil
}

func (s *Store) GetListing(ctx context.Context, id string) (*match.Listing, error) {
	var (
		l                              match.Listing
		num, dir, name, suffix, unit   sql.NullString
		city, state, zip, title, ptype sql.NullString
		price, beds, baths             sql.NullFloat64
		sqft, lot, yearBuilt           sql.NullFloat64
		rawPayload                     []byte
	)
	err := s.DB.QueryRowContext(ctx, `
        SELECT id, mls_number, street_number, street_dir_prefix, street_name, street_suffix, unit_number,
               city, state, zip, title, status, property_type,
               list_price, beds, baths, sqft, lot_sqft, year_built, raw_payload
        FROM mls_listings WHERE id=$1`, id,
	).Scan(&l.ID, &l.MLSNumber, &num, &dir, &name, &suffix, &unit,
		&city, &state, &zip, &title, &l.Status, &ptype,
		&price, &beds, &baths, &sqft, &lot, &yearBuilt, &rawPayload)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("listing %s not found", id)
		}
		return nil, err
	}
	l.Address.StreetNumber = num.String
	l.Address.StreetDirPrefix = dir.String
	l.Address.StreetName = name.String
	l.Address.StreetSuffix = suffix.String
	l.Address.UnitNumber = unit.String
	l.City, l.State, l.Zip = city.String, state.String, zip.String
	l.Title = title.String
	l.PropertyType = ptype.String
	l.ListPrice = fromNullFloat(price)
	l.Beds = fromNullFloat(beds)
	l.Baths = fromNullFloat(baths)
	l.Sqft = fromNullFloat(sqft)
	l.LotSqft = fromNullFloat(lot)
	l.YearBuilt = fromNullFloat(yearBuilt)
	if len(rawPayload) > 0 {
		if err := json.Unmarshal(rawPayload, &l.RawPayload); err != nil {
			return nil, fmt.Errorf("decode raw payload for %s: %w", id, err)
		}
	}
	return &l, nil
}

func (s *Store) ListingPhotos(ctx context.Context, listingID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx, `
        SELECT url FROM mls_listing_photos
        WHERE listing_id=$1
        ORDER BY sort_order NULLS LAST, created_at`, listingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (s *Store) ClientBrokerageID(ctx context.Context, clientID string) (string, error) {
	var brokerage sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT brokerage_id::text FROM clients WHERE id=$1`, clientID,
	).Scan(&brokerage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("client %s not found", clientID)
		}
		return "", err
	}
	return brokerage.String, nil
}

// ListMatchesByClient returns a client's recommendations, best score first.
// statusFilter narrows to one status when non-empty.
func (s *Store) ListMatchesByClient(ctx context.Context, clientID, statusFilter string, limit int) ([]match.Record, error) {
	if limit <= 0 {
		limit = 50
	}
	const base = `
        SELECT id, client_id, listing_id, score, reasons, status, agent_note, created_at
        FROM property_recommendations
        WHERE client_id=$1`
	var (
		rows *sql.Rows
		err  error
	)
	if statusFilter != "" {
		rows, err = s.DB.QueryContext(ctx, base+` AND status=$2 ORDER BY score DESC, created_at DESC LIMIT $3`, clientID, statusFilter, limit)
	} else {
		rows, err = s.DB.QueryContext(ctx, base+` ORDER BY score DESC, created_at DESC LIMIT $2`, clientID, limit)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]match.Record, 0)
	for rows.Next() {
		var (
			rec        match.Record
			statusStr  string
			reasonsRaw []byte
			note       sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.ClientID, &rec.ListingID, &rec.Score, &reasonsRaw, &statusStr, &note, &rec.CreatedAt); err != nil {
			return nil, err
		}
		rec.Status = match.Status(statusStr)
		rec.AgentNote = note.String
		if len(reasonsRaw) > 0 {
			_ = json.Unmarshal(reasonsRaw, &rec.Reasons)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ─── writes ────────────────────────────────────────────────────────────────

func (s *Store) UpsertProperty(ctx context.Context, in match.PropertyUpsert) (string, error) {
	var id string
	err := s.DB.QueryRowContext(ctx, `
        INSERT INTO properties (brokerage_id, agent_id, external_listing_id, address, city, state, zip,
                                list_price, beds, baths, sqft, lot_sqft, year_built,
                                property_type, status, pipeline_stage, primary_photo_url)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
        ON CONFLICT (brokerage_id, external_listing_id)
        DO UPDATE SET address=EXCLUDED.address, city=EXCLUDED.city, state=EXCLUDED.state, zip=EXCLUDED.zip,
                      list_price=EXCLUDED.list_price, beds=EXCLUDED.beds, baths=EXCLUDED.baths,
                      sqft=EXCLUDED.sqft, lot_sqft=EXCLUDED.lot_sqft, year_built=EXCLUDED.year_built,
                      property_type=EXCLUDED.property_type, status=EXCLUDED.status,
                      primary_photo_url=EXCLUDED.primary_photo_url, updated_at=now()
        RETURNING id`,
		in.BrokerageID, nullString(in.AgentID), in.ExternalListingID, in.Address,
		nullString(in.City), nullString(in.State), nullString(in.Zip),
		nullFloat(in.ListPrice), nullFloat(in.Beds), nullFloat(in.Baths),
		nullFloat(in.Sqft), nullFloat(in.LotSqft), nullFloat(in.YearBuilt),
		nullString(in.PropertyType), in.Status, nullString(in.PipelineStage), nullString(in.PrimaryPhotoURL),
	).Scan(&id)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) UpsertClientLink(ctx context.Context, in match.LinkUpsert) error {
	_, err := s.DB.ExecContext(ctx, `
        INSERT INTO client_properties (client_id, property_id, relationship)
        VALUES ($1,$2,$3)
        ON CONFLICT (client_id, property_id)
        DO UPDATE SET relationship=EXCLUDED.relationship, updated_at=now()`,
		in.ClientID, in.PropertyID, in.Relationship,
	)
	return err
}

// TransitionMatch only applies while the row is still new; "did not apply"
// is the caller's signal that another actor got there first.
func (s *Store) TransitionMatch(ctx context.Context, id string, to match.Status, agentNote string) (bool, error) {
	res, err := s.DB.ExecContext(ctx, `
        UPDATE property_recommendations
        SET status=$2, agent_note=COALESCE(NULLIF($3,''), agent_note), updated_at=now()
        WHERE id=$1 AND status='new'`,
		id, string(to), agentNote,
	)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ReplaceListingPhotos swaps the stored photo set for a listing.
func (s *Store) ReplaceListingPhotos(ctx context.Context, listingID string, urls []string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `DELETE FROM mls_listing_photos WHERE listing_id=$1`, listingID); err != nil {
		return err
	}
	for i, u := range urls {
		if u == "" {
			continue
		}
		if _, err = tx.ExecContext(ctx, `INSERT INTO mls_listing_photos (listing_id, url, sort_order) VALUES ($1,$2,$3)`, listingID, u, i); err != nil {
			return err
		}
	}
	err = tx.Commit()
	return err
}

// ListingRef identifies a listing for background photo hydration.
type ListingRef struct {
	ID        string
	MLSNumber string
}

// ListingsMissingPhotos returns listings with no rows in the photo table.
func (s *Store) ListingsMissingPhotos(ctx context.Context, limit int) ([]ListingRef, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.DB.QueryContext(ctx, `
        SELECT l.id, l.mls_number
        FROM mls_listings l
        WHERE NOT EXISTS (SELECT 1 FROM mls_listing_photos p WHERE p.listing_id = l.id)
        ORDER BY l.updated_at DESC
        LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []ListingRef
	for rows.Next() {
		var ref ListingRef
		if err := rows.Scan(&ref.ID, &ref.MLSNumber); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

// ─── null helpers ──────────────────────────────────────────────────────────

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func fromNullFloat(f sql.NullFloat64) *float64 {
	if !f.Valid {
		return nil
	}
	v := f.Float64
	return &v
}
