package wallet

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"greenwallet/internal/greencard"
	"greenwallet/pkg/sentinel"
)

// PostgresStore persists the wallet in PostgreSQL. Origins and credentials
// are stored as JSONB documents; the queries below filter on the extracted
// expiration bounds so sweeps stay in SQL.
type PostgresStore struct {
	db          *sql.DB
	clock       Clock
	gracePeriod time.Duration
}

// PostgresOption configures a PostgresStore.
type PostgresOption func(*PostgresStore)

// WithPostgresClock sets the clock function for testability.
func WithPostgresClock(clock Clock) PostgresOption {
	return func(s *PostgresStore) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPostgresGracePeriod keeps fully expired green cards for the extra
// window before the sweep removes them.
func WithPostgresGracePeriod(d time.Duration) PostgresOption {
	return func(s *PostgresStore) {
		s.gracePeriod = d
	}
}

func NewPostgresStore(db *sql.DB, opts ...PostgresOption) *PostgresStore {
	s := &PostgresStore{db: db, clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Migrate creates the wallet tables when they do not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	const schema = `
		CREATE TABLE IF NOT EXISTS event_groups (
			id UUID PRIMARY KEY,
			event_type TEXT NOT NULL,
			provider_identifier TEXT NOT NULL,
			unique_identifier TEXT NOT NULL,
			json_data BYTEA NOT NULL,
			expiry_date TIMESTAMPTZ,
			is_draft BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_event_groups_provider
			ON event_groups (event_type, provider_identifier);

		CREATE TABLE IF NOT EXISTS green_cards (
			id UUID PRIMARY KEY,
			region TEXT NOT NULL,
			origins JSONB NOT NULL,
			credentials JSONB NOT NULL,
			max_origin_expiration TIMESTAMPTZ NOT NULL
		);

		CREATE TABLE IF NOT EXISTS removed_events (
			id UUID PRIMARY KEY,
			origin_type TEXT NOT NULL,
			event_date TIMESTAMPTZ NOT NULL,
			reason TEXT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		);
	`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate wallet schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) StoreEventGroup(ctx context.Context, eventType greencard.OriginType, providerIdentifier string, jsonData []byte, expiryDate *time.Time, isDraft bool) (*EventGroup, error) {
	if providerIdentifier == "" {
		return nil, fmt.Errorf("provider identifier is required")
	}
	if len(jsonData) == 0 {
		return nil, fmt.Errorf("event group payload is required")
	}
	group := EventGroup{
		ID:                 uuid.NewString(),
		Type:               eventType,
		ProviderIdentifier: providerIdentifier,
		UniqueIdentifier:   uniqueIdentifier(providerIdentifier, jsonData),
		JSONData:           jsonData,
		ExpiryDate:         expiryDate,
		IsDraft:            isDraft,
		CreatedAt:          s.clock(),
	}
	const query = `
		INSERT INTO event_groups (id, event_type, provider_identifier, unique_identifier, json_data, expiry_date, is_draft, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err := s.db.ExecContext(ctx, query,
		group.ID, string(group.Type), group.ProviderIdentifier, group.UniqueIdentifier,
		group.JSONData, group.ExpiryDate, group.IsDraft, group.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store event group: %w", err)
	}
	return &group, nil
}

func (s *PostgresStore) ListEventGroups(ctx context.Context) ([]EventGroup, error) {
	const query = `
		SELECT id, event_type, provider_identifier, unique_identifier, json_data, expiry_date, is_draft, created_at
		FROM event_groups
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list event groups: %w", err)
	}
	defer rows.Close()

	var out []EventGroup
	for rows.Next() {
		var group EventGroup
		var eventType string
		var expiry sql.NullTime
		if err := rows.Scan(&group.ID, &eventType, &group.ProviderIdentifier, &group.UniqueIdentifier,
			&group.JSONData, &expiry, &group.IsDraft, &group.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event group: %w", err)
		}
		group.Type = greencard.OriginType(eventType)
		if expiry.Valid {
			t := expiry.Time
			group.ExpiryDate = &t
		}
		out = append(out, group)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RemoveExistingEventGroups(ctx context.Context, eventType greencard.OriginType, providerIdentifier string) (int, error) {
	const query = `
		DELETE FROM event_groups
		WHERE event_type = $1 AND provider_identifier = $2 AND NOT is_draft
	`
	res, err := s.db.ExecContext(ctx, query, string(eventType), providerIdentifier)
	if err != nil {
		return 0, fmt.Errorf("remove existing event groups: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

func (s *PostgresStore) RemoveAllEventGroups(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM event_groups`); err != nil {
		return fmt.Errorf("remove all event groups: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveEventGroup(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM event_groups WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("remove event group: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event group %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) FinalizeDraftEventGroups(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `UPDATE event_groups SET is_draft = FALSE WHERE is_draft`); err != nil {
		return fmt.Errorf("finalize draft event groups: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateEventGroupExpiry(ctx context.Context, id string, expiry time.Time) error {
	res, err := s.db.ExecContext(ctx, `UPDATE event_groups SET expiry_date = $2 WHERE id = $1`, id, expiry)
	if err != nil {
		return fmt.Errorf("update event group expiry: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("event group %s: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) ExpireEventGroups(ctx context.Context, now time.Time) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM event_groups WHERE expiry_date IS NOT NULL AND expiry_date <= $1`, now); err != nil {
		return fmt.Errorf("expire event groups: %w", err)
	}
	return nil
}

func (s *PostgresStore) StoreGreenCards(ctx context.Context, response greencard.Response, converter CredentialConverter) error {
	if converter == nil {
		return fmt.Errorf("credential converter is required")
	}

	type row struct {
		id          string
		region      greencard.Region
		origins     []greencard.Origin
		credentials []Credential
	}
	var replacement []row
	if response.DomesticGreenCard != nil {
		credentials, err := converter.DomesticCredentials(response.DomesticGreenCard.CreateCredentialMessages)
		if err != nil {
			return fmt.Errorf("convert domestic credentials: %w", err)
		}
		replacement = append(replacement, row{
			id: uuid.NewString(), region: greencard.RegionDomestic,
			origins: response.DomesticGreenCard.Origins, credentials: credentials,
		})
	}
	for _, eu := range response.EuGreenCards {
		credential, err := converter.EuCredential([]byte(eu.Credential))
		if err != nil {
			return fmt.Errorf("convert eu credential: %w", err)
		}
		r := row{id: uuid.NewString(), region: greencard.RegionEuropeanUnion, origins: eu.Origins}
		if credential != nil {
			r.credentials = []Credential{*credential}
		}
		replacement = append(replacement, r)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin green card replacement: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM green_cards`); err != nil {
		return fmt.Errorf("clear green cards: %w", err)
	}
	const insert = `
		INSERT INTO green_cards (id, region, origins, credentials, max_origin_expiration)
		VALUES ($1, $2, $3, $4, $5)
	`
	for _, r := range replacement {
		originsJSON, err := json.Marshal(r.origins)
		if err != nil {
			return fmt.Errorf("marshal origins: %w", err)
		}
		credentialsJSON, err := json.Marshal(r.credentials)
		if err != nil {
			return fmt.Errorf("marshal credentials: %w", err)
		}
		var maxExpiration time.Time
		for _, origin := range r.origins {
			if origin.ExpirationTime.After(maxExpiration) {
				maxExpiration = origin.ExpirationTime
			}
		}
		if _, err := tx.ExecContext(ctx, insert, r.id, string(r.region), originsJSON, credentialsJSON, maxExpiration); err != nil {
			return fmt.Errorf("insert green card: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit green card replacement: %w", err)
	}
	return nil
}

func (s *PostgresStore) scanGreenCards(rows *sql.Rows) ([]GreenCard, error) {
	var out []GreenCard
	for rows.Next() {
		var card GreenCard
		var region string
		var originsJSON, credentialsJSON []byte
		if err := rows.Scan(&card.ID, &region, &originsJSON, &credentialsJSON); err != nil {
			return nil, fmt.Errorf("scan green card: %w", err)
		}
		card.Region = greencard.Region(region)
		if err := json.Unmarshal(originsJSON, &card.Origins); err != nil {
			return nil, fmt.Errorf("decode origins: %w", err)
		}
		if err := json.Unmarshal(credentialsJSON, &card.Credentials); err != nil {
			return nil, fmt.Errorf("decode credentials: %w", err)
		}
		out = append(out, card)
	}
	return out, rows.Err()
}

func (s *PostgresStore) ListGreenCards(ctx context.Context) ([]GreenCard, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, region, origins, credentials FROM green_cards`)
	if err != nil {
		return nil, fmt.Errorf("list green cards: %w", err)
	}
	defer rows.Close()
	return s.scanGreenCards(rows)
}

func (s *PostgresStore) GreenCardsWithUnexpiredOrigins(ctx context.Context, now time.Time, ofType *greencard.OriginType) ([]GreenCard, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, region, origins, credentials FROM green_cards WHERE max_origin_expiration > $1`, now)
	if err != nil {
		return nil, fmt.Errorf("query unexpired green cards: %w", err)
	}
	defer rows.Close()
	cards, err := s.scanGreenCards(rows)
	if err != nil {
		return nil, err
	}
	// Type filtering happens on the decoded origins; the SQL predicate only
	// prunes fully expired cards.
	var out []GreenCard
	for _, card := range cards {
		if card.HasUnexpiredOrigins(now, ofType) {
			out = append(out, card)
		}
	}
	return out, nil
}

func (s *PostgresStore) RemoveExpiredGreenCards(ctx context.Context, now time.Time) ([]RemovedGreenCard, error) {
	cutoff := now.Add(-s.gracePeriod)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, region, origins, credentials FROM green_cards WHERE max_origin_expiration <= $1`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("query expired green cards: %w", err)
	}
	defer rows.Close()
	cards, err := s.scanGreenCards(rows)
	if err != nil {
		return nil, err
	}

	removed := []RemovedGreenCard{}
	if len(cards) == 0 {
		return removed, nil
	}
	ids := make([]string, 0, len(cards))
	for _, card := range cards {
		ids = append(ids, card.ID)
		for _, origin := range card.Origins {
			removed = append(removed, RemovedGreenCard{Region: card.Region, OriginType: origin.Type})
		}
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM green_cards WHERE id = ANY($1)`, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("remove expired green cards: %w", err)
	}
	return removed, nil
}

func (s *PostgresStore) StoreRemovedEvent(ctx context.Context, removed RemovedEvent) (*RemovedEvent, error) {
	if removed.ID == "" {
		removed.ID = uuid.NewString()
	}
	if removed.CreatedAt.IsZero() {
		removed.CreatedAt = s.clock()
	}
	const query = `
		INSERT INTO removed_events (id, origin_type, event_date, reason, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query,
		removed.ID, string(removed.Type), removed.EventDate, string(removed.Reason), removed.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("store removed event: %w", err)
	}
	return &removed, nil
}

func (s *PostgresStore) ListRemovedEvents(ctx context.Context) ([]RemovedEvent, error) {
	const query = `
		SELECT id, origin_type, event_date, reason, created_at
		FROM removed_events
		ORDER BY created_at
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list removed events: %w", err)
	}
	defer rows.Close()

	var out []RemovedEvent
	for rows.Next() {
		var removed RemovedEvent
		var originType, reason string
		if err := rows.Scan(&removed.ID, &originType, &removed.EventDate, &reason, &removed.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan removed event: %w", err)
		}
		removed.Type = greencard.OriginType(originType)
		removed.Reason = RemovalReason(reason)
		out = append(out, removed)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RemoveAllRemovedEvents(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM removed_events`); err != nil {
		return fmt.Errorf("remove all removed events: %w", err)
	}
	return nil
}

func (s *PostgresStore) RemoveWallet(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin wallet wipe: %w", err)
	}
	defer tx.Rollback()
	for _, table := range []string{"event_groups", "green_cards", "removed_events"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
			return fmt.Errorf("wipe %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit wallet wipe: %w", err)
	}
	return nil
}

var _ Store = (*PostgresStore)(nil)
