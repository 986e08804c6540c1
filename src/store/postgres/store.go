// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package postgres is a relational [tracker.Store] on PostgreSQL.
//
// The Store holds one pooled *sql.DB shared by the on-demand request path
// and the reconciliation loop. Inserts use ON CONFLICT DO NOTHING so
// concurrent duplicate inserts are no-ops, and blocking instances cascade
// with their domain through a foreign key.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/H0llyW00dzZ/blockwatch/src/tracker"
)

// foreignKeyViolation is the SQLSTATE of a foreign key violation.
const foreignKeyViolation = "23503"

const schema = `
CREATE TABLE IF NOT EXISTS blocked_sites (
	id                 SERIAL PRIMARY KEY,
	name               TEXT NOT NULL UNIQUE,
	recommendation_url TEXT NOT NULL DEFAULT '',
	decision_date      TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS blocked_domains (
	domain           TEXT PRIMARY KEY,
	first_blocked_on TIMESTAMPTZ NOT NULL,
	added_by         TEXT NOT NULL DEFAULT '',
	site_id          INTEGER REFERENCES blocked_sites (id)
);
CREATE TABLE IF NOT EXISTS blocking_instances (
	domain     TEXT NOT NULL REFERENCES blocked_domains (domain) ON DELETE CASCADE,
	isp        TEXT NOT NULL,
	blocked_on TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (domain, isp)
);
CREATE TABLE IF NOT EXISTS domain_ignorelist (
	domain TEXT PRIMARY KEY
);`

const (
	queryDomains = `SELECT d.domain, d.first_blocked_on, d.added_by, s.name, s.recommendation_url, s.decision_date
FROM blocked_domains d LEFT JOIN blocked_sites s ON s.id = d.site_id
ORDER BY d.domain`

	queryInsertSite = `INSERT INTO blocked_sites (name, recommendation_url, decision_date)
VALUES ($1, $2, $3) ON CONFLICT (name) DO NOTHING`

	querySiteID = `SELECT id FROM blocked_sites WHERE name = $1`

	queryInsertDomain = `INSERT INTO blocked_domains (domain, first_blocked_on, added_by, site_id)
VALUES ($1, $2, $3, $4) ON CONFLICT (domain) DO NOTHING`

	queryDeleteDomain = `DELETE FROM blocked_domains WHERE domain = $1`

	queryInstances = `SELECT domain, isp, blocked_on FROM blocking_instances WHERE domain = $1 ORDER BY isp`

	queryInsertInstance = `INSERT INTO blocking_instances (domain, isp, blocked_on)
VALUES ($1, $2, $3) ON CONFLICT (domain, isp) DO NOTHING`

	queryDeleteInstance = `DELETE FROM blocking_instances WHERE domain = $1 AND isp = $2`

	queryIgnorelist = `SELECT domain FROM domain_ignorelist ORDER BY domain`

	queryInsertIgnored = `INSERT INTO domain_ignorelist (domain) VALUES ($1) ON CONFLICT (domain) DO NOTHING`
)

// Store implements [tracker.Store] on PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ tracker.Store = (*Store)(nil)

// Open connects to dsn with a pool of at most maxConns connections and
// verifies the connection.
func Open(ctx context.Context, dsn string, maxConns int) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening postgres: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: connecting to postgres: %w", err)
	}
	return New(db), nil
}

// New wraps an existing database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Migrate creates the tables if they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: migrating: %w", err)
	}
	return nil
}

// Close implements [tracker.Store].
func (s *Store) Close() error { return s.db.Close() }

// BlockedDomains implements [tracker.Store].
func (s *Store) BlockedDomains(ctx context.Context) ([]tracker.BlockedDomain, error) {
	rows, err := s.db.QueryContext(ctx, queryDomains)
	if err != nil {
		return nil, fmt.Errorf("store: listing domains: %w", err)
	}
	defer rows.Close()

	var domains []tracker.BlockedDomain
	for rows.Next() {
		var (
			d        tracker.BlockedDomain
			siteName sql.NullString
			siteURL  sql.NullString
			decided  sql.NullTime
		)
		if err := rows.Scan(&d.Domain, &d.FirstBlockedOn, &d.AddedBy, &siteName, &siteURL, &decided); err != nil {
			return nil, fmt.Errorf("store: scanning domain: %w", err)
		}
		if siteName.Valid {
			d.Site = &tracker.BlockedSite{
				Name:              siteName.String,
				RecommendationURL: siteURL.String,
			}
			if decided.Valid {
				d.Site.DecisionDate = &decided.Time
			}
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing domains: %w", err)
	}
	return domains, nil
}

// AddBlockedDomain implements [tracker.Store]. A referenced site is
// inserted if no site of that name exists yet.
func (s *Store) AddBlockedDomain(ctx context.Context, d tracker.BlockedDomain) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("store: adding domain %s: %w", d.Domain, err)
	}
	defer func() { _ = tx.Rollback() }()

	var siteID sql.NullInt64
	if d.Site != nil {
		if _, err := tx.ExecContext(ctx, queryInsertSite, d.Site.Name, d.Site.RecommendationURL, d.Site.DecisionDate); err != nil {
			return false, fmt.Errorf("store: adding site %s: %w", d.Site.Name, err)
		}
		if err := tx.QueryRowContext(ctx, querySiteID, d.Site.Name).Scan(&siteID); err != nil {
			return false, fmt.Errorf("store: resolving site %s: %w", d.Site.Name, err)
		}
	}

	res, err := tx.ExecContext(ctx, queryInsertDomain, d.Domain, d.FirstBlockedOn, d.AddedBy, siteID)
	if err != nil {
		return false, fmt.Errorf("store: adding domain %s: %w", d.Domain, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: adding domain %s: %w", d.Domain, err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("store: adding domain %s: %w", d.Domain, err)
	}
	return n > 0, nil
}

// RemoveBlockedDomain implements [tracker.Store].
func (s *Store) RemoveBlockedDomain(ctx context.Context, domain string) error {
	if _, err := s.db.ExecContext(ctx, queryDeleteDomain, domain); err != nil {
		return fmt.Errorf("store: removing domain %s: %w", domain, err)
	}
	return nil
}

// BlockingInstances implements [tracker.Store].
func (s *Store) BlockingInstances(ctx context.Context, domain string) ([]tracker.BlockingInstance, error) {
	rows, err := s.db.QueryContext(ctx, queryInstances, domain)
	if err != nil {
		return nil, fmt.Errorf("store: listing instances of %s: %w", domain, err)
	}
	defer rows.Close()

	var instances []tracker.BlockingInstance
	for rows.Next() {
		var inst tracker.BlockingInstance
		if err := rows.Scan(&inst.Domain, &inst.ISP, &inst.BlockedOn); err != nil {
			return nil, fmt.Errorf("store: scanning instance: %w", err)
		}
		instances = append(instances, inst)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing instances of %s: %w", domain, err)
	}
	return instances, nil
}

// AddBlockingInstance implements [tracker.Store]. It fails with
// [tracker.ErrNotTracked] if the domain is not tracked.
func (s *Store) AddBlockingInstance(ctx context.Context, inst tracker.BlockingInstance) (bool, error) {
	res, err := s.db.ExecContext(ctx, queryInsertInstance, inst.Domain, inst.ISP, inst.BlockedOn)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
			err = tracker.ErrNotTracked
		}
		return false, fmt.Errorf("store: adding instance %s/%s: %w", inst.Domain, inst.ISP, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("store: adding instance %s/%s: %w", inst.Domain, inst.ISP, err)
	}
	return n > 0, nil
}

// RemoveBlockingInstance implements [tracker.Store].
func (s *Store) RemoveBlockingInstance(ctx context.Context, domain, isp string) error {
	if _, err := s.db.ExecContext(ctx, queryDeleteInstance, domain, isp); err != nil {
		return fmt.Errorf("store: removing instance %s/%s: %w", domain, isp, err)
	}
	return nil
}

// Ignorelist implements [tracker.Store].
func (s *Store) Ignorelist(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, queryIgnorelist)
	if err != nil {
		return nil, fmt.Errorf("store: listing ignorelist: %w", err)
	}
	defer rows.Close()

	var domains []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, fmt.Errorf("store: scanning ignorelist: %w", err)
		}
		domains = append(domains, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: listing ignorelist: %w", err)
	}
	return domains, nil
}

// AddIgnored implements [tracker.Store].
func (s *Store) AddIgnored(ctx context.Context, domain string) error {
	if _, err := s.db.ExecContext(ctx, queryInsertIgnored, domain); err != nil {
		return fmt.Errorf("store: ignoring %s: %w", domain, err)
	}
	return nil
}
