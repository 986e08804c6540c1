// Copyright (c) 2026 H0llyW00dzZ All rights reserved.
//
// By accessing or using this software, you agree to be bound by the terms
// of the License Agreement, which you can find at LICENSE files.

// Package bolt is an embedded [tracker.Store] backed by bbolt.
//
// Each record kind lives in its own bucket with JSON values. Blocking
// instances are keyed by domain and ISP joined with a NUL byte so that a
// cursor prefix scan yields every instance of one domain.
package bolt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	bbolt "go.etcd.io/bbolt"

	"github.com/H0llyW00dzZ/blockwatch/src/tracker"
)

var (
	bucketDomains   = []byte("domains")
	bucketInstances = []byte("instances")
	bucketSites     = []byte("sites")
	bucketIgnore    = []byte("ignorelist")
)

// keySep separates domain and ISP in instance keys. It cannot appear in a
// normalized domain.
const keySep = 0x00

// Store implements [tracker.Store] using bbolt.
type Store struct {
	db *bbolt.DB
}

var _ tracker.Store = (*Store)(nil)

// Open opens (or creates) a Bolt database at path and ensures buckets exist.
func Open(path string) (*Store, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}
	if err := db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketDomains, bucketInstances, bucketSites, bucketIgnore} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("store: creating buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close implements [tracker.Store].
func (s *Store) Close() error { return s.db.Close() }

// BlockedDomains implements [tracker.Store]. Domains are returned in
// lexical order.
func (s *Store) BlockedDomains(ctx context.Context) ([]tracker.BlockedDomain, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var domains []tracker.BlockedDomain
	err := s.db.View(func(tx *bbolt.Tx) error {
		sites := tx.Bucket(bucketSites)
		return tx.Bucket(bucketDomains).ForEach(func(_, v []byte) error {
			var d tracker.BlockedDomain
			if err := json.Unmarshal(v, &d); err != nil {
				return err
			}
			if d.Site != nil {
				if raw := sites.Get([]byte(d.Site.Name)); raw != nil {
					if err := json.Unmarshal(raw, d.Site); err != nil {
						return err
					}
				}
			}
			domains = append(domains, d)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing domains: %w", err)
	}
	return domains, nil
}

// AddBlockedDomain implements [tracker.Store]. A referenced site is stored
// if no site of that name exists yet.
func (s *Store) AddBlockedDomain(ctx context.Context, d tracker.BlockedDomain) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var created bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(bucketDomains)
		if b.Get([]byte(d.Domain)) != nil {
			return nil
		}

		if d.Site != nil {
			if err := putIfAbsent(tx.Bucket(bucketSites), []byte(d.Site.Name), d.Site); err != nil {
				return err
			}
		}

		v, err := json.Marshal(d)
		if err != nil {
			return err
		}
		created = true
		return b.Put([]byte(d.Domain), v)
	})
	if err != nil {
		return false, fmt.Errorf("store: adding domain %s: %w", d.Domain, err)
	}
	return created, nil
}

// RemoveBlockedDomain implements [tracker.Store]. The domain's blocking
// instances are removed in the same transaction.
func (s *Store) RemoveBlockedDomain(ctx context.Context, domain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.Bucket(bucketDomains).Delete([]byte(domain)); err != nil {
			return err
		}

		b := tx.Bucket(bucketInstances)
		prefix := instancePrefix(domain)
		var keys [][]byte
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			keys = append(keys, bytes.Clone(k))
		}
		for _, k := range keys {
			if err := b.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("store: removing domain %s: %w", domain, err)
	}
	return nil
}

// BlockingInstances implements [tracker.Store]. Instances are returned in
// lexical ISP order.
func (s *Store) BlockingInstances(ctx context.Context, domain string) ([]tracker.BlockingInstance, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var instances []tracker.BlockingInstance
	err := s.db.View(func(tx *bbolt.Tx) error {
		prefix := instancePrefix(domain)
		c := tx.Bucket(bucketInstances).Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var inst tracker.BlockingInstance
			if err := json.Unmarshal(v, &inst); err != nil {
				return err
			}
			instances = append(instances, inst)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing instances of %s: %w", domain, err)
	}
	return instances, nil
}

// AddBlockingInstance implements [tracker.Store]. It fails with
// [tracker.ErrNotTracked] if the domain is not tracked.
func (s *Store) AddBlockingInstance(ctx context.Context, inst tracker.BlockingInstance) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var created bool
	err := s.db.Update(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketDomains).Get([]byte(inst.Domain)) == nil {
			return tracker.ErrNotTracked
		}

		b := tx.Bucket(bucketInstances)
		key := instanceKey(inst.Domain, inst.ISP)
		if b.Get(key) != nil {
			return nil
		}

		v, err := json.Marshal(inst)
		if err != nil {
			return err
		}
		created = true
		return b.Put(key, v)
	})
	if err != nil {
		return false, fmt.Errorf("store: adding instance %s/%s: %w", inst.Domain, inst.ISP, err)
	}
	return created, nil
}

// RemoveBlockingInstance implements [tracker.Store].
func (s *Store) RemoveBlockingInstance(ctx context.Context, domain, isp string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketInstances).Delete(instanceKey(domain, isp))
	})
	if err != nil {
		return fmt.Errorf("store: removing instance %s/%s: %w", domain, isp, err)
	}
	return nil
}

// Ignorelist implements [tracker.Store].
func (s *Store) Ignorelist(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var domains []string
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIgnore).ForEach(func(k, _ []byte) error {
			domains = append(domains, string(k))
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("store: listing ignorelist: %w", err)
	}
	return domains, nil
}

// AddIgnored implements [tracker.Store].
func (s *Store) AddIgnored(ctx context.Context, domain string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	err := s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketIgnore).Put([]byte(domain), []byte{1})
	})
	if err != nil {
		return fmt.Errorf("store: ignoring %s: %w", domain, err)
	}
	return nil
}

func putIfAbsent(b *bbolt.Bucket, key []byte, value any) error {
	if b.Get(key) != nil {
		return nil
	}
	v, err := json.Marshal(value)
	if err != nil {
		return err
	}
	return b.Put(key, v)
}

func instancePrefix(domain string) []byte {
	return append([]byte(domain), keySep)
}

func instanceKey(domain, isp string) []byte {
	return append(instancePrefix(domain), isp...)
}
