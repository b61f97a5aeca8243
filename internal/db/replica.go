// Package db reads department tables from a PostgreSQL replica of the
// backend's Salesforce objects.
package db

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/needha-erp/erpdesk/internal/erp"
	"github.com/needha-erp/erpdesk/internal/grid"
)

// Replica holds the connection pool to the read replica
type Replica struct {
	pool *pgxpool.Pool
	mu   sync.RWMutex
}

// sessionSettings are applied to every new connection. The replica is only
// ever read.
var sessionSettings = []string{
	"SET default_transaction_read_only = on",
	"SET statement_timeout = '30s'",
}

// ConnectReplica opens a small pool to the replica and pings it
func ConnectReplica(ctx context.Context, url string) (*Replica, error) {
	config, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("invalid connection URL: %w", err)
	}

	// One query per department at most, so a handful of connections is plenty
	config.MaxConns = 8
	config.MinConns = 0
	config.MaxConnLifetime = time.Hour
	config.MaxConnIdleTime = 5 * time.Minute

	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for _, s := range sessionSettings {
			if _, err := conn.Exec(ctx, s); err != nil {
				return fmt.Errorf("failed to apply %q on new connection: %w", s, err)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to connect: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping replica: %w", err)
	}

	return &Replica{pool: pool}, nil
}

// Close closes the connection pool
func (r *Replica) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pool != nil {
		r.pool.Close()
		r.pool = nil
	}
}

func (r *Replica) getPool() (*pgxpool.Pool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.pool == nil {
		return nil, fmt.Errorf("replica connection is closed")
	}
	return r.pool, nil
}

// selectQuery builds the SELECT for a department's replica table.
func selectQuery(dept erp.Department) (string, error) {
	if dept.Object == "" {
		return "", fmt.Errorf("department %s is not replicated", dept.Name)
	}
	cols := make([]string, 0, len(dept.Fields))
	seen := make(map[string]bool, len(dept.Fields))
	for _, f := range dept.Fields {
		c := f.Column
		if c == "" {
			c = f.Source
		}
		if seen[c] {
			continue
		}
		seen[c] = true
		cols = append(cols, pgx.Identifier{c}.Sanitize())
	}
	return "SELECT " + strings.Join(cols, ", ") + " FROM " + pgx.Identifier{dept.Object}.Sanitize(), nil
}

// FetchRows reads every record of a department from the replica.
func (r *Replica) FetchRows(ctx context.Context, dept erp.Department) ([]grid.Row, error) {
	pool, err := r.getPool()
	if err != nil {
		return nil, err
	}
	query, err := selectQuery(dept)
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", dept.Object, err)
	}
	records, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", dept.Object, err)
	}

	out := make([]grid.Row, 0, len(records))
	for _, rec := range records {
		for k, v := range rec {
			rec[k] = normalizeValue(v)
		}
		out = append(out, dept.MapReplicaRecord(rec))
	}
	return out, nil
}

// normalizeValue converts driver types into the plain values the REST
// client produces, so rows from either source sort and search alike.
func normalizeValue(v any) any {
	switch x := v.(type) {
	case pgtype.Numeric:
		if !x.Valid {
			return nil
		}
		f, err := x.Float64Value()
		if err != nil || !f.Valid {
			return nil
		}
		return f.Float64
	case *big.Int:
		f, _ := new(big.Float).SetInt(x).Float64()
		return f
	case []byte:
		return string(x)
	case int16:
		return float64(x)
	case int32:
		return float64(x)
	case int64:
		return float64(x)
	case float32:
		return float64(x)
	case pgtype.Text:
		if !x.Valid {
			return nil
		}
		return x.String
	default:
		return v
	}
}
