package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"objectloader/internal/domain"
)

// pgConn is the minimal subset of *pgx.Conn the backend uses. The seam
// lets tests inject a fake that records statements and serves canned rows
// without a network connection.
type pgConn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close(ctx context.Context) error
}

// Postgres is the primary backend. One upsert statement per chunk; the
// statement itself computes the classification, so concurrent ingestions
// over overlapping identifiers cannot race a separate pre-read.
type Postgres struct {
	conn pgConn
}

// NewPostgres connects via pgx and wraps the connection.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	c, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Postgres{conn: c}, nil
}

// newPostgresFromConn wires a fake connection. Test-only constructor.
func newPostgresFromConn(c pgConn) *Postgres { return &Postgres{conn: c} }

const objectsDDL = `
CREATE TABLE IF NOT EXISTS objects (
	uuid         TEXT PRIMARY KEY,
	register_id  TEXT NOT NULL,
	schema_id    TEXT NOT NULL,
	owner        TEXT NOT NULL DEFAULT '',
	organisation TEXT NOT NULL DEFAULT '',
	name         TEXT NOT NULL DEFAULT '',
	description  TEXT NOT NULL DEFAULT '',
	summary      TEXT NOT NULL DEFAULT '',
	image        TEXT NOT NULL DEFAULT '',
	slug         TEXT NOT NULL DEFAULT '',
	published    TEXT NOT NULL DEFAULT '',
	depublished  TEXT NOT NULL DEFAULT '',
	relations    JSONB NOT NULL DEFAULT '{}'::jsonb,
	payload      JSONB NOT NULL DEFAULT '{}'::jsonb,
	hash         BIGINT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS objects_register_schema_idx ON objects (register_id, schema_id);`

// EnsureSchema creates the objects table and its index if missing.
func (p *Postgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.conn.Exec(ctx, objectsDDL); err != nil {
		return fmt.Errorf("ensure objects table: %w", err)
	}
	return nil
}

// upsertSQL performs the chunk write and classification in one statement.
// The conflict update is guarded by a hash comparison, so a row whose
// content matches what is stored is not rewritten and is absent from
// RETURNING: that absence is the unchanged signal. For returned rows,
// xmax = 0 distinguishes freshly inserted tuples from updated ones.
const upsertSQL = `
INSERT INTO objects (
	uuid, register_id, schema_id, owner, organisation,
	name, description, summary, image, slug,
	published, depublished, relations, payload, hash, updated_at
)
SELECT u.uuid, u.register_id, u.schema_id, u.owner, u.organisation,
       u.name, u.description, u.summary, u.image, u.slug,
       u.published, u.depublished, u.relations, u.payload, u.hash, now()
FROM unnest(
	$1::text[],  $2::text[],  $3::text[],  $4::text[],  $5::text[],
	$6::text[],  $7::text[],  $8::text[],  $9::text[],  $10::text[],
	$11::text[], $12::text[], $13::jsonb[], $14::jsonb[], $15::bigint[]
) AS u(uuid, register_id, schema_id, owner, organisation,
       name, description, summary, image, slug,
       published, depublished, relations, payload, hash)
ON CONFLICT (uuid) DO UPDATE SET
	register_id  = EXCLUDED.register_id,
	schema_id    = EXCLUDED.schema_id,
	owner        = EXCLUDED.owner,
	organisation = EXCLUDED.organisation,
	name         = EXCLUDED.name,
	description  = EXCLUDED.description,
	summary      = EXCLUDED.summary,
	image        = EXCLUDED.image,
	slug         = EXCLUDED.slug,
	published    = EXCLUDED.published,
	depublished  = EXCLUDED.depublished,
	relations    = EXCLUDED.relations,
	payload      = EXCLUDED.payload,
	hash         = EXCLUDED.hash,
	updated_at   = now()
WHERE objects.hash IS DISTINCT FROM EXCLUDED.hash
RETURNING uuid, (xmax = 0) AS inserted`

// BulkUpsert implements Store.
func (p *Postgres) BulkUpsert(ctx context.Context, objs []domain.Object) ([]Outcome, error) {
	if len(objs) == 0 {
		return nil, nil
	}
	cols, err := columnArrays(objs)
	if err != nil {
		return nil, err
	}
	rows, err := p.conn.Query(ctx, upsertSQL, cols...)
	if err != nil {
		return nil, fmt.Errorf("bulk upsert: %w", err)
	}
	defer rows.Close()

	written := make(map[string]domain.WriteState, len(objs))
	for rows.Next() {
		var uuid string
		var inserted bool
		if err := rows.Scan(&uuid, &inserted); err != nil {
			return nil, fmt.Errorf("scan upsert outcome: %w", err)
		}
		if inserted {
			written[uuid] = domain.StateCreated
		} else {
			written[uuid] = domain.StateUpdated
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bulk upsert: %w", err)
	}

	outcomes := make([]Outcome, 0, len(objs))
	for _, o := range objs {
		state, ok := written[o.UUID]
		if !ok {
			state = domain.StateUnchanged
		}
		outcomes = append(outcomes, Outcome{UUID: o.UUID, State: state})
	}
	return outcomes, nil
}

const fetchSQL = `
SELECT uuid, register_id, schema_id, owner, organisation,
       name, description, summary, image, slug,
       published, depublished, relations, payload, hash
FROM objects WHERE uuid = ANY($1)`

// FetchByUUIDs implements Store.
func (p *Postgres) FetchByUUIDs(ctx context.Context, uuids []string) ([]domain.Object, error) {
	if len(uuids) == 0 {
		return nil, nil
	}
	rows, err := p.conn.Query(ctx, fetchSQL, uuids)
	if err != nil {
		return nil, fmt.Errorf("fetch objects: %w", err)
	}
	defer rows.Close()

	var out []domain.Object
	for rows.Next() {
		var o domain.Object
		var rel, payload []byte
		var hash int64
		if err := rows.Scan(
			&o.UUID, &o.Register, &o.Schema, &o.Owner, &o.Organisation,
			&o.Name, &o.Description, &o.Summary, &o.Image, &o.Slug,
			&o.Published, &o.Depublished, &rel, &payload, &hash,
		); err != nil {
			return nil, fmt.Errorf("scan object: %w", err)
		}
		if err := json.Unmarshal(rel, &o.Relations); err != nil {
			return nil, fmt.Errorf("decode relations for %s: %w", o.UUID, err)
		}
		if err := json.Unmarshal(payload, &o.Payload); err != nil {
			return nil, fmt.Errorf("decode payload for %s: %w", o.UUID, err)
		}
		o.Hash = uint64(hash)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetch objects: %w", err)
	}
	return out, nil
}

const updateSQL = `
UPDATE objects o SET
	relations  = u.relations,
	payload    = u.payload,
	hash       = u.hash,
	updated_at = now()
FROM unnest($1::text[], $2::jsonb[], $3::jsonb[], $4::bigint[])
	AS u(uuid, relations, payload, hash)
WHERE o.uuid = u.uuid`

// BulkUpdate implements Store. Only the mutable write-back fields move.
func (p *Postgres) BulkUpdate(ctx context.Context, objs []domain.Object) error {
	if len(objs) == 0 {
		return nil
	}
	uuids := make([]string, len(objs))
	rels := make([]string, len(objs))
	payloads := make([]string, len(objs))
	hashes := make([]int64, len(objs))
	for i, o := range objs {
		uuids[i] = o.UUID
		rel, err := encodeJSON(o.Relations)
		if err != nil {
			return fmt.Errorf("encode relations for %s: %w", o.UUID, err)
		}
		pl, err := encodeJSON(o.Payload)
		if err != nil {
			return fmt.Errorf("encode payload for %s: %w", o.UUID, err)
		}
		rels[i] = rel
		payloads[i] = pl
		hashes[i] = int64(o.Hash)
	}
	if _, err := p.conn.Exec(ctx, updateSQL, uuids, rels, payloads, hashes); err != nil {
		return fmt.Errorf("bulk update: %w", err)
	}
	return nil
}

// Close implements Store.
func (p *Postgres) Close(ctx context.Context) error { return p.conn.Close(ctx) }

// columnArrays transposes objects into the positional arrays consumed by
// upsertSQL.
func columnArrays(objs []domain.Object) ([]any, error) {
	n := len(objs)
	uuids := make([]string, n)
	registers := make([]string, n)
	schemas := make([]string, n)
	owners := make([]string, n)
	organisations := make([]string, n)
	names := make([]string, n)
	descriptions := make([]string, n)
	summaries := make([]string, n)
	images := make([]string, n)
	slugs := make([]string, n)
	published := make([]string, n)
	depublished := make([]string, n)
	rels := make([]string, n)
	payloads := make([]string, n)
	hashes := make([]int64, n)
	for i, o := range objs {
		uuids[i] = o.UUID
		registers[i] = o.Register
		schemas[i] = o.Schema
		owners[i] = o.Owner
		organisations[i] = o.Organisation
		names[i] = o.Name
		descriptions[i] = o.Description
		summaries[i] = o.Summary
		images[i] = o.Image
		slugs[i] = o.Slug
		published[i] = o.Published
		depublished[i] = o.Depublished
		rel, err := encodeJSON(o.Relations)
		if err != nil {
			return nil, fmt.Errorf("encode relations for %s: %w", o.UUID, err)
		}
		pl, err := encodeJSON(o.Payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload for %s: %w", o.UUID, err)
		}
		rels[i] = rel
		payloads[i] = pl
		hashes[i] = int64(o.Hash)
	}
	return []any{
		uuids, registers, schemas, owners, organisations,
		names, descriptions, summaries, images, slugs,
		published, depublished, rels, payloads, hashes,
	}, nil
}

// encodeJSON renders v as JSON text, mapping nil to an empty object so
// the jsonb columns stay NOT NULL.
func encodeJSON(v any) (string, error) {
	switch val := v.(type) {
	case map[string]string:
		if val == nil {
			return "{}", nil
		}
	case map[string]any:
		if val == nil {
			return "{}", nil
		}
	case nil:
		return "{}", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
