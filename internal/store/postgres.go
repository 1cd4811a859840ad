package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

// ErrNotFound is returned by FindByNaturalKey when no record exists.
var ErrNotFound = errors.New("record not found")

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

const recordColumns = `
	id, natural_key, origin, title, body_md, excerpt, cover_url,
	gallery_urls, categories, tags, published, draft, archived, extra,
	source_created_at, source_modified_at, created_at, updated_at
`

func (s *PostgresStore) FindByNaturalKey(ctx context.Context, naturalKey string) (Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE natural_key=$1
	`, naturalKey)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("find record %s: %w", naturalKey, err)
	}
	return record, nil
}

func (s *PostgresStore) Insert(ctx context.Context, record Record) (Record, error) {
	gallery, categories, tags, extra, err := encodeJSONFields(record)
	if err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO records (
			natural_key, origin, title, body_md, excerpt, cover_url,
			gallery_urls, categories, tags, published, draft, archived, extra,
			source_created_at, source_modified_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7::jsonb, $8::jsonb, $9::jsonb, $10, $11, $12, $13::jsonb, $14, $15)
		RETURNING `+recordColumns+`
	`,
		record.NaturalKey, record.Origin, record.Title, record.BodyMarkdown,
		record.Excerpt, record.CoverURL, gallery, categories, tags,
		record.Published, record.Draft, record.Archived, extra,
		record.SourceCreatedAt, record.SourceModifiedAt,
	)
	inserted, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("insert record %s: %w", record.NaturalKey, err)
	}
	return inserted, nil
}

// Update replaces all mutable fields of the row identified by id. Whole
// record replacement, no field-level merge.
func (s *PostgresStore) Update(ctx context.Context, id int64, record Record) (Record, error) {
	gallery, categories, tags, extra, err := encodeJSONFields(record)
	if err != nil {
		return Record{}, err
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE records
		SET title=$2, body_md=$3, excerpt=$4, cover_url=$5,
			gallery_urls=$6::jsonb, categories=$7::jsonb, tags=$8::jsonb,
			published=$9, draft=$10, archived=$11, extra=$12::jsonb,
			source_created_at=$13, source_modified_at=$14, updated_at=NOW()
		WHERE id=$1
		RETURNING `+recordColumns+`
	`,
		id, record.Title, record.BodyMarkdown, record.Excerpt, record.CoverURL,
		gallery, categories, tags,
		record.Published, record.Draft, record.Archived, extra,
		record.SourceCreatedAt, record.SourceModifiedAt,
	)
	updated, err := scanRecord(row)
	if err != nil {
		return Record{}, fmt.Errorf("update record %d: %w", id, err)
	}
	return updated, nil
}

func (s *PostgresStore) ListAll(ctx context.Context) ([]Record, error) {
	return s.list(ctx, `
		SELECT `+recordColumns+`
		FROM records
		ORDER BY source_modified_at DESC
	`)
}

func (s *PostgresStore) ListPublished(ctx context.Context) ([]Record, error) {
	return s.list(ctx, `
		SELECT `+recordColumns+`
		FROM records
		WHERE published=TRUE
		ORDER BY source_modified_at DESC
	`)
}

func (s *PostgresStore) list(ctx context.Context, query string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	defer rows.Close()

	items := make([]Record, 0)
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		items = append(items, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate records: %w", err)
	}
	return items, nil
}

// Ping verifies the database connection is alive
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (Record, error) {
	var record Record
	var gallery, categories, tags, extra []byte
	err := row.Scan(
		&record.ID,
		&record.NaturalKey,
		&record.Origin,
		&record.Title,
		&record.BodyMarkdown,
		&record.Excerpt,
		&record.CoverURL,
		&gallery,
		&categories,
		&tags,
		&record.Published,
		&record.Draft,
		&record.Archived,
		&extra,
		&record.SourceCreatedAt,
		&record.SourceModifiedAt,
		&record.CreatedAt,
		&record.UpdatedAt,
	)
	if err != nil {
		return Record{}, err
	}
	for _, field := range []struct {
		name string
		raw  []byte
		dst  any
	}{
		{"gallery_urls", gallery, &record.GalleryURLs},
		{"categories", categories, &record.Categories},
		{"tags", tags, &record.Tags},
		{"extra", extra, &record.Extra},
	} {
		if err := json.Unmarshal(field.raw, field.dst); err != nil {
			return Record{}, fmt.Errorf("decode %s for record %s: %w", field.name, record.NaturalKey, err)
		}
	}
	return record, nil
}

func encodeJSONFields(record Record) (gallery, categories, tags, extra string, err error) {
	encodeList := func(v []string) (string, error) {
		if v == nil {
			v = []string{}
		}
		raw, err := json.Marshal(v)
		if err != nil {
			return "", fmt.Errorf("marshal record field: %w", err)
		}
		return string(raw), nil
	}
	if gallery, err = encodeList(record.GalleryURLs); err != nil {
		return
	}
	if categories, err = encodeList(record.Categories); err != nil {
		return
	}
	if tags, err = encodeList(record.Tags); err != nil {
		return
	}
	extraMap := record.Extra
	if extraMap == nil {
		extraMap = map[string]any{}
	}
	raw, marshalErr := json.Marshal(extraMap)
	if marshalErr != nil {
		err = fmt.Errorf("marshal record extra: %w", marshalErr)
		return
	}
	extra = string(raw)
	return
}
