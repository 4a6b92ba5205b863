package vectorstore

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/shaiso/llmflows/internal/domain"
)

const defaultTable = "llmflows_vectors"

// PgConfig — настройки PgStore.
type PgConfig struct {
	// Table — имя таблицы. По умолчанию llmflows_vectors.
	Table string

	// Dimension — размерность векторов. Обязательна для EnsureSchema.
	Dimension int
}

// PgStore — Store поверх PostgreSQL с расширением pgvector.
//
// Векторы передаются как pgvector.Vector. Пул из NewPool регистрирует
// бинарный кодек типа vector; с другим пулом значения уходят в
// текстовом формате.
//
// Схема таблицы:
//
//	id        TEXT PRIMARY KEY
//	embedding VECTOR(dim)
//	metadata  JSONB
type PgStore struct {
	pool  *pgxpool.Pool
	table string
	dim   int
}

// NewPgStore создаёт хранилище поверх пула соединений.
func NewPgStore(pool *pgxpool.Pool, cfg PgConfig) *PgStore {
	table := cfg.Table
	if table == "" {
		table = defaultTable
	}
	return &PgStore{
		pool:  pool,
		table: pgx.Identifier{table}.Sanitize(),
		dim:   cfg.Dimension,
	}
}

// EnsureSchema создаёт расширение vector и таблицу, если их нет.
func (s *PgStore) EnsureSchema(ctx context.Context) error {
	if s.dim <= 0 {
		return fmt.Errorf("ensure schema: %w: dimension is not set", ErrDimensionMismatch)
	}
	for _, stmt := range schemaStatements(s.table, s.dim) {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// Upsert реализует Store. Все документы пишутся одним batch.
func (s *PgStore) Upsert(ctx context.Context, docs []domain.VectorDoc) error {
	if len(docs) == 0 {
		return nil
	}
	if _, err := validateDocs(docs, s.dim); err != nil {
		return err
	}

	br := s.pool.SendBatch(ctx, upsertBatch(s.table, docs))
	defer br.Close()

	for _, d := range docs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("upsert doc %s: %w", d.ID, err)
		}
	}
	return nil
}

// Search реализует Store. Score = 1 - косинусное расстояние.
func (s *PgStore) Search(ctx context.Context, query []float32, topK int) ([]domain.Match, error) {
	if err := validateQuery(query, topK); err != nil {
		return nil, err
	}
	if s.dim != 0 && len(query) != s.dim {
		return nil, fmt.Errorf("%w: got %d, want %d", ErrDimensionMismatch, len(query), s.dim)
	}

	rows, err := s.pool.Query(ctx, searchQuery(s.table), pgvector.NewVector(query), topK)
	if err != nil {
		return nil, fmt.Errorf("search vectors: %w", err)
	}
	defer rows.Close()

	var matches []domain.Match
	for rows.Next() {
		var m domain.Match
		if err := rows.Scan(&m.ID, &m.Score, &m.Metadata); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate matches: %w", err)
	}
	return matches, nil
}

// Delete удаляет документы по ID.
func (s *PgStore) Delete(ctx context.Context, ids []string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ANY($1)`, s.table)
	if _, err := s.pool.Exec(ctx, query, ids); err != nil {
		return fmt.Errorf("delete vectors: %w", err)
	}
	return nil
}

func schemaStatements(table string, dim int) []string {
	return []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id        TEXT PRIMARY KEY,
			embedding VECTOR(%d) NOT NULL,
			metadata  JSONB NOT NULL DEFAULT '{}'
		)`, table, dim),
	}
}

func upsertQuery(table string) string {
	return fmt.Sprintf(`
		INSERT INTO %s (id, embedding, metadata)
		VALUES ($1, $2::vector, $3)
		ON CONFLICT (id) DO UPDATE
		SET embedding = EXCLUDED.embedding, metadata = EXCLUDED.metadata
	`, table)
}

// Явное приведение $1::vector снимает неоднозначность оператора <=>
// между vector, halfvec и sparsevec.
func searchQuery(table string) string {
	return fmt.Sprintf(`
		SELECT id, 1 - (embedding <=> $1::vector) AS score, metadata
		FROM %s
		ORDER BY embedding <=> $1::vector
		LIMIT $2
	`, table)
}

// upsertBatch собирает batch из одного upsert на документ.
func upsertBatch(table string, docs []domain.VectorDoc) *pgx.Batch {
	query := upsertQuery(table)
	batch := &pgx.Batch{}
	for _, d := range docs {
		batch.Queue(query, d.ID, pgvector.NewVector(d.Embedding), d.StoredMetadata())
	}
	return batch
}
