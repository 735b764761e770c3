package storage

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx driver

	"mri-bot/internal/domain/entity"
	"mri-bot/internal/domain/port"
)

const analysesSchema = `
create table if not exists saliency_analyses (
    id            text primary key,
    created_at    timestamptz not null default now(),
    file_name     text not null,
    model         text not null,
    label         text not null,
    confidence    double precision not null,
    overlay_path  text not null default '',
    explanation   text not null default '',
    saliency_err  text not null default '',
    narrative_err text not null default ''
)`

// PostgresAnalysisRepository история анализов в PostgreSQL
type PostgresAnalysisRepository struct{ DB *sql.DB }

// OpenPostgres открывает пул через драйвер pgx и проверяет соединение
func OpenPostgres(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

// NewPostgresAnalysisRepository создаёт репозиторий и таблицу, если её нет
func NewPostgresAnalysisRepository(ctx context.Context, db *sql.DB) (*PostgresAnalysisRepository, error) {
	if _, err := db.ExecContext(ctx, analysesSchema); err != nil {
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &PostgresAnalysisRepository{DB: db}, nil
}

// Save сохраняет или обновляет запись
func (r *PostgresAnalysisRepository) Save(ctx context.Context, a *entity.Analysis) error {
	const q = `
insert into saliency_analyses(id, created_at, file_name, model, label, confidence,
                              overlay_path, explanation, saliency_err, narrative_err)
values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
on conflict (id) do update set
    overlay_path=excluded.overlay_path,
    explanation=excluded.explanation,
    saliency_err=excluded.saliency_err,
    narrative_err=excluded.narrative_err`
	_, err := r.DB.ExecContext(ctx, q, a.ID, a.CreatedAt, a.FileName, string(a.Model), a.Label, a.Confidence,
		a.OverlayPath, a.Explanation, a.SaliencyErr, a.NarrativeErr)
	return err
}

const selectAnalysis = `
select id, created_at, file_name, model, label, confidence,
       overlay_path, explanation, saliency_err, narrative_err
from saliency_analyses`

// Get возвращает запись по ID
func (r *PostgresAnalysisRepository) Get(ctx context.Context, id string) (*entity.Analysis, error) {
	row := r.DB.QueryRowContext(ctx, selectAnalysis+` where id = $1`, id)
	return scanAnalysis(row)
}

// List возвращает последние записи
func (r *PostgresAnalysisRepository) List(ctx context.Context, limit int) ([]*entity.Analysis, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rows, err := r.DB.QueryContext(ctx, selectAnalysis+` order by created_at desc, id desc limit $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Analysis
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(s scanner) (*entity.Analysis, error) {
	var (
		a     entity.Analysis
		model string
	)
	if err := s.Scan(&a.ID, &a.CreatedAt, &a.FileName, &model, &a.Label, &a.Confidence,
		&a.OverlayPath, &a.Explanation, &a.SaliencyErr, &a.NarrativeErr); err != nil {
		return nil, err
	}
	a.Model = entity.ModelID(model)
	return &a, nil
}

var _ port.AnalysisRepository = (*PostgresAnalysisRepository)(nil)
