package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jason-s-yu/trivia/internal/gateway"
	"github.com/jason-s-yu/trivia/internal/models"
	"github.com/jonboulle/clockwork"
)

// Gateway stores players and rounds in Postgres.
type Gateway struct {
	pool  *pgxpool.Pool
	clock clockwork.Clock
}

var _ gateway.Gateway = (*Gateway)(nil)

// NewGateway uses clock to stamp round start times.
func NewGateway(pool *pgxpool.Pool, clock clockwork.Clock) *Gateway {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Gateway{pool: pool, clock: clock}
}

// AddPlayer upserts the player as ready in language.
func (g *Gateway) AddPlayer(ctx context.Context, id uuid.UUID, language string) error {
	q := `
	INSERT INTO players (id, language, ready)
	VALUES ($1, $2, TRUE)
	ON CONFLICT (id) DO UPDATE
	SET language = EXCLUDED.language, ready = TRUE, updated_at = now()
	`
	err := pgx.BeginTxFunc(ctx, g.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, q, id, language)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert player: %w", err)
	}
	return nil
}

func (g *Gateway) GetAllPlayers(ctx context.Context) ([]models.Player, error) {
	q := `SELECT id, language, ready FROM players ORDER BY created_at, id`
	rows, err := g.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to list players: %w", err)
	}
	defer rows.Close()

	players := []models.Player{}
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.Language, &p.Ready); err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (g *Gateway) GetPlayer(ctx context.Context, id uuid.UUID) (*models.Player, error) {
	var p models.Player
	q := `SELECT id, language, ready FROM players WHERE id = $1`
	err := g.pool.QueryRow(ctx, q, id).Scan(&p.ID, &p.Language, &p.Ready)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get player: %w", err)
	}
	return &p, nil
}

// CreateRound records a round starting now and copies in the ready players of language.
func (g *Gateway) CreateRound(ctx context.Context, language string) error {
	start := g.clock.Now().UnixNano()
	err := pgx.BeginTxFunc(ctx, g.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		// start_time is the key; bump it past rounds created in the same instant
		for {
			tag, err := tx.Exec(ctx,
				`INSERT INTO rounds (start_time, language) VALUES ($1, $2) ON CONFLICT (start_time) DO NOTHING`,
				start, language)
			if err != nil {
				return err
			}
			if tag.RowsAffected() == 1 {
				break
			}
			start++
		}
		_, err := tx.Exec(ctx, `
		INSERT INTO round_players (start_time, player_id, language, ready)
		SELECT $1, id, language, ready FROM players
		WHERE ready AND language = $2
		`, start, language)
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create round: %w", err)
	}
	return nil
}

func (g *Gateway) GetAllRounds(ctx context.Context) ([]models.Round, error) {
	rows, err := g.pool.Query(ctx, `SELECT start_time, language FROM rounds ORDER BY start_time`)
	if err != nil {
		return nil, fmt.Errorf("failed to list rounds: %w", err)
	}
	rounds := []models.Round{}
	index := make(map[int64]int)
	for rows.Next() {
		var r models.Round
		if err := rows.Scan(&r.StartTime, &r.Language); err != nil {
			rows.Close()
			return nil, err
		}
		index[r.StartTime] = len(rounds)
		rounds = append(rounds, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	rows, err = g.pool.Query(ctx, `
	SELECT rp.start_time, rp.player_id, rp.language, rp.ready
	FROM round_players rp
	JOIN players p ON p.id = rp.player_id
	ORDER BY rp.start_time, p.created_at, rp.player_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list round players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var start int64
		var p models.Player
		if err := rows.Scan(&start, &p.ID, &p.Language, &p.Ready); err != nil {
			return nil, err
		}
		if i, ok := index[start]; ok {
			rounds[i].Players = append(rounds[i].Players, p)
		}
	}
	return rounds, rows.Err()
}

func (g *Gateway) GetRound(ctx context.Context, startTime int64) (*models.Round, error) {
	var r models.Round
	err := g.pool.QueryRow(ctx, `SELECT start_time, language FROM rounds WHERE start_time = $1`, startTime).
		Scan(&r.StartTime, &r.Language)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get round: %w", err)
	}

	rows, err := g.pool.Query(ctx, `
	SELECT rp.player_id, rp.language, rp.ready
	FROM round_players rp
	JOIN players p ON p.id = rp.player_id
	WHERE rp.start_time = $1
	ORDER BY p.created_at, rp.player_id
	`, startTime)
	if err != nil {
		return nil, fmt.Errorf("failed to get round players: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var p models.Player
		if err := rows.Scan(&p.ID, &p.Language, &p.Ready); err != nil {
			return nil, err
		}
		r.Players = append(r.Players, p)
	}
	return &r, rows.Err()
}
