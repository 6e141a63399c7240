package store

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/geopick/geopick/internal/geopick"
)

// creditScript adds the POI to the credited set and bumps the team's score
// in the same atomic step. A POI already in the set is not credited again.
var creditScript = redis.NewScript(`
if redis.call('SADD', KEYS[1], ARGV[1]) == 1 then
	return redis.call('ZINCRBY', KEYS[2], ARGV[2], ARGV[3])
end
return redis.call('ZSCORE', KEYS[2], ARGV[3]) or '0'
`)

// TeamNamer resolves team ids to display names for the scoreboard.
type TeamNamer interface {
	TeamNames(ctx context.Context) (map[string]string, error)
}

// RedisLedger keeps team scores in a Redis sorted set so several API
// instances share one scoreboard.
type RedisLedger struct {
	rdb      *redis.Client
	names    TeamNamer
	scores   string
	credited string
}

func NewRedisLedger(rdb *redis.Client, prefix string, names TeamNamer) *RedisLedger {
	return &RedisLedger{
		rdb:      rdb,
		names:    names,
		scores:   prefix + ":scores",
		credited: prefix + ":credited",
	}
}

// Credit implements claim.Ledger.
func (l *RedisLedger) Credit(ctx context.Context, teamID, poiID string, points int) (int, error) {
	res, err := creditScript.Run(ctx, l.rdb,
		[]string{l.credited, l.scores}, poiID, points, teamID,
	).Text()
	if err != nil {
		return 0, fmt.Errorf("crediting team in redis: %w", err)
	}
	total, err := strconv.ParseFloat(res, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing score %q: %w", res, err)
	}
	return int(total), nil
}

func (l *RedisLedger) Score(ctx context.Context, teamID string) (int, error) {
	score, err := l.rdb.ZScore(ctx, l.scores, teamID).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int(score), nil
}

// Standings lists every known team, including those without points.
func (l *RedisLedger) Standings(ctx context.Context) ([]geopick.Standing, error) {
	zs, err := l.rdb.ZRevRangeWithScores(ctx, l.scores, 0, -1).Result()
	if err != nil {
		return nil, err
	}
	names, err := l.names.TeamNames(ctx)
	if err != nil {
		return nil, err
	}

	standings := make([]geopick.Standing, 0, len(names))
	seen := make(map[string]bool, len(zs))
	for _, z := range zs {
		id, _ := z.Member.(string)
		seen[id] = true
		standings = append(standings, geopick.Standing{TeamID: id, TeamName: names[id], Score: int(z.Score)})
	}
	for id, name := range names {
		if !seen[id] {
			standings = append(standings, geopick.Standing{TeamID: id, TeamName: name})
		}
	}
	slices.SortStableFunc(standings, func(a, b geopick.Standing) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.TeamName, b.TeamName)
	})
	return standings, nil
}

// CreditSource lists the credits a ledger should hold, see Store.ClaimedCredits.
type CreditSource interface {
	ClaimedCredits(ctx context.Context) ([]Credit, error)
}

// Reconcile replaces the scoreboard with one rebuilt from src, restoring
// credits lost between a committed claim and its ledger write. The rebuild
// is a single MULTI/EXEC, so readers never see a partial board.
func (l *RedisLedger) Reconcile(ctx context.Context, src CreditSource) error {
	credits, err := src.ClaimedCredits(ctx)
	if err != nil {
		return fmt.Errorf("loading claimed credits: %w", err)
	}
	_, err = l.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, l.scores, l.credited)
		for _, c := range credits {
			pipe.SAdd(ctx, l.credited, c.POIID)
			pipe.ZIncrBy(ctx, l.scores, float64(c.Points), c.TeamID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuilding scoreboard: %w", err)
	}
	return nil
}

func (l *RedisLedger) Ping(ctx context.Context) error {
	return l.rdb.Ping(ctx).Err()
}
