// Package graph mirrors anchors and their "generates" edges into Neo4j so the
// dependency graph can be explored and queried for cycles with Cypher.
// The registry stays authoritative; the graph is rebuilt by every Sync.
package graph

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/ajitpratap0/ssot-registry/internal/models"
)

// DefaultMaxCycleLength bounds the path length searched by Cycles.
const DefaultMaxCycleLength = 8

// Options holds the Neo4j connection settings.
type Options struct {
	URI      string
	User     string
	Password string
	Database string
}

// Projector writes the anchor dependency graph to Neo4j.
type Projector struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *slog.Logger
}

// NewProjector connects to Neo4j and verifies connectivity.
func NewProjector(ctx context.Context, opts Options, logger *slog.Logger) (*Projector, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.User, opts.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("creating neo4j driver for %s: %w", opts.URI, err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("connecting to neo4j at %s: %w", opts.URI, err)
	}
	logger.Info("connected to neo4j", "uri", opts.URI, "database", opts.Database)
	return &Projector{driver: driver, database: opts.Database, logger: logger}, nil
}

// SyncResult counts what a Sync wrote.
type SyncResult struct {
	Anchors int `json:"anchors"`
	Edges   int `json:"edges"`
}

const (
	upsertAnchorsQuery = `
UNWIND $anchors AS a
MERGE (n:Anchor {id: a.id})
SET n.family = a.family, n.owner = a.owner, n.version = a.version, n.centrality_score = a.centrality_score`

	deleteStaleQuery = `
MATCH (n:Anchor) WHERE NOT n.id IN $ids
DETACH DELETE n`

	clearEdgesQuery = `
MATCH (:Anchor)-[r:GENERATES]->(:Anchor)
DELETE r`

	createEdgesQuery = `
UNWIND $edges AS e
MATCH (s:Anchor {id: e.source}), (t:Anchor {id: e.target})
MERGE (s)-[:GENERATES]->(t)`
)

// Sync replaces the projected graph with anchors in one write transaction.
// Edges to anchors that are not registered are skipped.
func (p *Projector) Sync(ctx context.Context, anchors []models.Anchor) (SyncResult, error) {
	nodes := anchorParams(anchors)
	edges := edgeParams(anchors)
	ids := make([]any, 0, len(nodes))
	for _, n := range nodes {
		ids = append(ids, n["id"])
	}

	session := p.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: p.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer func() { _ = session.Close(ctx) }()

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		steps := []struct {
			query  string
			params map[string]any
		}{
			{upsertAnchorsQuery, map[string]any{"anchors": toAny(nodes)}},
			{deleteStaleQuery, map[string]any{"ids": ids}},
			{clearEdgesQuery, nil},
			{createEdgesQuery, map[string]any{"edges": toAny(edges)}},
		}
		for _, s := range steps {
			res, err := tx.Run(ctx, s.query, s.params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	if err != nil {
		return SyncResult{}, fmt.Errorf("syncing anchor graph: %w", err)
	}

	p.logger.Info("anchor graph synced", "anchors", len(nodes), "edges", len(edges))
	return SyncResult{Anchors: len(nodes), Edges: len(edges)}, nil
}

// Cycles returns the dependency cycles of up to maxLen anchors, each rotated
// to start at its smallest id and listed once.
func (p *Projector) Cycles(ctx context.Context, maxLen int) ([][]string, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxCycleLength
	}
	// Variable-length bounds cannot be query parameters.
	query := fmt.Sprintf(`
MATCH path = (a:Anchor)-[:GENERATES*1..%d]->(a)
RETURN [n IN nodes(path) | n.id] AS ids`, maxLen)

	result, err := neo4j.ExecuteQuery(ctx, p.driver, query, nil, neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(p.database),
		neo4j.ExecuteQueryWithReadersRouting())
	if err != nil {
		return nil, fmt.Errorf("querying anchor cycles: %w", err)
	}

	raw := make([][]string, 0, len(result.Records))
	for _, rec := range result.Records {
		v, ok := rec.Get("ids")
		if !ok {
			continue
		}
		list, ok := v.([]any)
		if !ok {
			continue
		}
		ids := make([]string, 0, len(list))
		for _, x := range list {
			if s, ok := x.(string); ok {
				ids = append(ids, s)
			}
		}
		raw = append(raw, ids)
	}
	return normalizeCycles(raw), nil
}

// Close releases the driver.
func (p *Projector) Close(ctx context.Context) error {
	return p.driver.Close(ctx)
}

func anchorParams(anchors []models.Anchor) []map[string]any {
	sorted := append([]models.Anchor(nil), anchors...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })
	out := make([]map[string]any, 0, len(sorted))
	for _, a := range sorted {
		out = append(out, map[string]any{
			"id":               a.ID,
			"family":           a.Family,
			"owner":            a.Owner,
			"version":          a.Version,
			"centrality_score": a.CentralityScore,
		})
	}
	return out
}

// edgeParams lists source->target pairs whose both ends are registered.
func edgeParams(anchors []models.Anchor) []map[string]any {
	known := make(map[string]bool, len(anchors))
	for _, a := range anchors {
		known[a.ID] = true
	}
	seen := make(map[[2]string]bool)
	var pairs [][2]string
	for _, a := range anchors {
		for _, target := range a.Generates {
			k := [2]string{a.ID, target}
			if !known[target] || seen[k] {
				continue
			}
			seen[k] = true
			pairs = append(pairs, k)
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		if pairs[i][0] != pairs[j][0] {
			return pairs[i][0] < pairs[j][0]
		}
		return pairs[i][1] < pairs[j][1]
	})
	out := make([]map[string]any, 0, len(pairs))
	for _, p := range pairs {
		out = append(out, map[string]any{"source": p[0], "target": p[1]})
	}
	return out
}

// normalizeCycles drops the repeated closing node, rotates each cycle to
// its smallest id and removes duplicates found from different start nodes.
func normalizeCycles(raw [][]string) [][]string {
	seen := make(map[string]bool)
	var out [][]string
	for _, path := range raw {
		if len(path) > 1 && path[0] == path[len(path)-1] {
			path = path[:len(path)-1]
		}
		if len(path) == 0 {
			continue
		}
		start := 0
		for i := range path {
			if path[i] < path[start] {
				start = i
			}
		}
		cycle := append(append([]string(nil), path[start:]...), path[:start]...)
		key := strings.Join(cycle, ">")
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, cycle)
	}
	sort.Slice(out, func(i, j int) bool {
		if len(out[i]) != len(out[j]) {
			return len(out[i]) < len(out[j])
		}
		return strings.Join(out[i], ">") < strings.Join(out[j], ">")
	})
	return out
}

func toAny(in []map[string]any) []any {
	out := make([]any, len(in))
	for i, m := range in {
		out[i] = m
	}
	return out
}
