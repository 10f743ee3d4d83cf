package repository

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/arhipvp/hw05-final/internal/core/domain"
	"github.com/arhipvp/hw05-final/internal/core/ports"
)

// Neo4jFollowRepo stocke les abonnements comme des arêtes (:User)-[:FOLLOWS]->(:User).
// Les posts restent en SQL : le feed ne demande au graphe que la liste des auteurs suivis.
type Neo4jFollowRepo struct {
	driver neo4j.DriverWithContext
}

func NewNeo4jFollowRepo(driver neo4j.DriverWithContext) *Neo4jFollowRepo {
	return &Neo4jFollowRepo{driver: driver}
}

var _ ports.FollowRepository = (*Neo4jFollowRepo)(nil)

// EnsureSchema crée les index pour que les lookups par ID soient O(1)
func (r *Neo4jFollowRepo) EnsureSchema(ctx context.Context) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `CREATE CONSTRAINT user_id_unique IF NOT EXISTS FOR (u:User) REQUIRE u.id IS UNIQUE`
		_, err := tx.Run(ctx, query, nil)
		return nil, err
	})
	return err
}

// Create : MERGE garantit l'unicité de la flèche, le compteur de la requête
// dit si elle existait déjà.
func (r *Neo4jFollowRepo) Create(ctx context.Context, f *domain.Follow) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	created, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MERGE (a:User {id: $userId})
			MERGE (b:User {id: $authorId})
			MERGE (a)-[r:FOLLOWS]->(b)
			ON CREATE SET r.created_at = $createdAt
		`
		res, err := tx.Run(ctx, query, map[string]any{
			"userId":    f.UserID,
			"authorId":  f.AuthorID,
			"createdAt": f.CreatedAt,
		})
		if err != nil {
			return nil, err
		}
		summary, err := res.Consume(ctx)
		if err != nil {
			return nil, err
		}
		return summary.Counters().RelationshipsCreated() > 0, nil
	})
	if err != nil {
		return fmt.Errorf("neo4j: create follow: %w", err)
	}
	if !created.(bool) {
		return domain.ErrAlreadyFollowing
	}
	return nil
}

func (r *Neo4jFollowRepo) Delete(ctx context.Context, userID, authorID int64) error {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:User {id: $userId})-[r:FOLLOWS]->(b:User {id: $authorId})
			DELETE r
		`
		_, err := tx.Run(ctx, query, map[string]any{"userId": userID, "authorId": authorID})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j: delete follow: %w", err)
	}
	return nil
}

func (r *Neo4jFollowRepo) Exists(ctx context.Context, userID, authorID int64) (bool, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `
			MATCH (a:User {id: $userId})-[:FOLLOWS]->(b:User {id: $authorId})
			RETURN count(*) > 0 AS following
		`
		res, err := tx.Run(ctx, query, map[string]any{"userId": userID, "authorId": authorID})
		if err != nil {
			return nil, err
		}
		rec, err := res.Single(ctx)
		if err != nil {
			return nil, err
		}
		following, _ := rec.Get("following")
		return following.(bool), nil
	})
	if err != nil {
		return false, fmt.Errorf("neo4j: follow exists: %w", err)
	}
	return result.(bool), nil
}

func (r *Neo4jFollowRepo) ListAuthorIDs(ctx context.Context, userID int64) ([]int64, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := `MATCH (:User {id: $userId})-[:FOLLOWS]->(b:User) RETURN b.id AS authorId ORDER BY authorId`
		res, err := tx.Run(ctx, query, map[string]any{"userId": userID})
		if err != nil {
			return nil, err
		}

		var ids []int64
		for res.Next(ctx) {
			id, _ := res.Record().Get("authorId")
			ids = append(ids, id.(int64))
		}
		return ids, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: list followed: %w", err)
	}
	return result.([]int64), nil
}
