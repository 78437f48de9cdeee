package sql

import (
	"database/sql"
	_ "embed"
	"fmt"
	"log"
)

//go:embed init.sql
var initSQL string

//go:embed posts.sql
var postsSQL string

//go:embed matches.sql
var matchesSQL string

//go:embed embeddings.sql
var embeddingsSQL string

// Function lists for verification
var PostsFunctions = []string{
	"init_posts",
	"insert_post",
	"select_post",
	"update_post_status",
	"select_approved_opposite_kind_posts",
	"select_recent_approved_posts",
	"delete_post",
}

var MatchesFunctions = []string{
	"init_matches",
	"insert_match",
	"select_match",
	"select_matches_by_post",
	"select_post_ids_with_recent_matches",
	"update_match",
	"delete_match",
}

var EmbeddingsFunctions = []string{
	"init_text_embeddings",
	"select_text_embedding",
	"upsert_text_embedding",
	"delete_text_embeddings_by_model",
}

// Init intializes db extensions
func Init(db *sql.DB) error {
	_, err := db.Exec(initSQL)
	if err != nil {
		return fmt.Errorf("error executing schema SQL: %w", err)
	}

	log.Println("Database extensions initialized successfully")
	return nil
}

// LoadPostsSql loads post-related SQL functions
func LoadPostsSql(db *sql.DB, force bool) error {
	return loadSql(db, "posts", postsSQL, PostsFunctions, force)
}

// LoadMatchesSql loads match-related SQL functions
func LoadMatchesSql(db *sql.DB, force bool) error {
	return loadSql(db, "matches", matchesSQL, MatchesFunctions, force)
}

// LoadEmbeddingsSql loads text embedding cache SQL functions
func LoadEmbeddingsSql(db *sql.DB, force bool) error {
	return loadSql(db, "embeddings", embeddingsSQL, EmbeddingsFunctions, force)
}

// LoadAllSql loads all SQL functions
func LoadAllSql(db *sql.DB, force bool) error {
	if err := LoadPostsSql(db, force); err != nil {
		return err
	}

	if err := LoadMatchesSql(db, force); err != nil {
		return err
	}

	if err := LoadEmbeddingsSql(db, force); err != nil {
		return err
	}

	return nil
}

func loadSql(db *sql.DB, name string, script string, functions []string, force bool) error {
	if !force {
		exist, err := checkFunctions(db, functions)
		if err != nil {
			return fmt.Errorf("error checking existing %s functions: %w", name, err)
		}
		if exist {
			return nil
		}
	}

	_, err := db.Exec(script)
	if err != nil {
		return fmt.Errorf("error executing %s SQL: %w", name, err)
	}

	exist, err := checkFunctions(db, functions)
	if err != nil {
		return fmt.Errorf("error checking existing functions: %w", err)
	}
	if !exist {
		return fmt.Errorf("not all required SQL functions were created")
	}

	log.Printf("SQL %s functions loaded successfully", name)
	return nil
}

// checkFunctions verifies that all required functions exist in the database
func checkFunctions(db *sql.DB, sqlFunctions []string) (bool, error) {
	var allExist bool
	for _, f := range sqlFunctions {
		err := db.QueryRow(
			`SELECT EXISTS(SELECT 1 FROM pg_proc WHERE proname = $1);`,
			f,
		).Scan(&allExist)
		if err != nil {
			return false, fmt.Errorf("error checking existence of function %s: %w", f, err)
		}
		if !allExist {
			log.Printf("Function %s does not exist", f)
			break
		}
	}
	return allExist, nil
}
