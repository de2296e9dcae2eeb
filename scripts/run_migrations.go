package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/CopperGroup/bytecraft/internal/config"
	"github.com/CopperGroup/bytecraft/internal/database"
)

func main() {
	migrationDir := flag.String("dir", "migrations", "directory holding the *.up.sql and *.down.sql files")
	flag.Parse()

	if flag.NArg() < 1 {
		log.Fatal("Usage: go run scripts/run_migrations.go [-dir migrations] [up|down]")
	}

	direction := flag.Arg(0)
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	dbCfg := config.LoadDatabase()
	dbCfg.MaxOpenConns = 1

	db, err := database.NewConnection(&dbCfg)
	if err != nil {
		log.Fatalf("Connect to database: %v", err)
	}
	defer db.Close()

	files, err := os.ReadDir(*migrationDir)
	if err != nil {
		log.Fatalf("Read migration directory: %v", err)
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), fmt.Sprintf(".%s.sql", direction)) {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	if direction == "down" {
		for i, j := 0, len(migrationFiles)-1; i < j; i, j = i+1, j-1 {
			migrationFiles[i], migrationFiles[j] = migrationFiles[j], migrationFiles[i]
		}
	}

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(*migrationDir, filename))
		if err != nil {
			log.Fatalf("Read migration file %s: %v", filename, err)
		}

		log.Printf("Running migration: %s", filename)
		if _, err := db.Exec(string(content)); err != nil {
			log.Fatalf("Execute migration %s: %v", filename, err)
		}
	}

	log.Printf("Successfully ran %d migration(s) %s", len(migrationFiles), direction)
}
