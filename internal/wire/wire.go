// Package wire provides dependency injection for the reeve application.
// It creates singleton services with lazy initialization, rooted at the
// project directory (the current working directory).
package wire

import (
	"database/sql"
	"log"
	"os"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/example/reeve/internal/adapters/decisionstore"
	"github.com/example/reeve/internal/adapters/evidence"
	"github.com/example/reeve/internal/adapters/intake"
	"github.com/example/reeve/internal/adapters/ledger"
	"github.com/example/reeve/internal/adapters/lockfile"
	"github.com/example/reeve/internal/adapters/sqlite"
	"github.com/example/reeve/internal/adapters/statestore"
	"github.com/example/reeve/internal/app"
	"github.com/example/reeve/internal/config"
	"github.com/example/reeve/internal/ports/primary"
)

var (
	project             config.ProjectContext
	eventService        primary.EventService
	decisionService     primary.DecisionService
	orchestratorService primary.OrchestratorService
	archiveDB           *sql.DB
	once                sync.Once
)

// Project returns the project context for the current working directory.
func Project() config.ProjectContext {
	once.Do(initServices)
	return project
}

// EventService returns the singleton EventService instance.
func EventService() primary.EventService {
	once.Do(initServices)
	return eventService
}

// DecisionService returns the singleton DecisionService instance.
func DecisionService() primary.DecisionService {
	once.Do(initServices)
	return decisionService
}

// OrchestratorService returns the singleton OrchestratorService instance.
func OrchestratorService() primary.OrchestratorService {
	once.Do(initServices)
	return orchestratorService
}

// Close releases the archive database connection.
func Close() error {
	if archiveDB != nil {
		return archiveDB.Close()
	}
	return nil
}

// initServices initializes all services and their dependencies.
// This is called once via sync.Once.
func initServices() {
	cwd, err := os.Getwd()
	if err != nil {
		log.Fatalf("failed to resolve working directory: %v", err)
	}
	project = config.NewProjectContext(cwd)

	cfg, err := config.LoadConfig(cwd)
	if err != nil {
		log.Fatalf("not a reeve project (run 'reeve init' first): %v", err)
	}

	policy, err := config.LoadPolicy(project)
	if err != nil {
		log.Fatalf("failed to load policy: %v", err)
	}

	archiveDB, err = sql.Open("sqlite3", project.ArchivePath())
	if err != nil {
		log.Fatalf("failed to open archive database: %v", err)
	}
	if err := sqlite.InitSchema(archiveDB); err != nil {
		log.Fatalf("failed to initialize archive schema: %v", err)
	}
	archive := sqlite.NewArchiveRepository(archiveDB)

	// Secondary adapters.
	ledgerStore, err := ledger.NewStore(project, policy, archive)
	if err != nil {
		log.Fatalf("failed to initialize event ledger: %v", err)
	}
	decisionStore, err := decisionstore.NewStore(project)
	if err != nil {
		log.Fatalf("failed to initialize decision store: %v", err)
	}
	stateStore, err := statestore.NewStore(project)
	if err != nil {
		log.Fatalf("failed to initialize state store: %v", err)
	}
	intakeQueue, err := intake.NewQueue(project)
	if err != nil {
		log.Fatalf("failed to initialize intake queue: %v", err)
	}
	lockManager := lockfile.NewManager(project)
	evidenceSource := evidence.NewSource(project)

	// Services (primary ports implementation).
	eventService = app.NewEventService(ledgerStore)
	decisionService = app.NewDecisionService(decisionStore, ledgerStore)
	orchestratorService = app.NewOrchestratorService(
		cfg.Repos,
		policy,
		lockManager,
		evidenceSource,
		ledgerStore,
		decisionStore,
		stateStore,
		intakeQueue,
	)
}
