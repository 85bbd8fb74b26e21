// Package server wires reqgraph's stores, services and MCP handlers into
// one MCP server. It is the composition root: nothing else constructs
// concrete dependencies.
package server

import (
	"fmt"
	"log/slog"

	"github.com/HendryAvila/reqgraph/internal/config"
	"github.com/HendryAvila/reqgraph/internal/links"
	"github.com/HendryAvila/reqgraph/internal/prompts"
	"github.com/HendryAvila/reqgraph/internal/requirements"
	"github.com/HendryAvila/reqgraph/internal/resources"
	"github.com/HendryAvila/reqgraph/internal/store"
	"github.com/HendryAvila/reqgraph/internal/tools"
	"github.com/mark3labs/mcp-go/server"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates the MCP server. The returned cleanup closes the database and
// must be called on shutdown.
func New(cfg *config.Config, log *slog.Logger) (*server.MCPServer, func(), error) {
	st, err := store.New(store.Config{DataDir: cfg.DataDir})
	if err != nil {
		return nil, noop, fmt.Errorf("opening store: %w", err)
	}
	cleanup := func() {
		if err := st.Close(); err != nil {
			log.Warn("store close failed", "error", err)
		}
	}

	service := requirements.NewService(st, st, log.With("component", "requirements"))
	service.SetPadLength(cfg.PadLength)
	registry := links.NewRegistry(st, log.With("component", "links"))
	service.SetNodeRetirer(registry)

	s := server.NewMCPServer(
		"reqgraph",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	project := cfg.Project

	// --- Requirements ---

	nextID := tools.NewNextIDTool(st, project, cfg.PadLength)
	s.AddTool(nextID.Definition(), nextID.Handle)

	saveBatch := tools.NewSaveBatchTool(service, project)
	s.AddTool(saveBatch.Definition(), saveBatch.Handle)

	listTask := tools.NewListTaskTool(st, st, project)
	s.AddTool(listTask.Definition(), listTask.Handle)

	setVerification := tools.NewSetVerificationTool(st, project)
	s.AddTool(setVerification.Definition(), setVerification.Handle)

	del := tools.NewDeleteTool(service, project)
	s.AddTool(del.Definition(), del.Handle)

	// --- Links ---

	registerLinkTools(s, registry, project)

	// --- Prompts & resources ---

	editTask := prompts.NewEditTaskPrompt()
	s.AddPrompt(editTask.Definition(), editTask.Handle)

	reviewSuspects := prompts.NewReviewSuspectsPrompt()
	s.AddPrompt(reviewSuspects.Definition(), reviewSuspects.Handle)

	resourceHandler := resources.NewHandler(registry, project)
	s.AddResource(resourceHandler.SuspectResource(), resourceHandler.HandleSuspect)

	log.Info("mcp server ready", "version", Version, "project", project, "data_dir", cfg.DataDir)
	return s, cleanup, nil
}

func noop() {}

func registerLinkTools(s *server.MCPServer, r *links.Registry, project string) {
	create := tools.NewLinkCreateTool(r, project)
	s.AddTool(create.Definition(), create.Handle)

	flag := tools.NewLinkFlagTool(r, project)
	s.AddTool(flag.Definition(), flag.Handle)

	listSuspect := tools.NewLinkListSuspectTool(r, project)
	s.AddTool(listSuspect.Definition(), listSuspect.Handle)

	confirm := tools.NewLinkConfirmTool(r, project)
	s.AddTool(confirm.Definition(), confirm.Handle)

	batchConfirm := tools.NewLinkBatchConfirmTool(r, project)
	s.AddTool(batchConfirm.Definition(), batchConfirm.Handle)

	retire := tools.NewLinkRetireNodeTool(r, project)
	s.AddTool(retire.Definition(), retire.Handle)
}

func serverInstructions() string {
	return `You have access to reqgraph, a requirements traceability server.

## Model

- Business requirements (BR-<task>-NNN) state what the business needs.
- System requirements (SR-<task>-NNN) state what the system must do.
- A BR lists its SRs in related_system_requirement_ids; an SR lists its BRs
  in business_requirement_ids. reqgraph keeps both sides in step on every save.
- Acceptance criteria (AC-<requirement>-NNN) live inside each requirement.
  Their verification state is stored separately with req_set_verification.
- Links connect any two nodes. A link is flagged suspect when an endpoint
  changes and stays suspect until someone confirms it.

## Editing requirements

1. req_list_task to load the current records (note each version).
2. req_save_batch with the changed records. Omit id for new records.
3. On a version conflict, reload and reapply. Never guess a version.
4. req_delete removes a requirement, its links and its ID from counterparts.
   Confirm with the user first.

## Reviewing suspect links

1. link_list_suspect
2. Discuss each link with the user.
3. link_confirm or link_batch_confirm for the ones that still hold.

Tool errors contain the store's message verbatim; show it to the user.`
}
