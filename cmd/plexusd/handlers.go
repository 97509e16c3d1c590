package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/plexuslabs/plexus/engine/graph"
	"github.com/plexuslabs/plexus/engine/ingest"
	"github.com/plexuslabs/plexus/engine/query"
	"github.com/plexuslabs/plexus/engine/telemetry"
)

func registerRoutes(mux *http.ServeMux, eng *graph.Engine, pipeline *ingest.Pipeline, facade *query.Facade, metrics *telemetry.Metrics, events eventPublisher, logger *slog.Logger) {
	mux.HandleFunc("GET /api/v1/health", handleHealth)

	// Context lifecycle surface (section 6).
	mux.HandleFunc("POST /api/v1/contexts", handleContextCreate(eng, logger))
	mux.HandleFunc("GET /api/v1/contexts", handleContextList(eng))
	mux.HandleFunc("DELETE /api/v1/contexts/{id}", handleContextDelete(eng, logger))
	mux.HandleFunc("POST /api/v1/contexts/{id}/rename", handleContextRename(eng, logger))

	// Ingest surface (section 6).
	mux.HandleFunc("POST /api/v1/contexts/{id}/ingest", handleIngest(pipeline, metrics, events, logger))

	// Read surface (section 4.8).
	mux.HandleFunc("GET /api/v1/contexts/{id}/nodes", handleFindNodes(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/traverse", handleTraverse(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/path", handleFindPath(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/evidence/{concept_id}", handleEvidenceTrail(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/chains", handleListChains(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/chains/{chain_id}", handleGetChain(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/marks", handleListMarks(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/tags", handleListTags(facade))
	mux.HandleFunc("GET /api/v1/contexts/{id}/marks/{mark_id}/links", handleGetLinks(facade))
	mux.HandleFunc("GET /api/v1/shared-concepts", handleSharedConcepts(facade))
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- Context lifecycle ---

type createContextRequest struct {
	ID string `json:"id"`
}

func handleContextCreate(eng *graph.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createContextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
			writeError(w, http.StatusBadRequest, "id is required")
			return
		}
		if _, err := eng.CreateContext(r.Context(), req.ID); err != nil {
			logger.Error("context_create failed", "err", err)
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		writeJSON(w, http.StatusCreated, map[string]string{"id": req.ID})
	}
}

func handleContextList(eng *graph.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string][]string{"contexts": eng.ListContexts()})
	}
}

func handleContextDelete(eng *graph.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		if err := eng.DeleteContext(r.Context(), id); err != nil {
			logger.Error("context_delete failed", "err", err)
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

type renameContextRequest struct {
	NewID string `json:"new_id"`
}

func handleContextRename(eng *graph.Engine, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := r.PathValue("id")
		var req renameContextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.NewID == "" {
			writeError(w, http.StatusBadRequest, "new_id is required")
			return
		}
		if err := eng.RenameContext(r.Context(), id, req.NewID); err != nil {
			logger.Error("context_rename failed", "err", err)
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": req.NewID})
	}
}

// --- Ingest ---

func handleIngest(pipeline *ingest.Pipeline, metrics *telemetry.Metrics, events eventPublisher, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contextID := r.PathValue("id")
		inputKind := r.URL.Query().Get("input_kind")
		if inputKind == "" {
			writeError(w, http.StatusBadRequest, "input_kind query parameter is required")
			return
		}
		payload, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "could not read request body")
			return
		}

		start := time.Now()
		result, err := pipeline.Ingest(r.Context(), contextID, inputKind, payload)
		elapsed := time.Since(start).Seconds()

		if err != nil {
			logger.Error("ingest failed", "context_id", contextID, "input_kind", inputKind, "err", err)
			metrics.RecordIngest(r.Context(), inputKind, "error", elapsed)
			writeError(w, httpStatusFor(err), err.Error())
			return
		}

		outcome := "ok"
		if result.Cancelled {
			outcome = "cancelled"
		}
		metrics.RecordIngest(r.Context(), inputKind, outcome, elapsed)
		for _, rej := range result.Rejections {
			metrics.RecordEdgeRejected(r.Context(), rej.Relationship)
		}
		events.Publish(r.Context(), contextID, result.OutboundEvents)
		writeJSON(w, http.StatusOK, result)
	}
}

// --- Read surface ---

func handleFindNodes(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		pred := query.Predicate{
			Type:        q.Get("type"),
			ContentType: graph.ContentType(q.Get("content_type")),
			Dimension:   graph.Dimension(q.Get("dimension")),
		}
		nodes, err := facade.FindNodes(r.PathValue("id"), pred)
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
	}
}

func handleTraverse(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		depth, _ := strconv.Atoi(q.Get("depth"))
		if depth <= 0 {
			depth = 1
		}
		dir := query.Direction(q.Get("direction"))
		if dir == "" {
			dir = query.DirectionOut
		}
		nodes, err := facade.Traverse(r.PathValue("id"), q.Get("start"), depth, dir, q.Get("relationship"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"nodes": nodes})
	}
}

func handleFindPath(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		path, err := facade.FindPath(r.PathValue("id"), q.Get("from"), q.Get("to"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"path": path})
	}
}

func handleEvidenceTrail(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		trail, err := facade.EvidenceTrail(r.PathValue("id"), r.PathValue("concept_id"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, trail)
	}
}

func handleListChains(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chains, err := facade.ListChains(r.PathValue("id"), r.URL.Query().Get("status"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"chains": chains})
	}
}

func handleGetChain(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		chain, ok, err := facade.GetChain(r.PathValue("id"), r.PathValue("chain_id"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		if !ok {
			writeError(w, http.StatusNotFound, "chain not found")
			return
		}
		writeJSON(w, http.StatusOK, chain)
	}
}

func handleListMarks(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		marks, err := facade.ListMarks(r.PathValue("id"), query.Predicate{})
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"marks": marks})
	}
}

func handleListTags(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tags, err := facade.ListTags(r.PathValue("id"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"tags": tags})
	}
}

func handleGetLinks(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		links, err := facade.GetLinks(r.PathValue("id"), r.PathValue("mark_id"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"links": links})
	}
}

func handleSharedConcepts(facade *query.Facade) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		shared, err := facade.SharedConcepts(r.Context(), q.Get("a"), q.Get("b"))
		if err != nil {
			writeError(w, httpStatusFor(err), err.Error())
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"shared_concepts": shared})
	}
}
