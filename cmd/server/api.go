// api/handlers.go - HTTP handler functions for the REST API endpoints.
//
// This file contains the handler functions that are called when specific API endpoints are hit.
// It handles request parsing, calls the update service, and writes responses.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// artifactContentType is the content type devices expect for firmware downloads.
const artifactContentType = "binary/octet-stream"

// NewRouter builds the complete route tree.
func NewRouter(updateService *UpdateService, authService *DeviceAuthService, logger *log.Logger) *mux.Router {
	router := mux.NewRouter()
	router.Use(RequestLogger(logger))

	SetupPublicRoutes(router, updateService, logger)
	SetupUpdateRoutes(router, updateService, authService, logger)
	return router
}

// SetupPublicRoutes defines endpoints that do not require device authentication.
func SetupPublicRoutes(router *mux.Router, updateService *UpdateService, logger *log.Logger) {
	router.HandleFunc("/hello/{name}", handleHello()).Methods("GET")
	router.HandleFunc("/api/v1/status", handleGetStatus(updateService)).Methods("GET")
}

// SetupUpdateRoutes defines the update check and download endpoints.
func SetupUpdateRoutes(router *mux.Router, updateService *UpdateService, authService *DeviceAuthService, logger *log.Logger) {
	updateRouter := router.PathPrefix("/updates").Subrouter()
	updateRouter.Use(authService.DeviceTokenMiddleware)

	updateRouter.HandleFunc("", handleCheckForUpdate(updateService, logger)).Methods("GET")
	updateRouter.HandleFunc("/{artifact_id}", handleDownloadArtifact(updateService, logger)).Methods("GET")
}

// --- Public Endpoints Handlers ---

func handleHello() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprintf(w, "Hello, %s!", name)
	}
}

func handleGetStatus(updateService *UpdateService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, updateService.Status())
	}
}

// --- Update Endpoints Handlers ---

// handleCheckForUpdate answers GET /updates?hwv=X&fwv=Y[&all=true].
// Without all it returns the best release, or 204 when the device has no compatible upgrade.
func handleCheckForUpdate(updateService *UpdateService, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()
		hwv := query.Get("hwv")
		fwv := query.Get("fwv")
		if hwv == "" || fwv == "" {
			respondError(w, http.StatusBadRequest, "Query parameters hwv and fwv are required")
			return
		}

		listAll := false
		if raw := query.Get("all"); raw != "" {
			parsed, err := strconv.ParseBool(raw)
			if err != nil {
				respondError(w, http.StatusBadRequest, fmt.Sprintf("Invalid value for all: %q", raw))
				return
			}
			listAll = parsed
		}

		if listAll {
			releases, err := updateService.ListEligibleReleases(hwv, fwv)
			if err != nil {
				respondResolveError(w, err, logger)
				return
			}
			response := make([]ReleaseResponse, 0, len(releases))
			for _, release := range releases {
				response = append(response, NewReleaseResponse(release))
			}
			respondJSON(w, http.StatusOK, response)
			return
		}

		release, err := updateService.CheckForUpdate(hwv, fwv)
		if err != nil {
			respondResolveError(w, err, logger)
			return
		}
		if release == nil {
			respondNoContent(w)
			return
		}
		respondJSON(w, http.StatusOK, NewReleaseResponse(release))
	}
}

// handleDownloadArtifact streams a firmware binary. Range requests are honored so interrupted downloads can resume.
func handleDownloadArtifact(updateService *UpdateService, logger *log.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		artifactID := mux.Vars(r)["artifact_id"]

		artifact, err := updateService.OpenArtifact(artifactID)
		if err != nil {
			if errors.Is(err, ErrArtifactNotFound) {
				respondError(w, http.StatusNotFound, fmt.Sprintf("Artifact not found: %s", artifactID))
				return
			}
			logger.Printf("Failed to open artifact %s: %v", artifactID, err)
			respondError(w, http.StatusInternalServerError, "Failed to open artifact")
			return
		}
		defer artifact.Close()

		w.Header().Set("Content-Type", artifactContentType)
		http.ServeContent(w, r, artifactID, artifact.Info().ModTime, artifact)
	}
}

// --- Helper functions ---

// respondResolveError maps resolution errors to client or server errors.
// Invalid versions are caller mistakes and are not logged as faults.
func respondResolveError(w http.ResponseWriter, err error, logger *log.Logger) {
	if errors.Is(err, ErrInvalidVersion) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	logger.Printf("Unexpected resolution error: %v", err)
	respondError(w, http.StatusInternalServerError, "Failed to resolve update")
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		response, _ := json.Marshal(payload)
		w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
