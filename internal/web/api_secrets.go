package web

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"conclave/internal/store"
)

// Secrets hold provider API keys. Values are sealed with the vault before
// they touch the database and are never returned by the API.

func (s *Server) registerSecretsAPI(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/secrets", s.listSecrets)
	mux.HandleFunc("POST /api/secrets", s.createSecret)
	mux.HandleFunc("GET /api/secrets/{name}", s.getSecret)
	mux.HandleFunc("PUT /api/secrets/{name}", s.updateSecret)
	mux.HandleFunc("DELETE /api/secrets/{name}", s.deleteSecret)
}

func secretToAPI(sec *store.Secret) map[string]any {
	return map[string]any{
		"id":          sec.ID,
		"name":        sec.Name,
		"description": sec.Description,
		"created_at":  sec.CreatedAt.UTC().Format(time.RFC3339),
		"updated_at":  sec.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func (s *Server) listSecrets(w http.ResponseWriter, r *http.Request) {
	secrets, err := s.store.ListSecrets()
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	out := make([]map[string]any, 0, len(secrets))
	for i := range secrets {
		out = append(out, secretToAPI(&secrets[i]))
	}
	jsonResponse(w, out)
}

func (s *Server) createSecret(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		jsonError(w, "vault not configured", http.StatusServiceUnavailable)
		return
	}

	var body struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Value       string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if body.Name == "" || body.Value == "" {
		jsonError(w, "name and value are required", http.StatusBadRequest)
		return
	}

	sealed, err := s.vault.Seal([]byte(body.Value))
	if err != nil {
		jsonError(w, "sealing failed", http.StatusInternalServerError)
		return
	}

	sec := &store.Secret{
		ID:          uuid.NewString(),
		Name:        body.Name,
		Description: body.Description,
		Sealed:      sealed,
	}
	if err := s.store.SaveSecret(sec); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, secretToAPI(sec))
}

func (s *Server) getSecret(w http.ResponseWriter, r *http.Request) {
	sec, err := s.store.GetSecret(r.PathValue("name"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if sec == nil {
		jsonError(w, "secret not found", http.StatusNotFound)
		return
	}
	jsonResponse(w, secretToAPI(sec))
}

func (s *Server) updateSecret(w http.ResponseWriter, r *http.Request) {
	if s.vault == nil {
		jsonError(w, "vault not configured", http.StatusServiceUnavailable)
		return
	}

	existing, err := s.store.GetSecret(r.PathValue("name"))
	if err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if existing == nil {
		jsonError(w, "secret not found", http.StatusNotFound)
		return
	}

	var body struct {
		Description *string `json:"description"`
		Value       *string `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		jsonError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if body.Description != nil {
		existing.Description = *body.Description
	}
	if body.Value != nil {
		sealed, err := s.vault.Seal([]byte(*body.Value))
		if err != nil {
			jsonError(w, "sealing failed", http.StatusInternalServerError)
			return
		}
		existing.Sealed = sealed
	}

	if err := s.store.SaveSecret(existing); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, secretToAPI(existing))
}

func (s *Server) deleteSecret(w http.ResponseWriter, r *http.Request) {
	if err := s.store.DeleteSecret(r.PathValue("name")); err != nil {
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	jsonResponse(w, map[string]string{"status": "deleted"})
}
