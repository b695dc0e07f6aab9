package handlers

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/revenac/apiserver/internal/services"
)

const machineKeyHeader = "X-Machine-Key"

// MachineRouter registers the reverse-vending machine endpoints. Requests
// must carry the shared machine key.
func MachineRouter(r chi.Router, codeService *services.CodeService, machineKey string) {
	r.Use(requireMachineKey(machineKey))
	r.Post("/codes", func(w http.ResponseWriter, r *http.Request) {
		var deposit services.Deposit
		if err := decodeJSON(r, &deposit); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		code, err := codeService.Generate(r.Context(), deposit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, code)
	})
}

func requireMachineKey(key string) func(http.Handler) http.Handler {
	expected := []byte(key)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := []byte(strings.TrimSpace(r.Header.Get(machineKeyHeader)))
			if len(expected) == 0 || subtle.ConstantTimeCompare(got, expected) != 1 {
				writeError(w, http.StatusUnauthorized, "invalid machine key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
