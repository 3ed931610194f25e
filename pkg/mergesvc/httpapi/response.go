package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/sirupsen/logrus"
)

func renderJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logrus.Errorf("httpapi: encode response: %v", err)
	}
}

type errorBody struct {
	Message string `json:"message"`
}

func renderError(w http.ResponseWriter, status int, format string, args ...any) {
	renderJSON(w, status, errorBody{Message: fmt.Sprintf(format, args...)})
}
