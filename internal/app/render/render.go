package render

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
)

// Component matches templ.Component.
type Component interface {
	Render(ctx context.Context, w io.Writer) error
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func Text(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, msg)
}

func HTML(w http.ResponseWriter, r *http.Request, status int, c Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := c.Render(r.Context(), w); err != nil {
		slog.Error("Failed to render page", "path", r.URL.Path, "error", err)
	}
}
