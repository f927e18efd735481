// Command exampleapp is a small budget API meant to run behind the bridge.
// Point app.source_dir (development) or app.artifact (production) at it.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"apibridge/pkg/appserve"
	"apibridge/pkg/httpx"
	"apibridge/pkg/logger"
	"apibridge/pkg/shutdown"
)

type transaction struct {
	ID     int       `json:"id"`
	Amount float64   `json:"amount"`
	Note   string    `json:"note,omitempty"`
	Date   time.Time `json:"date"`
}

type ledger struct {
	mu   sync.Mutex
	next int
	txs  []transaction
}

// month filters by "YYYY-MM"; empty returns everything.
func (l *ledger) list(month string) []transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := []transaction{}
	for _, t := range l.txs {
		if month == "" || t.Date.Format("2006-01") == month {
			out = append(out, t)
		}
	}
	return out
}

func (l *ledger) add(t transaction) transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.next++
	t.ID = l.next
	if t.Date.IsZero() {
		t.Date = time.Now().UTC()
	}
	l.txs = append(l.txs, t)
	return t
}

func newRouter(l *ledger) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)
	r.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		month := strings.TrimSpace(r.URL.Query().Get("month"))
		_ = httpx.WriteJSON(w, http.StatusOK, map[string]interface{}{
			"month":        month,
			"transactions": l.list(month),
		})
	}).Methods(http.MethodGet)
	r.HandleFunc("/transactions", func(w http.ResponseWriter, r *http.Request) {
		var t transaction
		if err := json.NewDecoder(r.Body).Decode(&t); err != nil {
			_ = httpx.JSONError(w, http.StatusBadRequest, "invalid json")
			return
		}
		_ = httpx.WriteJSON(w, http.StatusCreated, l.add(t))
	}).Methods(http.MethodPost)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = httpx.JSONError(w, http.StatusNotFound, "no route for "+r.URL.Path)
	})
	return r
}

func main() {
	addr := flag.String("addr", ":8080", "listen address when not started by the bridge")
	flag.Parse()

	logger.Init()
	defer logger.Sync()

	ctx, stop := shutdown.SetupSignalHandler(context.Background())
	defer stop()

	if err := appserve.Serve(ctx, newRouter(&ledger{}), *addr); err != nil {
		logger.Error("app_failed", zap.Error(err))
		os.Exit(1)
	}
}
