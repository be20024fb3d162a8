package main

import (
	"encoding/json"
	"net/http"

	"attendance.service/internal/ports/messaging"
	"attendance.service/pkg/logger"
	"github.com/rs/zerolog/log"
)

// notificationHandler logs every attendance notification it receives, so a
// local stack can be followed without a real downstream consumer.
func notificationHandler(w http.ResponseWriter, r *http.Request) {
	var n struct {
		messaging.Notification
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&n); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	if len(n.Data) == 0 {
		n.Data = json.RawMessage("null")
	}
	log.Info().
		Str("id", n.ID).
		Str("action", n.Action).
		Time("timestamp", n.Timestamp).
		RawJSON("data", n.Data).
		Msg("Received notification")
	w.WriteHeader(http.StatusOK)
}

func main() {
	logger.Setup(true)
	http.HandleFunc("/", notificationHandler)
	log.Info().Msg("Webhook mock server starting on port 8081...")
	log.Fatal().Err(http.ListenAndServe(":8081", nil)).Msg("Webhook mock stopped")
}
