package vaultd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"nhooyr.io/websocket"

	"github.com/ogazboiz/sonic-rush/client"
	"github.com/ogazboiz/sonic-rush/vault"
)

const wsWriteTimeout = 10 * time.Second

// Server exposes vaultd's mirrored state and action surface over HTTP: JSON
// views of the last-known snapshots, a submission endpoint routed through
// the lifecycle controller, a websocket feed of per-second stream
// projections, and Prometheus metrics.
type Server struct {
	mirror      *Mirror
	controller  *Controller
	coordinator *Coordinator
	identity    *Identity
	log         *slog.Logger
	router      chi.Router
}

// NewServer wires the HTTP surface.
func NewServer(mirror *Mirror, controller *Controller, coordinator *Coordinator, identity *Identity, limits RateLimitConfig, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		mirror:      mirror,
		controller:  controller,
		coordinator: coordinator,
		identity:    identity,
		log:         log,
	}
	r := chi.NewRouter()
	r.Use(newRateLimiter(limits).Middleware)
	r.Get("/healthz", s.handleHealth)
	r.Get("/status", s.handleStatus)
	r.Get("/vault", s.handleVault)
	r.Get("/stake", s.handleStake)
	r.Get("/streams/{id}", s.handleStream)
	r.Get("/ws/streams/{id}", s.handleStreamWS)
	r.Post("/actions/{kind}", s.handleAction)
	r.Post("/identity", s.handleSetIdentity)
	r.Delete("/identity", s.handleClearIdentity)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	s.router = r
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, client.ErrSubmissionRejected):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, client.ErrRemoteUnavailable):
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type pendingJSON struct {
	ID          string `json:"id"`
	Kind        string `json:"kind"`
	TxHash      string `json:"tx_hash"`
	Status      string `json:"status"`
	Detail      string `json:"detail"`
	SubmittedAt string `json:"submitted_at"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	pending := s.controller.Pending()
	out := make([]pendingJSON, 0, len(pending))
	for _, req := range pending {
		out = append(out, pendingJSON{
			ID:          req.ID,
			Kind:        string(req.Kind),
			TxHash:      req.TxHash.Hex(),
			Status:      string(req.Status),
			Detail:      req.Payload.Describe(),
			SubmittedAt: req.SubmittedAt.UTC().Format(time.RFC3339),
		})
	}
	identity := ""
	if addr, ok := s.identity.Current(); ok {
		identity = addr.Hex()
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"refresh_generation": s.coordinator.Generation(),
		"identity":           identity,
		"pending":            out,
	})
}

func (s *Server) handleVault(w http.ResponseWriter, _ *http.Request) {
	resp := map[string]interface{}{}
	if stats, ok := s.mirror.Stats.Last(); ok {
		resp["stats"] = map[string]string{
			"total_staked":  bigString(stats.TotalStaked),
			"reward_pool":   bigString(stats.RewardPool),
			"total_streams": bigString(stats.TotalStreams),
		}
	}
	if info, ok := s.mirror.Balance.Last(); ok {
		resp["balance"] = map[string]string{
			"balance":               bigString(info.Balance),
			"total_staked":          bigString(info.TotalStaked),
			"available_for_rewards": bigString(info.AvailableForRewards),
			"owner_revenue":         bigString(info.OwnerRevenue),
			"charity_funds":         bigString(info.CharityFunds),
		}
	}
	if info, ok := s.mirror.Activity.Last(); ok {
		resp["activity"] = map[string]string{
			"active_streams": bigString(info.ActiveStreams),
			"active_stakers": bigString(info.ActiveStakers),
			"last_activity":  bigString(info.LastActivity),
		}
	}
	if fees, ok := s.mirror.Fees.Last(); ok {
		resp["fees"] = map[string]string{
			"streaming_fee_bps": bigString(fees.StreamingFeeBps),
			"collected":         bigString(fees.Collected),
			"owner_share":       bigString(fees.OwnerShare),
			"charity_share":     bigString(fees.CharityShare),
		}
	}
	if split, ok := s.mirror.Split.Last(); ok {
		resp["revenue_split"] = map[string]string{
			"owner_bps":   bigString(split.OwnerBps),
			"charity_bps": bigString(split.CharityBps),
		}
	}
	if apy, ok := s.mirror.APY.Last(); ok {
		resp["current_apy_bps"] = bigString(apy)
	}
	if excess, ok := s.mirror.Excess.Last(); ok {
		resp["excess_funds"] = bigString(excess)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStake(w http.ResponseWriter, _ *http.Request) {
	if _, ok := s.identity.Current(); !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no participant identity configured"})
		return
	}
	stake, ok := s.mirror.Stake.Last()
	if !ok {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "stake not yet fetched"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"amount":              bigString(stake.Amount),
		"start_time":          stake.StartTime,
		"last_claim_time":     stake.LastClaimTime,
		"accumulated_rewards": bigString(stake.AccumulatedRewards),
		"active":              stake.IsActive,
		"projected_share":     bigString(s.mirror.ProjectedRewardShare()),
	})
}

func parseStreamID(r *http.Request) (uint64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid stream id %q", raw)
	}
	return id, nil
}

func streamJSON(stream vault.Stream) map[string]interface{} {
	return map[string]interface{}{
		"sender":           stream.Sender.Hex(),
		"recipient":        stream.Recipient.Hex(),
		"total_amount":     bigString(stream.TotalAmount),
		"flow_rate":        bigString(stream.FlowRate),
		"start_time":       stream.StartTime,
		"stop_time":        stream.StopTime,
		"amount_withdrawn": bigString(stream.AmountWithdrawn),
		"active":           stream.IsActive,
	}
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	view, err := s.mirror.OpenStream(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	defer s.mirror.ReleaseStream(id)

	resp := map[string]interface{}{}
	if stream, ok := view.Stream(); ok {
		resp["stream"] = streamJSON(stream)
		resp["projected_claimable"] = vault.ClaimableAt(stream, time.Now()).String()
	}
	if claimable, ok := view.LedgerClaimable(); ok {
		resp["ledger_claimable"] = bigString(claimable)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStreamWS(w http.ResponseWriter, r *http.Request) {
	id, err := parseStreamID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	view, err := s.mirror.OpenStream(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadGateway)
		return
	}
	defer s.mirror.ReleaseStream(id)

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: []string{"*"}})
	if err != nil {
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "stream closed")

	updates, stop := view.Watch()
	defer stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if err := writeUpdate(ctx, conn, update); err != nil {
				return
			}
			if !update.Active {
				return
			}
		}
	}
}

func writeUpdate(ctx context.Context, conn *websocket.Conn, update ProjectionUpdate) error {
	payload, err := json.Marshal(update)
	if err != nil {
		return err
	}
	writeCtx, cancel := context.WithTimeout(ctx, wsWriteTimeout)
	defer cancel()
	return conn.Write(writeCtx, websocket.MessageText, payload)
}

type actionRequest struct {
	Recipient string `json:"recipient"`
	Amount    string `json:"amount"`
	Duration  uint64 `json:"duration"`
	StreamID  string `json:"stream_id"`
	NewRate   string `json:"new_rate"`
	Paused    bool   `json:"paused"`
}

func parseBig(field, raw string) (*big.Int, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}
	value, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, raw)
	}
	return value, nil
}

func (s *Server) handleAction(w http.ResponseWriter, r *http.Request) {
	kind := Kind(strings.TrimSpace(chi.URLParam(r, "kind")))
	var req actionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	payload := Payload{Kind: kind, Duration: req.Duration, Paused: req.Paused}
	if trimmed := strings.TrimSpace(req.Recipient); trimmed != "" {
		if !common.IsHexAddress(trimmed) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed recipient address"})
			return
		}
		payload.Recipient = common.HexToAddress(trimmed)
	}
	var err error
	if payload.Amount, err = parseBig("amount", req.Amount); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if payload.StreamID, err = parseBig("stream_id", req.StreamID); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if payload.NewRate, err = parseBig("new_rate", req.NewRate); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	// The await outlives the HTTP request; teardown is process shutdown,
	// not the end of this handler.
	pending, err := s.controller.Submit(context.WithoutCancel(r.Context()), payload)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, pendingJSON{
		ID:          pending.ID,
		Kind:        string(pending.Kind),
		TxHash:      pending.TxHash.Hex(),
		Status:      string(pending.Status),
		Detail:      pending.Payload.Describe(),
		SubmittedAt: pending.SubmittedAt.UTC().Format(time.RFC3339),
	})
}

type identityRequest struct {
	Address string `json:"address"`
}

func (s *Server) handleSetIdentity(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	trimmed := strings.TrimSpace(req.Address)
	if !common.IsHexAddress(trimmed) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed address"})
		return
	}
	s.identity.Set(common.HexToAddress(trimmed))
	writeJSON(w, http.StatusOK, map[string]string{"identity": common.HexToAddress(trimmed).Hex()})
}

func (s *Server) handleClearIdentity(w http.ResponseWriter, _ *http.Request) {
	s.identity.Clear()
	w.WriteHeader(http.StatusNoContent)
}
