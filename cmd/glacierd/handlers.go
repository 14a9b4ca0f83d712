package main

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/dreamware/glacier/internal/access"
	"github.com/dreamware/glacier/internal/balance"
	"github.com/dreamware/glacier/internal/cluster"
	"github.com/dreamware/glacier/internal/config"
	"github.com/dreamware/glacier/internal/coordinator"
	"github.com/dreamware/glacier/internal/event"
	"github.com/dreamware/glacier/internal/freeze"
	"github.com/dreamware/glacier/internal/ledger"
	"github.com/dreamware/glacier/internal/router"
)

type server struct {
	svc  *freeze.Service
	root *coordinator.Root
	acl  *access.Store
	log  *zap.Logger
}

// newServer wires the whole tree: bus, capability store, shard set, root
// coordinator, balance ledger and facade, then registers the facade as
// the active implementation and creates the initial shards.
func newServer(cfg config.Config, log *zap.Logger) (*server, error) {
	bus := event.NewBus()
	bus.Subscribe(func(e event.Event) {
		log.Info("event", zap.String("kind", e.Kind()), zap.Any("detail", e))
	})

	acl := access.NewStore(cfg.RootAccount, bus)
	set := router.NewSet(cfg.MaxShards, bus)
	root := coordinator.NewRoot(cfg.RootAccount, cfg.Version, set, acl, bus)
	svc := freeze.NewService(root, acl, balance.NewMemory(), bus, cfg.AmountBits)
	root.RegisterImplementation(cfg.Version, svc)

	if cfg.InitialShards > 0 {
		if err := root.AddShards(cfg.RootAccount, cfg.InitialShards); err != nil {
			return nil, err
		}
	}

	return &server{svc: svc, root: root, acl: acl, log: log}, nil
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/frozen/set", s.handleFrozenOp(opSet))
		r.Post("/frozen/increase", s.handleFrozenOp(opIncrease))
		r.Post("/frozen/decrease", s.handleFrozenOp(opDecrease))
		r.Post("/frozen/transfer", s.handleFrozenOp(opTransfer))
		r.Get("/frozen/{account}", s.handleBalance)
		r.Get("/operations/{key}", s.handleOperation)
		r.Get("/route/{key}", s.handleRoute)

		r.Get("/shards", s.handleListShards)
		r.Post("/shards", s.handleAddShards)
		r.Put("/shards", s.handleReplaceShards)

		r.Post("/capabilities", s.handleConfigureCapability)
		r.Post("/grants", s.handleGrant)
		r.Post("/upgrade", s.handleUpgrade)
		r.Post("/pause", s.handlePause(true))
		r.Delete("/pause", s.handlePause(false))
	})

	return r
}

func caller(r *http.Request) string {
	return r.Header.Get(cluster.CallerHeader)
}

type frozenOp int

const (
	opSet frozenOp = iota
	opIncrease
	opDecrease
	opTransfer
)

func (s *server) handleFrozenOp(op frozenOp) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cluster.OperationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_json", err)
			return
		}
		key, err := ledger.ParseKey(req.Key)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_key", err)
			return
		}
		amount, ok := new(big.Int).SetString(req.Amount, 10)
		if !ok {
			s.writeError(w, http.StatusBadRequest, "bad_amount",
				errors.New("amount must be a decimal integer"))
			return
		}

		from := caller(r)
		switch op {
		case opSet:
			err = s.svc.SetFrozen(from, req.Account, amount, key)
		case opIncrease:
			err = s.svc.IncreaseFrozen(from, req.Account, amount, key)
		case opDecrease:
			err = s.svc.DecreaseFrozen(from, req.Account, amount, key)
		case opTransfer:
			if req.To == "" {
				s.writeError(w, http.StatusBadRequest, "bad_request",
					errors.New("transfer requires a recipient"))
				return
			}
			err = s.svc.TransferFrozen(from, req.Account, req.To, amount, key)
		}
		if err != nil {
			s.writeOpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *server) handleOperation(w http.ResponseWriter, r *http.Request) {
	key, err := ledger.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_key", err)
		return
	}
	op, err := s.svc.Operation(key)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, cluster.OperationResponse{
		Key:     op.Key.String(),
		Status:  op.Status.String(),
		Account: op.Account,
		Amount:  op.Amount,
	})
}

func (s *server) handleBalance(w http.ResponseWriter, r *http.Request) {
	account := chi.URLParam(r, "account")
	s.writeJSON(w, cluster.BalanceResponse{
		Account: account,
		Frozen:  s.svc.BalanceOfFrozen(account),
	})
}

func (s *server) handleRoute(w http.ResponseWriter, r *http.Request) {
	key, err := ledger.ParseKey(chi.URLParam(r, "key"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_key", err)
		return
	}
	idx, err := s.root.Set().Route(key)
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	s.writeJSON(w, cluster.RouteResponse{
		Key:   key.String(),
		Shard: idx,
		Of:    s.root.Set().Len(),
	})
}

// handleListShards reports the shard set. Optional index/limit query
// parameters select a sub-range; out-of-range requests yield an empty
// list, never an error.
func (s *server) handleListShards(w http.ResponseWriter, r *http.Request) {
	set := s.root.Set()
	index, limit := 0, set.Len()
	if v := r.URL.Query().Get("index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		index = n
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "bad_request", err)
			return
		}
		limit = n
	}

	shards := set.Range(index, limit)
	resp := cluster.ShardsResponse{
		Count:  set.Len(),
		Max:    set.Max(),
		Shards: make([]cluster.ShardInfo, len(shards)),
	}
	for i, shard := range shards {
		info := shard.Info()
		resp.Shards[i] = cluster.ShardInfo{
			Index:   index + i,
			ID:      info.ID,
			Version: info.Version,
			Records: info.RecordCount,
		}
	}
	s.writeJSON(w, resp)
}

func (s *server) handleAddShards(w http.ResponseWriter, r *http.Request) {
	var req cluster.AddShardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_json", err)
		return
	}
	if err := s.root.AddShards(caller(r), req.Count); err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleReplaceShards(w http.ResponseWriter, r *http.Request) {
	var req cluster.ReplaceShardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_json", err)
		return
	}
	if err := s.root.ReplaceShards(caller(r), req.From, req.Count); err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleConfigureCapability(w http.ResponseWriter, r *http.Request) {
	var req cluster.CapabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_json", err)
		return
	}
	if err := s.root.ConfigureCapability(caller(r), req.Account, req.Granted); err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleGrant(w http.ResponseWriter, r *http.Request) {
	var req cluster.GrantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_json", err)
		return
	}
	var err error
	if req.Granted {
		err = s.acl.Grant(caller(r), req.Capability, req.Account)
	} else {
		err = s.acl.Revoke(caller(r), req.Capability, req.Account)
	}
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	var req cluster.UpgradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "bad_json", err)
		return
	}

	var err error
	switch {
	case req.Root != "" && req.Shards != "":
		err = s.root.UpgradeAll(caller(r), req.Root, req.Shards)
	case req.Root != "":
		err = s.root.Upgrade(caller(r), req.Root)
	case req.Shards != "":
		err = s.root.UpgradeShards(caller(r), req.Shards)
	default:
		s.writeError(w, http.StatusBadRequest, "bad_request",
			errors.New("upgrade requires a root and/or shard target"))
		return
	}
	if err != nil {
		s.writeOpError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) handlePause(pause bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var err error
		if pause {
			err = s.acl.Pause(caller(r))
		} else {
			err = s.acl.Unpause(caller(r))
		}
		if err != nil {
			s.writeOpError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeOpError maps domain errors onto the HTTP surface. Idempotency
// conflicts get their own code so retrying clients can treat them as
// benign; partial fan-outs get their own code because they demand
// operator reconciliation.
func (s *server) writeOpError(w http.ResponseWriter, err error) {
	var (
		dup     *freeze.AlreadyExecutedError
		excess  *freeze.AmountExcessError
		unauth  *freeze.UnauthorizedError
		partial *coordinator.PropagationError
		shard   *freeze.ShardError
	)
	switch {
	case errors.As(err, &dup):
		s.writeError(w, http.StatusConflict, "already_executed", err)
	case errors.As(err, &excess):
		s.writeError(w, http.StatusBadRequest, "amount_excess", err)
	// Partial fan-outs are classified before their causes: a half-applied
	// change needs reconciliation whatever the first failing shard said.
	case errors.As(err, &partial):
		s.writeError(w, http.StatusBadGateway, "partial_propagation", err)
	case errors.Is(err, freeze.ErrKeyZero),
		errors.Is(err, freeze.ErrAmountInvalid),
		errors.Is(err, ledger.ErrAccountZero),
		errors.Is(err, access.ErrAccountZero),
		errors.Is(err, coordinator.ErrRootVersionZero),
		errors.Is(err, coordinator.ErrShardVersionZero),
		errors.Is(err, coordinator.ErrImplementationInvalid):
		s.writeError(w, http.StatusBadRequest, "invalid_argument", err)
	case errors.As(err, &unauth),
		errors.Is(err, access.ErrNotOwner),
		errors.Is(err, access.ErrNotPauser),
		errors.Is(err, ledger.ErrNotAdmin):
		s.writeError(w, http.StatusForbidden, "unauthorized", err)
	case errors.Is(err, freeze.ErrPaused):
		s.writeError(w, http.StatusServiceUnavailable, "paused", err)
	case errors.Is(err, router.ErrNoShardsConfigured):
		s.writeError(w, http.StatusServiceUnavailable, "no_shards", err)
	case errors.Is(err, router.ErrShardCountExceeded),
		errors.Is(err, router.ErrReplacementCountExceeded):
		s.writeError(w, http.StatusConflict, "shard_bound", err)
	case errors.As(err, &shard):
		s.writeError(w, http.StatusInternalServerError, "shard_error", err)
	default:
		s.writeError(w, http.StatusInternalServerError, "internal", err)
	}
}

func (s *server) writeError(w http.ResponseWriter, status int, code string, err error) {
	s.log.Warn("request failed", zap.String("code", code), zap.Error(err))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(cluster.ErrorResponse{Error: err.Error(), Code: code})
}

func (s *server) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}
