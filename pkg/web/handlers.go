package web

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"

	"github.com/lisanmuaddib/allowance-go/pkg/approval"
	"github.com/lisanmuaddib/allowance-go/pkg/wallet"
)

const allowanceReadTimeout = 3 * time.Second

type networkView struct {
	ChainID        uint64 `json:"chainId"`
	Name           string `json:"name"`
	Explorer       string `json:"explorer,omitempty"`
	NativeCurrency string `json:"nativeCurrency,omitempty"`
	Router         string `json:"router,omitempty"`
	Active         bool   `json:"active"`
}

type stateView struct {
	Status     wallet.Status     `json:"status"`
	Account    string            `json:"account,omitempty"`
	Connector  string            `json:"connector,omitempty"`
	ChainID    uint64            `json:"chainId"`
	Connectors []string          `json:"connectors"`
	Running    bool              `json:"running"`
	Snapshot   approval.Snapshot `json:"snapshot"`
}

type pageView struct {
	stateView
	Networks  []networkView
	Router    string
	TxURL     string
	Allowance string
	Notice    string
}

type approveRequest struct {
	Token string `json:"token"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	view := pageView{
		stateView: s.state(),
		Networks:  s.networks(),
		Notice:    r.URL.Query().Get("notice"),
	}

	if router, ok := s.routers.Lookup(view.ChainID); ok {
		view.Router = router.Hex()
	}
	if network, ok := s.registry.Network(view.Snapshot.ChainID); ok {
		view.TxURL = network.TxURL(view.Snapshot.TxHash)
	}
	view.Allowance = s.currentAllowance(r.Context(), view.Snapshot)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.page.Execute(w, view); err != nil {
		s.logger.WithError(err).Error("Failed to render page")
	}
}

func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	kind := r.FormValue("connector")
	if _, err := s.connector.Connect(r.Context(), kind); err != nil {
		s.logger.WithError(err).WithField("connector", kind).Warn("Connect failed")
		s.redirect(w, r, wallet.UserMessage(err, "Failed to connect wallet"))
		return
	}
	s.redirect(w, r, "")
}

func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	s.connector.Disconnect()
	s.redirect(w, r, "")
}

func (s *Server) handleNetwork(w http.ResponseWriter, r *http.Request) {
	chainID, err := strconv.ParseUint(r.FormValue("chain_id"), 10, 64)
	if err != nil {
		s.redirect(w, r, "Invalid network")
		return
	}
	if err := s.connector.SwitchChain(r.Context(), chainID); err != nil {
		s.logger.WithError(err).WithField("chain_id", chainID).Warn("Network switch failed")
		s.redirect(w, r, wallet.UserMessage(err, "Failed to switch network"))
		return
	}
	s.redirect(w, r, "")
}

func (s *Server) handleApproveForm(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		http.Error(w, "Too many approval requests", http.StatusTooManyRequests)
		return
	}

	snap, err := s.flow.Approve(r.Context(), r.FormValue("token"))
	if err == nil {
		s.afterApprove(snap)
	}
	s.redirect(w, r, "")
}

func (s *Server) handleApproveAPI(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "too many approval requests"})
		return
	}

	var req approveRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4096)).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return
	}

	snap, err := s.flow.Approve(r.Context(), req.Token)
	if errors.Is(err, approval.ErrFlowInProgress) {
		writeJSON(w, http.StatusConflict, errorResponse{Error: err.Error()})
		return
	}

	s.afterApprove(snap)
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleNetworks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.networks())
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.state())
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	snap := s.flow.Snapshot()
	s.hub.ServeWS(w, r, &Event{Type: EventSnapshot, Snapshot: &snap})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "ok",
		"chainId":   s.connector.ChainID(),
		"transport": s.connector.PublicClient() != nil,
		"clients":   s.hub.ClientCount(),
	})
}

func (s *Server) state() stateView {
	view := stateView{
		Status:     s.connector.Status(),
		Connector:  s.connector.ActiveConnector(),
		ChainID:    s.connector.ChainID(),
		Connectors: s.connector.Connectors(),
		Running:    s.flow.Running(),
		Snapshot:   s.flow.Snapshot(),
	}
	if account, ok := s.connector.Account(); ok {
		view.Account = account.Hex()
	}
	return view
}

func (s *Server) networks() []networkView {
	active := s.connector.ChainID()
	networks := s.registry.Networks()

	out := make([]networkView, 0, len(networks))
	for _, n := range networks {
		v := networkView{
			ChainID:        n.ChainID,
			Name:           n.Name,
			Explorer:       n.Explorer,
			NativeCurrency: n.NativeCurrency,
			Active:         n.ChainID == active,
		}
		if router, ok := s.routers.Lookup(n.ChainID); ok {
			v.Router = router.Hex()
		}
		out = append(out, v)
	}
	return out
}

// currentAllowance reads the router allowance for the token of the last run,
// if that run was on the active chain. Failures are logged and shown as blank.
func (s *Server) currentAllowance(ctx context.Context, snap approval.Snapshot) string {
	owner, ok := s.connector.Account()
	if !ok || snap.Token == "" || snap.ChainID != s.connector.ChainID() {
		return ""
	}
	router, ok := s.routers.Lookup(snap.ChainID)
	if !ok {
		return ""
	}
	transport := s.connector.PublicClient()
	if transport == nil {
		return ""
	}
	token, err := wallet.ParseAddress(snap.Token)
	if err != nil {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, allowanceReadTimeout)
	defer cancel()

	remaining, err := wallet.Allowance(ctx, transport, token, owner, router)
	if err != nil {
		s.logger.WithError(err).WithField("token", snap.Token).Debug("Allowance read failed")
		return ""
	}
	if remaining.Cmp(wallet.MaxAllowance()) == 0 {
		return "unlimited"
	}
	return remaining.String()
}

func (s *Server) afterApprove(snap approval.Snapshot) {
	if !s.watchReceipts || snap.State != approval.StateSucceeded {
		return
	}
	go s.watchReceipt(snap.ChainID, common.HexToHash(snap.TxHash))
}

func (s *Server) watchReceipt(chainID uint64, hash common.Hash) {
	logger := s.logger.WithFields(logrus.Fields{
		"chain_id": chainID,
		"tx_hash":  hash.Hex(),
	})

	transport, ok := s.connector.TransportFor(chainID)
	if !ok {
		logger.Warn("No transport to watch receipt")
		return
	}

	status, err := wallet.WaitForReceipt(s.baseCtx, transport, chainID, hash, s.receiptOptions)
	if err != nil {
		logger.WithError(err).Warn("Receipt not confirmed")
		return
	}

	logger.WithField("status", status.Status).Info("Approval receipt confirmed")
	s.hub.Broadcast(Event{Type: EventReceipt, Receipt: status})
}

func (s *Server) redirect(w http.ResponseWriter, r *http.Request, notice string) {
	target := "/"
	if notice = strings.TrimSpace(notice); notice != "" {
		target = "/?notice=" + url.QueryEscape(notice)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// crossSiteGuard rejects state-changing requests sent by another site. Requests
// carrying neither Sec-Fetch-Site nor Origin come from non-browser clients.
func (s *Server) crossSiteGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
			return
		}

		if !sameOrigin(r) {
			s.logger.WithFields(logrus.Fields{
				"path":           r.URL.Path,
				"origin":         r.Header.Get("Origin"),
				"sec_fetch_site": r.Header.Get("Sec-Fetch-Site"),
			}).Warn("Cross-site request rejected")
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "cross-site request rejected"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func sameOrigin(r *http.Request) bool {
	switch r.Header.Get("Sec-Fetch-Site") {
	case "same-origin", "none":
		return true
	case "":
	default:
		return false
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// recoverMiddleware turns handler panics into a 500 JSON response.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				s.logger.WithFields(logrus.Fields{
					"error": fmt.Sprintf("%v", err),
					"path":  r.URL.Path,
					"stack": string(debug.Stack()),
				}).Error("Handler panic recovered")
				writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "Internal server error"})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
