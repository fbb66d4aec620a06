package api

import (
	"net/http"

	"serotonyl.ru/deal-desk/internal/common"
	"serotonyl.ru/deal-desk/internal/features/credits"
)

// --- Сделки участника ---

func (s *Server) handleListDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	list, err := s.deps.Deals.ListForParty(r.Context(), userID(r), q.Get("role"), q.Get("status"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deals": list, "count": len(list)})
}

func (s *Server) handleDealStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.deps.Deals.Stats(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "stats": st.Counts, "avgResponseTime": st.AvgResponseTime})
}

func (s *Server) handleGetDeal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.deps.Deals.GetForParty(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deal": d})
}

type statusRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes"`
}

func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.Status == "" {
		writeError(w, common.Wrapf(common.ErrMissingField, "поле status обязательно"))
		return
	}
	res, err := s.deps.Deals.Transition(r.Context(), userID(r), id, req.Status, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":                true,
		"message":                res.Message,
		"deal":                   res.Deal,
		"waitingForConfirmation": res.Waiting,
	})
}

// --- Посты ---

func (s *Server) handleUnlock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	res, err := s.deps.Unlock.Unlock(r.Context(), userID(r), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "result": res})
}

func (s *Server) handleDealToggle(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.deps.Deals.ResolveForPost(r.Context(), userID(r), id, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "post": res.Post, "resolvedDeals": res.Resolved, "skipped": res.Skipped})
}

// --- Профиль ---

func (s *Server) handleMyCredits(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	b, err := s.deps.Credits.Balances(r.Context(), uid)
	if err != nil {
		writeError(w, err)
		return
	}
	history, err := s.deps.Credits.History(r.Context(), uid, queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "balances": b, "history": history})
}

func (s *Server) handleMyWorkspace(w http.ResponseWriter, r *http.Request) {
	sum, err := s.deps.Workspace.Summary(r.Context(), userID(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "workspace": sum})
}

func (s *Server) handleMyNotifications(w http.ResponseWriter, r *http.Request) {
	if s.deps.Inbox == nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "notifications": []any{}})
		return
	}
	list, err := s.deps.Inbox.Recent(r.Context(), userID(r), queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "notifications": list})
}

func (s *Server) handleLinkTelegram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ChatID int64 `json:"chatId"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.ChatID == 0 {
		writeError(w, common.Wrapf(common.ErrMissingField, "не указан chatId"))
		return
	}
	if err := s.deps.Users.LinkTelegram(r.Context(), userID(r), req.ChatID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Telegram привязан"})
}

// --- Админка ---

func (s *Server) handleAdminLogin(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	session, err := s.deps.Admin.Login(r.Context(), userID(r), req.Token)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "session": session})
}

func (s *Server) handleAdminLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Admin.Logout(r.Context(), userID(r)); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (s *Server) handleAdminListDeals(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := s.deps.Deals.AdminList(r.Context(), q.Get("status"), q.Get("search"),
		queryInt(r, "page", 1), queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deals": page.Deals, "pagination": map[string]int{
		"total": page.Total, "page": page.Page, "pages": page.Pages,
	}})
}

func (s *Server) handleAdminGetDeal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.deps.Deals.AdminGet(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deal": d})
}

func (s *Server) handleAdminUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var req statusRequest
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := s.deps.Deals.AdminOverride(r.Context(), userID(r), id, req.Status, req.Notes)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Статус сделки изменён администратором", "deal": d})
}

func (s *Server) handleAdminForceClose(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, err)
		return
	}
	d, err := s.deps.Deals.ForceClose(r.Context(), userID(r), id, r.URL.Query().Get("reason"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Сделка закрыта", "deal": d})
}

func (s *Server) handleAdminAnalytics(w http.ResponseWriter, r *http.Request) {
	a, err := s.deps.Deals.Analytics(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "analytics": a})
}

// --- Внутренние вызовы ---

func (s *Server) handleInternalCreateDeal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PostID     int64 `json:"postId"`
		UnlockerID int64 `json:"unlockerId"`
		AuthorID   int64 `json:"authorId"`
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.PostID <= 0 || req.UnlockerID <= 0 || req.AuthorID <= 0 {
		writeError(w, common.Wrapf(common.ErrMissingField, "postId, unlockerId и authorId обязательны"))
		return
	}
	d, err := s.deps.Deals.Create(r.Context(), req.PostID, req.UnlockerID, req.AuthorID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "deal": d})
}

func (s *Server) handleInternalTopUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID int64 `json:"userId"`
		credits.Grant
	}
	if err := decode(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.UserID <= 0 {
		writeError(w, common.Wrapf(common.ErrMissingField, "userId обязателен"))
		return
	}
	b, err := s.deps.Credits.TopUp(r.Context(), req.UserID, req.Grant)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "balances": b})
}
