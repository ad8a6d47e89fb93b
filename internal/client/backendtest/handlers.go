package backendtest

import (
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"strconv"

	"github.com/dmitrijs2005/wgdaemon/internal/client/models"
	"github.com/dmitrijs2005/wgdaemon/internal/common"
	"github.com/dmitrijs2005/wgdaemon/internal/cryptox"
	"github.com/go-chi/chi/v5"
)

func (s *Server) handleAuthenticate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDToken string `json:"idToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.IDToken == "" {
		writeError(w, http.StatusBadRequest, "idToken is required")
		return
	}
	switch chi.URLParam(r, "provider") {
	case "google", "microsoft":
	default:
		writeError(w, http.StatusNotFound, "unknown provider")
		return
	}

	u, ok := s.findAccount(func(a account) bool { return a.idToken == req.IDToken })
	if !ok {
		writeError(w, http.StatusUnauthorized, "Invalid identity token")
		return
	}
	s.writeSession(w, u)
}

func (s *Server) findAccount(match func(account) bool) (models.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.accounts {
		if match(a) {
			return a.user, true
		}
	}
	return models.User{}, false
}

func (s *Server) handleSendCode(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}
	s.mu.Lock()
	s.codes[req.Email] = 100000 + rand.IntN(900000)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
		Token int    `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mu.Lock()
	code, ok := s.codes[req.Email]
	if ok && code == req.Token {
		delete(s.codes, req.Email)
	}
	s.mu.Unlock()

	u, found := s.findAccount(func(a account) bool { return a.user.Email == req.Email })
	if !ok || code != req.Token || !found {
		writeError(w, http.StatusUnauthorized, "Invalid verification code")
		return
	}
	s.writeSession(w, u)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ck, err := r.Cookie(common.RefreshTokenCookieName)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Refresh token missing")
		return
	}
	uid, err := s.parseToken(ck.Value, "refresh")
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Refresh token invalid")
		return
	}
	access, err := s.issue(uid, "access", s.tokenTTL)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	http.SetCookie(w, &http.Cookie{Name: common.AccessTokenCookieName, Value: access, Path: "/", HttpOnly: true})
	writeJSON(w, http.StatusOK, map[string]string{"accessToken": access})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request, uid int64) {
	writeJSON(w, http.StatusOK, true)
}

func (s *Server) handleCreateDaemon(w http.ResponseWriter, r *http.Request, uid int64) {
	pathUID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil || pathUID != uid {
		writeError(w, http.StatusForbidden, "Forbidden resource")
		return
	}
	var req struct {
		PublicKey string `json:"publicKey"`
		Name      string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}
	pub, err := cryptox.DecodeKey(req.PublicKey, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "publicKey must be a base64 Ed25519 key")
		return
	}
	company := chi.URLParam(r, "company")

	s.mu.Lock()
	for _, d := range s.daemons {
		if d.Company == company && d.Name == req.Name {
			s.mu.Unlock()
			writeError(w, http.StatusConflict, "Daemon name already taken")
			return
		}
	}
	s.nextID++
	ip := s.nextIP
	s.nextIP = ""
	if ip == "" {
		ip = fmt.Sprintf("10.10.%d.%d", (s.nextID>>8)&0xff, s.nextID&0xff)
	}
	d := &Daemon{
		ID:        s.nextID,
		Name:      req.Name,
		Company:   company,
		UserID:    uid,
		PublicKey: pub,
		IPAddress: ip,
	}
	s.daemons[d.ID] = d
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, map[string]any{"id": d.ID, "ipAddress": d.IPAddress, "name": d.Name})
}

func (s *Server) handleDeleteDaemon(w http.ResponseWriter, r *http.Request, d *Daemon) {
	s.mu.Lock()
	delete(s.daemons, d.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"id": d.ID})
}

func (s *Server) handleNetworkPeer(w http.ResponseWriter, r *http.Request, d *Daemon) {
	s.mu.Lock()
	peer, routerPub := s.peer, s.routerPub
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]string{
		"routerPublicKey": cryptox.EncodeKey(routerPub),
		"ipAddress":       peer.controllerIP,
		"endpointAddress": peer.endpoint,
		"allowedIps":      peer.allowedIPs,
	})
}

func (s *Server) handleDaemonInfo(w http.ResponseWriter, r *http.Request, d *Daemon) {
	status := "pending"
	if d.Approved {
		status = "approved"
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": d.ID, "name": d.Name, "approvalStatus": status})
}
