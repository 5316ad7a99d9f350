package fakeworker

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"
)

type resultDTO struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

type userDTO struct {
	DisplayName  string `json:"display_name"`
	Login        string `json:"login"`
	TwitchUserID string `json:"twitch_user_id"`
}

type meDTO struct {
	OK   bool    `json:"ok"`
	User userDTO `json:"user"`
}

type voteDTO struct {
	NominationID string `json:"nomination_id"`
	CandidateID  string `json:"candidate_id"`
}

type myVotesDTO struct {
	OK    bool      `json:"ok"`
	Votes []voteDTO `json:"votes"`
}

func (s *Server) meHandler(w http.ResponseWriter, r *http.Request) {
	user := userFrom(r)
	writeJSON(w, http.StatusOK, meDTO{OK: true, User: userDTO{
		DisplayName:  user.DisplayName,
		Login:        user.Login,
		TwitchUserID: user.TwitchUserID,
	}})
}

func (s *Server) myVotesHandler(w http.ResponseWriter, r *http.Request) {
	votes := s.Votes(userFrom(r).Login)
	list := make([]voteDTO, 0, len(votes))
	for nom, cand := range votes {
		list = append(list, voteDTO{NominationID: nom, CandidateID: cand})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].NominationID < list[j].NominationID })
	writeJSON(w, http.StatusOK, myVotesDTO{OK: true, Votes: list})
}

func (s *Server) voteHandler(w http.ResponseWriter, r *http.Request) {
	var req voteDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, resultDTO{OK: false, Error: "bad request"})
		return
	}
	req.NominationID = strings.TrimSpace(req.NominationID)
	req.CandidateID = strings.TrimSpace(req.CandidateID)
	if req.NominationID == "" || req.CandidateID == "" {
		writeJSON(w, http.StatusBadRequest, resultDTO{OK: false, Error: "nomination_id and candidate_id are required"})
		return
	}
	if s.opts.Ballot != nil && !s.opts.Ballot.HasCandidate(req.NominationID, req.CandidateID) {
		writeJSON(w, http.StatusBadRequest, resultDTO{OK: false, Error: "Неизвестная номинация или кандидат"})
		return
	}

	login := userFrom(r).Login
	s.mu.Lock()
	votes := s.userVotes(login)
	prev, voted := votes[req.NominationID]
	if voted && prev != req.CandidateID && !s.opts.AllowRevote {
		s.mu.Unlock()
		writeJSON(w, http.StatusConflict, resultDTO{OK: false, Error: "Вы уже голосовали в этой номинации"})
		return
	}
	votes[req.NominationID] = req.CandidateID
	s.mu.Unlock()

	s.logger.Infof("vote stored: %s %s=%s", login, req.NominationID, req.CandidateID)
	writeJSON(w, http.StatusOK, resultDTO{OK: true})
}

func (s *Server) unvoteHandler(w http.ResponseWriter, r *http.Request) {
	var req voteDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.NominationID) == "" {
		writeJSON(w, http.StatusBadRequest, resultDTO{OK: false, Error: "nomination_id is required"})
		return
	}
	login := userFrom(r).Login
	s.mu.Lock()
	delete(s.userVotes(login), strings.TrimSpace(req.NominationID))
	s.mu.Unlock()
	s.logger.Infof("vote removed: %s %s", login, req.NominationID)
	writeJSON(w, http.StatusOK, resultDTO{OK: true})
}
