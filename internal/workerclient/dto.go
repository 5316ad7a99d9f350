package workerclient

import (
	"fmt"
	"strings"

	"bezdarei/client/internal/state"
)

// envelope: общий вид ответов воркера: {"ok":true,...} или {"ok":false,"error":"..."}.
type envelope struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

func (e envelope) failure() (bool, string) {
	return !e.OK, strings.TrimSpace(e.Error)
}

type failer interface {
	failure() (bool, string)
}

// UserDTO соответствует полю user ответа /api/me.
type UserDTO struct {
	DisplayName  string `json:"display_name"`
	Login        string `json:"login"`
	TwitchUserID string `json:"twitch_user_id"`
}

// MeResponse: ответ /api/me.
type MeResponse struct {
	envelope
	User *UserDTO `json:"user,omitempty"`
}

// VoteDTO: одна запись голоса.
type VoteDTO struct {
	NominationID string `json:"nomination_id"`
	CandidateID  string `json:"candidate_id"`
}

// MyVotesResponse: ответ /api/my-votes.
type MyVotesResponse struct {
	envelope
	Votes []VoteDTO `json:"votes"`
}

// VoteRequest: тело POST /api/vote.
type VoteRequest struct {
	NominationID string `json:"nomination_id"`
	CandidateID  string `json:"candidate_id"`
}

// UnvoteRequest: тело POST /api/unvote.
type UnvoteRequest struct {
	NominationID string `json:"nomination_id"`
}

// ResultResponse: ответ на изменяющие запросы.
type ResultResponse struct {
	envelope
}

// Validate преобразует DTO в модель пользователя.
func (dto *UserDTO) Validate() (state.User, error) {
	if dto == nil {
		return state.User{}, fmt.Errorf("user is missing")
	}
	login := strings.TrimSpace(dto.Login)
	if login == "" {
		return state.User{}, fmt.Errorf("user login is empty")
	}
	return state.User{
		DisplayName:  strings.TrimSpace(dto.DisplayName),
		Login:        login,
		TwitchUserID: strings.TrimSpace(dto.TwitchUserID),
	}, nil
}

// toMap сворачивает список голосов в номинация → кандидат; пустые записи пропускаются.
func toMap(votes []VoteDTO) map[string]string {
	out := make(map[string]string, len(votes))
	for _, v := range votes {
		nom := strings.TrimSpace(v.NominationID)
		cand := strings.TrimSpace(v.CandidateID)
		if nom == "" || cand == "" {
			continue
		}
		out[nom] = cand
	}
	return out
}
