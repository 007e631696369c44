package controller

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/unclebandit/clickreward-backend/internal/service"
)

type RewardController struct {
	RewardService *service.RewardService
	Log           *zap.Logger
}

func (c *RewardController) GetProgress(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	p, err := c.RewardService.GetProgress(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (c *RewardController) CheckIn(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	res, err := c.RewardService.CheckIn(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *RewardController) ClaimDailyBonus(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	res, err := c.RewardService.ClaimDailyBonus(r.Context(), userID)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (c *RewardController) AddXP(w http.ResponseWriter, r *http.Request) {
	userID, err := uuidParam(r, "userID")
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	var body struct {
		Amount int    `json:"amount" validate:"required,gt=0,max=10000"`
		Reason string `json:"reason" validate:"max=100"`
	}
	if err := decode(w, r, &body); err != nil {
		writeError(w, r, c.Log, err)
		return
	}

	res, err := c.RewardService.AddXP(r.Context(), userID, body.Amount, body.Reason)
	if err != nil {
		writeError(w, r, c.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
