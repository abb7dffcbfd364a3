package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mcmanager/milkledger/internal/domain/models"
	"github.com/mcmanager/milkledger/internal/domain/period"
)

// MemberRegistry is the member operations exposed over HTTP.
type MemberRegistry interface {
	List(ctx context.Context) ([]models.Member, error)
	Active(ctx context.Context) ([]models.Member, error)
	Create(ctx context.Context, input models.MemberInput) (models.Member, error)
	Update(ctx context.Context, custNo int, input models.MemberInput) (models.Member, error)
}

// RateCardService is the rate card operations exposed over HTTP.
type RateCardService interface {
	Get(ctx context.Context) (models.RateCard, error)
	AddItem(ctx context.Context, item models.RateItem) (models.RateCard, error)
}

// MemberHandler serves the member registry and the rate card.
type MemberHandler struct {
	members MemberRegistry
	rates   RateCardService
	loc     *time.Location
	logger  *zap.Logger
}

// NewMemberHandler constructs the HTTP handler adapter.
func NewMemberHandler(members MemberRegistry, rates RateCardService, loc *time.Location, logger *zap.Logger) *MemberHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MemberHandler{members: members, rates: rates, loc: loc, logger: logger}
}

// List returns every member, or only active ones with ?active=true.
func (h *MemberHandler) List(c *gin.Context) {
	list := h.members.List
	if c.Query("active") == "true" {
		list = h.members.Active
	}

	out, err := list(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "failed to list members", err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// Create registers a member under the next custNo.
func (h *MemberHandler) Create(c *gin.Context) {
	var input models.MemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	m, err := h.members.Create(c.Request.Context(), input)
	if err != nil {
		writeError(c, h.logger, "failed to create member", err)
		return
	}
	c.JSON(http.StatusCreated, m)
}

// Update edits a member. The custNo in the path is never changed.
func (h *MemberHandler) Update(c *gin.Context) {
	custNo, err := strconv.Atoi(c.Param("custNo"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "custNo must be a number"})
		return
	}

	var input models.MemberInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	m, err := h.members.Update(c.Request.Context(), custNo, input)
	if err != nil {
		writeError(c, h.logger, "failed to update member", err)
		return
	}
	c.JSON(http.StatusOK, m)
}

type rateItemView struct {
	EffectiveDate string  `json:"effectiveDate" binding:"required"`
	PayRate       float64 `json:"payRate" binding:"required"`
}

type rateCardView struct {
	Items []rateItemView `json:"items"`
}

func toRateCardView(card models.RateCard) rateCardView {
	out := rateCardView{Items: make([]rateItemView, 0, len(card.Items))}
	for _, item := range card.Items {
		out.Items = append(out.Items, rateItemView{EffectiveDate: period.Format(item.EffectiveDate), PayRate: item.PayRate})
	}
	return out
}

// RateCard returns the pay rate history.
func (h *MemberHandler) RateCard(c *gin.Context) {
	card, err := h.rates.Get(c.Request.Context())
	if err != nil {
		writeError(c, h.logger, "failed to load rate card", err)
		return
	}
	c.JSON(http.StatusOK, toRateCardView(card))
}

// AddRateItem adds or replaces the rate effective on a date.
func (h *MemberHandler) AddRateItem(c *gin.Context) {
	var req rateItemView
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "effectiveDate and payRate are required"})
		return
	}
	effective, err := period.Parse(req.EffectiveDate, h.loc)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	card, err := h.rates.AddItem(c.Request.Context(), models.RateItem{EffectiveDate: effective, PayRate: req.PayRate})
	if err != nil {
		writeError(c, h.logger, "failed to add rate item", err)
		return
	}
	c.JSON(http.StatusOK, toRateCardView(card))
}
