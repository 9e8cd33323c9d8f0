package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eaglebank/banking/shared/cqrs"
	"github.com/eaglebank/banking/shared/middleware"
	"github.com/eaglebank/banking/shared/models"
)

// LedgerQuerier defines the ledger reads used by LedgerHandler.
type LedgerQuerier interface {
	GetAccount(context.Context, cqrs.GetBalanceQuery) (*models.Account, error)
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.Transaction, error)
}

// LedgerHandler exposes the authoritative ledger rows.
type LedgerHandler struct {
	queries LedgerQuerier
}

func NewLedgerHandler(queries LedgerQuerier) *LedgerHandler {
	return &LedgerHandler{queries: queries}
}

func (h *LedgerHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/accounts/:accountId", h.GetAccount)
	rg.GET("/transactions/:transactionId", h.GetTransaction)
}

func (h *LedgerHandler) GetAccount(c *gin.Context) {
	account, err := h.queries.GetAccount(c.Request.Context(), cqrs.GetBalanceQuery{AccountID: c.Param("accountId")})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	txn, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{TransactionID: c.Param("transactionId")})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, txn)
}
