package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/eaglebank/banking/banking-service/internal/command"
	"github.com/eaglebank/banking/shared/cqrs"
	"github.com/eaglebank/banking/shared/middleware"
	"github.com/eaglebank/banking/shared/models"
)

// TransactionCommander defines the write-side operations used by BankingHandler.
type TransactionCommander interface {
	InitiateTransfer(context.Context, cqrs.InitiateTransferCommand) (*command.InitiationResult, error)
	InitiateDeposit(context.Context, cqrs.InitiateDepositCommand) (*command.InitiationResult, error)
	InitiateWithdrawal(context.Context, cqrs.InitiateWithdrawalCommand) (*command.InitiationResult, error)
	RequestRollback(context.Context, cqrs.RequestRollbackCommand) (*command.InitiationResult, error)
}

// BankingQuerier defines the read-side operations used by BankingHandler.
type BankingQuerier interface {
	GetBalance(context.Context, cqrs.GetBalanceQuery) (*models.AccountView, error)
	GetTransaction(context.Context, cqrs.GetTransactionQuery) (*models.TransactionView, error)
}

type BankingHandler struct {
	commands TransactionCommander
	queries  BankingQuerier
}

type TransferRequest struct {
	TransactionID string          `json:"transactionId"`
	FromAccountID string          `json:"fromAccountId" validate:"required"`
	ToAccountID   string          `json:"toAccountId" validate:"required,nefield=FromAccountID"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

// AccountOperationRequest is the body of deposits and withdrawals.
type AccountOperationRequest struct {
	TransactionID string          `json:"transactionId"`
	AccountID     string          `json:"accountId" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"required,gt=0"`
}

type BalanceResponse struct {
	AccountID     string `json:"accountId"`
	AccountNumber string `json:"accountNumber"`
	Balance       string `json:"balance"`
}

func NewBankingHandler(commands TransactionCommander, queries BankingQuerier) *BankingHandler {
	return &BankingHandler{commands: commands, queries: queries}
}

func (h *BankingHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/transfers", h.InitiateTransfer)
	rg.POST("/deposits", h.InitiateDeposit)
	rg.POST("/withdrawals", h.InitiateWithdrawal)
	rg.GET("/accounts/:accountId/balance", h.GetBalance)
	rg.GET("/transactions/:transactionId", h.GetTransaction)
	rg.POST("/transactions/:transactionId/rollback", h.RequestRollback)
}

func (h *BankingHandler) InitiateTransfer(c *gin.Context) {
	var req TransferRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.commands.InitiateTransfer(c.Request.Context(), cqrs.InitiateTransferCommand{
		TransactionID: req.TransactionID,
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		Amount:        req.Amount,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (h *BankingHandler) InitiateDeposit(c *gin.Context) {
	var req AccountOperationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.commands.InitiateDeposit(c.Request.Context(), cqrs.InitiateDepositCommand{
		TransactionID: req.TransactionID,
		AccountID:     req.AccountID,
		Amount:        req.Amount,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (h *BankingHandler) InitiateWithdrawal(c *gin.Context) {
	var req AccountOperationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.commands.InitiateWithdrawal(c.Request.Context(), cqrs.InitiateWithdrawalCommand{
		TransactionID: req.TransactionID,
		AccountID:     req.AccountID,
		Amount:        req.Amount,
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (h *BankingHandler) RequestRollback(c *gin.Context) {
	result, err := h.commands.RequestRollback(c.Request.Context(), cqrs.RequestRollbackCommand{
		TransactionID: c.Param("transactionId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, result)
}

func (h *BankingHandler) GetBalance(c *gin.Context) {
	view, err := h.queries.GetBalance(c.Request.Context(), cqrs.GetBalanceQuery{
		AccountID: c.Param("accountId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, BalanceResponse{
		AccountID:     view.AccountID,
		AccountNumber: view.AccountNumber,
		Balance:       view.Balance.StringFixed(2),
	})
}

func (h *BankingHandler) GetTransaction(c *gin.Context) {
	view, err := h.queries.GetTransaction(c.Request.Context(), cqrs.GetTransactionQuery{
		TransactionID: c.Param("transactionId"),
	})
	if err != nil {
		middleware.RespondWithDomainError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func bindAndValidate(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		middleware.RespondWithError(c, http.StatusBadRequest, "Invalid request body")
		return false
	}
	if validationErrors := middleware.ValidateRequest(req); validationErrors != nil {
		middleware.RespondWithValidationError(c, validationErrors)
		return false
	}
	return true
}
