package proxy

import (
	"github.com/gin-gonic/gin"
)

type Upstreams struct {
	BankingServiceURL string
	AccountServiceURL string
}

// RegisterRoutes mounts the public API. The account service's ledger reads
// are exposed under /v1/ledger.
func (p *Proxy) RegisterRoutes(v1 *gin.RouterGroup, up Upstreams) {
	banking := p.To(up.BankingServiceURL, "")
	v1.POST("/transfers", banking)
	v1.POST("/deposits", banking)
	v1.POST("/withdrawals", banking)
	v1.GET("/accounts/:accountId/balance", banking)
	v1.GET("/transactions/:transactionId", banking)
	v1.POST("/transactions/:transactionId/rollback", banking)

	ledger := p.To(up.AccountServiceURL, "/ledger")
	v1.GET("/ledger/accounts/:accountId", ledger)
	v1.GET("/ledger/transactions/:transactionId", ledger)
}
