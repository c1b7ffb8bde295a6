package models

// AuditLog records sensitive user operations for security and compliance.
type AuditLog struct {
	Base
	UserID       string `gorm:"type:uuid;not null;index" json:"user_id"`
	Action       string `gorm:"not null" json:"action"`
	ResourceType string `gorm:"not null" json:"resource_type"`
	ResourceID   string `json:"resource_id"`
	IPAddress    string `json:"ip_address"`
	Changes      string `json:"changes,omitempty"`
}

// Audit actions written by the trading and account services.
const (
	AuditActionBuy            = "trade.buy"
	AuditActionSell           = "trade.sell"
	AuditActionBrokerAttach   = "broker.attach"
	AuditActionBrokerDetach   = "broker.detach"
	AuditActionBrokerPrimary  = "broker.primary"
	AuditActionWalletDeposit  = "wallet.deposit"
	AuditActionWalletWithdraw = "wallet.withdraw"
	AuditActionMarkAdd        = "mark.add"
	AuditActionMarkRemove     = "mark.remove"
	AuditActionGroupChange    = "group.change"
	AuditActionRegister       = "user.register"
)
