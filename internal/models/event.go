package models

import (
	"encoding/json"
	"time"
)

// AgentEvent is one append-only audit trail entry.
type AgentEvent struct {
	ID        string          `json:"id" db:"id"`
	SessionID string          `json:"session_id" db:"session_id"`
	AgentName string          `json:"agent_name" db:"agent_name"`
	Action    string          `json:"action" db:"action"`
	Metadata  json.RawMessage `json:"metadata" db:"metadata"`
	CreatedAt time.Time       `json:"created_at" db:"created_at"`
}

// Agent names recorded in the audit trail.
const (
	AgentCustomer       = "Customer"
	AgentSales          = "AI Conversational Sales Agent"
	AgentInventory      = "Inventory Agent"
	AgentRecommendation = "Recommendation Agent"
	AgentPayment        = "Payment Agent"
	AgentFulfillment    = "Fulfillment Agent"
	AgentPostPurchase   = "Post-Purchase Support Agent"
	AgentOperations     = "Operations Agent"
)

// Audit actions.
const (
	ActionInitiatesConversation = "INITIATES_CONVERSATION"
	ActionResponse              = "RESPONSE"
	ActionCheckStock            = "CHECK_STOCK"
	ActionAddToCart             = "ADD_TO_CART"
	ActionStockLimit            = "STOCK_LIMIT"
	ActionRemoveItem            = "REMOVE_ITEM"
	ActionClearCart             = "CLEAR_CART"
	ActionProcessPayment        = "PROCESS_PAYMENT"
	ActionOrderPacked           = "ORDER_PACKED"
	ActionOrderConfirmation     = "ORDER_CONFIRMATION"
	ActionOrderPlaced           = "ORDER_PLACED"
	ActionOrderCancelled        = "ORDER_CANCELLED"
	ActionStatusUpdated         = "STATUS_UPDATED"
	ActionMessage               = "MESSAGE"
	ActionSessionCreated        = "SESSION_CREATED"
	ActionChannelSwitched       = "CHANNEL_SWITCHED"
)
