package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusCompleted  = "COMPLETED"
	OrderStatusCanceled   = "CANCELED"
)

const (
	OrderItemStatusActive   = "ACTIVE"
	OrderItemStatusCanceled = "CANCELED"
)

const (
	OrderTypeStandard = "STANDARD"
	OrderTypePreorder = "PREORDER"
)

// ── Group B: Audit trail actions (append-only) ──

const (
	HistoryOrderCreated  = "ORDER_CREATED"
	HistoryOrderCanceled = "ORDER_CANCELED"
	HistoryItemCanceled  = "ITEM_CANCELED"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleBuyer  = "BUYER"
	UserRoleFarmer = "FARMER"
	UserRoleAdmin  = "ADMIN"
)

// ── Group D: Configurable labels (no DB constraint) ──

const (
	PaymentMethodCash = "CASH"
	PaymentMethodCard = "CARD"
	PaymentMethodBank = "BANK_TRANSFER"
)
